package finance

// InvestmentKind identifies a purchasable asset.
type InvestmentKind string

const (
	InvestmentBacklotLease    InvestmentKind = "BACKLOT_LEASE"
	InvestmentFilmLibrary     InvestmentKind = "FILM_LIBRARY"
	InvestmentTheaterChain    InvestmentKind = "THEATER_CHAIN"
	InvestmentMusicPublishing InvestmentKind = "MUSIC_PUBLISHING"
)

// Investment is an owned asset paying a recurring monthly yield.
type Investment struct {
	ID           string         `json:"id"`
	Kind         InvestmentKind `json:"kind"`
	Name         string         `json:"name"`
	Cost         int64          `json:"cost"`
	MonthlyYield int64          `json:"monthly_yield"`
	Tags         []string       `json:"tags"`
	AcquiredWeek int            `json:"acquired_week"`
}

// InvestmentOffer is a catalog entry.
type InvestmentOffer struct {
	Kind         InvestmentKind
	Name         string
	Cost         int64
	MonthlyYield int64
	Tags         []string
}

// InvestmentCatalog lists everything the studio can buy.
var InvestmentCatalog = []InvestmentOffer{
	{InvestmentBacklotLease, "Backlot Lease", 80_000, 4_000, []string{"facility", "steady"}},
	{InvestmentFilmLibrary, "Film Library Rights", 150_000, 9_000, []string{"catalog", "reputation"}},
	{InvestmentTheaterChain, "Regional Theater Chain", 400_000, 26_000, []string{"exhibition", "prestige"}},
	{InvestmentMusicPublishing, "Music Publishing House", 120_000, 6_500, []string{"ancillary"}},
}

// FindOffer returns the catalog entry for kind.
func FindOffer(kind InvestmentKind) (InvestmentOffer, bool) {
	for _, o := range InvestmentCatalog {
		if o.Kind == kind {
			return o, true
		}
	}
	return InvestmentOffer{}, false
}

// YieldIntervalWeeks is how often a monthly yield is realized.
const YieldIntervalWeeks = 4
