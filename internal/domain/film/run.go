package film

// Strategy is the chosen release channel.
type Strategy string

const (
	StrategyWide       Strategy = "WIDE"
	StrategyLimited    Strategy = "LIMITED"
	StrategyDirectSale Strategy = "DIRECT_SALE"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyWide, StrategyLimited, StrategyDirectSale:
		return true
	}
	return false
}

// Reception is the critical-reception category of a release.
type Reception string

const (
	ReceptionAcclaimed Reception = "ACCLAIMED"
	ReceptionPositive  Reception = "POSITIVE"
	ReceptionMixed     Reception = "MIXED"
	ReceptionNegative  Reception = "NEGATIVE"
	ReceptionPanned    Reception = "PANNED"
)

// MarketShock is an independent event that moved the projected gross.
type MarketShock struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"` // additive, e.g. -0.20
}

// RunWeek is one scheduled week of a theatrical run.
type RunWeek struct {
	Gross        int64 `json:"gross"`
	StudioShare  int64 `json:"studio_share"`
	TheaterShare int64 `json:"theater_share"`
}

// TheatricalRun is the revenue schedule of a released film.
type TheatricalRun struct {
	Strategy       Strategy      `json:"strategy"`
	Marketing      int64         `json:"marketing"`
	Reception      Reception     `json:"reception"`
	Shocks         []MarketShock `json:"shocks"`
	ProjectedGross int64         `json:"projected_gross"`
	Weeks          []RunWeek     `json:"weeks"`
	WeekPointer    int           `json:"week_pointer"`
	StartWeek      int           `json:"start_week"`
	LastPaidWeek   int           `json:"last_paid_week"` // simulation week of the latest payout
	GrossToDate    int64         `json:"gross_to_date"`
	StudioRevenue  int64         `json:"studio_revenue"`
	Sealed         bool          `json:"sealed"`
}

// Exhausted reports whether every scheduled week has been paid.
func (r *TheatricalRun) Exhausted() bool {
	return r.WeekPointer >= len(r.Weeks)
}

// ScheduledGross sums the gross of every scheduled week.
func (r *TheatricalRun) ScheduledGross() int64 {
	var total int64
	for _, w := range r.Weeks {
		total += w.Gross
	}
	return total
}

// Clone returns a deep copy.
func (r *TheatricalRun) Clone() *TheatricalRun {
	if r == nil {
		return nil
	}
	c := *r
	c.Shocks = append([]MarketShock(nil), r.Shocks...)
	c.Weeks = append([]RunWeek(nil), r.Weeks...)
	return &c
}
