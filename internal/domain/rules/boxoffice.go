package rules

import (
	"github.com/shopspring/decimal"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
)

// MoneyPerQualityPoint converts final quality into base gross.
const MoneyPerQualityPoint = 5_000

// FloorFactor scales a strategy's nominal minimum into the clamp floor.
const FloorFactor = 0.3

// StrategySpec holds the economics of a release channel.
type StrategySpec struct {
	Multiplier float64
	TheaterCut float64
	Marketing  int64
	MinGross   int64 // nominal; the clamp floor is MinGross × FloorFactor
	MaxGross   int64
}

var strategySpecs = map[film.Strategy]StrategySpec{
	film.StrategyWide:    {Multiplier: 1.0, TheaterCut: 0.45, Marketing: 30_000, MinGross: 50_000, MaxGross: 2_500_000},
	film.StrategyLimited: {Multiplier: 0.6, TheaterCut: 0.35, Marketing: 10_000, MinGross: 20_000, MaxGross: 800_000},
}

// Strategy returns the parameters for a theatrical strategy. Direct sale has none.
func Strategy(s film.Strategy) (StrategySpec, bool) {
	spec, ok := strategySpecs[s]
	return spec, ok
}

// Direct sale pricing.
const (
	DirectSaleBase     = 20_000
	DirectSalePerPoint = 1_500
)

// DirectSaleAmount is the single guaranteed payment for a direct sale.
func DirectSaleAmount(quality int) int64 {
	if quality < 0 {
		quality = 0
	}
	return DirectSaleBase + int64(quality)*DirectSalePerPoint
}

// genreEras maps the first year of an era to genre popularity.
var genreEras = []struct {
	From       int
	Popularity map[film.Genre]float64
}{
	{1920, map[film.Genre]float64{
		film.GenreDrama: 1.0, film.GenreComedy: 1.2, film.GenreWestern: 1.1, film.GenreMusical: 0.9,
		film.GenreHorror: 1.0, film.GenreSciFi: 0.6, film.GenreAction: 0.9, film.GenreRomance: 1.1, film.GenreThriller: 0.8,
	}},
	{1940, map[film.Genre]float64{
		film.GenreDrama: 1.1, film.GenreComedy: 1.0, film.GenreWestern: 1.3, film.GenreMusical: 1.3,
		film.GenreHorror: 0.8, film.GenreSciFi: 0.7, film.GenreAction: 0.9, film.GenreRomance: 1.1, film.GenreThriller: 1.1,
	}},
	{1960, map[film.Genre]float64{
		film.GenreDrama: 1.0, film.GenreComedy: 1.0, film.GenreWestern: 1.1, film.GenreMusical: 1.0,
		film.GenreHorror: 1.1, film.GenreSciFi: 1.0, film.GenreAction: 1.0, film.GenreRomance: 1.0, film.GenreThriller: 1.1,
	}},
	{1975, map[film.Genre]float64{
		film.GenreDrama: 0.9, film.GenreComedy: 1.1, film.GenreWestern: 0.7, film.GenreMusical: 0.7,
		film.GenreHorror: 1.2, film.GenreSciFi: 1.4, film.GenreAction: 1.3, film.GenreRomance: 0.9, film.GenreThriller: 1.0,
	}},
	{1990, map[film.Genre]float64{
		film.GenreDrama: 0.9, film.GenreComedy: 1.0, film.GenreWestern: 0.6, film.GenreMusical: 0.8,
		film.GenreHorror: 1.0, film.GenreSciFi: 1.3, film.GenreAction: 1.4, film.GenreRomance: 1.0, film.GenreThriller: 1.1,
	}},
}

// GenrePopularity returns the audience multiplier for genre in year.
func GenrePopularity(year int, genre film.Genre) float64 {
	mult := 1.0
	for _, era := range genreEras {
		if year < era.From {
			break
		}
		if v, ok := era.Popularity[genre]; ok {
			mult = v
		}
	}
	return mult
}

// GrossInputs collects everything the projection reads.
type GrossInputs struct {
	Quality          int
	AverageCastSkill float64
	Genre            film.Genre
	Year             int
	Strategy         film.Strategy
	RatingMultiplier float64
}

// ProjectGross is the pre-reception projection for a theatrical release.
func ProjectGross(in GrossInputs) float64 {
	spec, ok := Strategy(in.Strategy)
	if !ok {
		return 0
	}
	gross := float64(in.Quality) * MoneyPerQualityPoint
	gross *= 1 + (in.AverageCastSkill-film.BaselineSkill)*0.01
	gross *= GenrePopularity(in.Year, in.Genre)
	gross *= spec.Multiplier
	if in.RatingMultiplier > 0 {
		gross *= in.RatingMultiplier
	}
	if gross < 0 {
		return 0
	}
	return gross
}

// ReceptionMultiplier is applied to the projection once reception is drawn.
func ReceptionMultiplier(r film.Reception) float64 {
	switch r {
	case film.ReceptionAcclaimed:
		return 1.4
	case film.ReceptionPositive:
		return 1.15
	case film.ReceptionNegative:
		return 0.75
	case film.ReceptionPanned:
		return 0.5
	default:
		return 1.0
	}
}

// ReceptionWeights is the discrete distribution of reception for quality.
// Better categories gain weight as quality rises.
func ReceptionWeights(quality int) []outcome.Weighted[film.Reception] {
	q := float64(quality) / 100
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return []outcome.Weighted[film.Reception]{
		{Value: film.ReceptionAcclaimed, Weight: 40 * q},
		{Value: film.ReceptionPositive, Weight: 10 + 30*q},
		{Value: film.ReceptionMixed, Weight: 30},
		{Value: film.ReceptionNegative, Weight: 10 + 30*(1-q)},
		{Value: film.ReceptionPanned, Weight: 40 * (1 - q)},
	}
}

// ShockSpec is an independent low-probability market event.
type ShockSpec struct {
	Name        string
	Probability float64
	Percent     float64
}

// MarketShocks are drawn independently for every theatrical release.
var MarketShocks = []ShockSpec{
	{"Holiday Surge", 0.08, 0.15},
	{"Viral Buzz", 0.06, 0.25},
	{"Rival Blockbuster", 0.10, -0.20},
	{"Star Scandal", 0.05, -0.10},
	{"Economic Slump", 0.05, -0.15},
}

// ApplyShocks adds every shock's percentage to the total.
func ApplyShocks(total float64, shocks []film.MarketShock) float64 {
	pct := 0.0
	for _, s := range shocks {
		pct += s.Percent
	}
	out := total * (1 + pct)
	if out < 0 {
		return 0
	}
	return out
}

// ClampGross bounds the adjusted total to the strategy band.
func ClampGross(total float64, s film.Strategy) int64 {
	spec, ok := Strategy(s)
	if !ok {
		return int64(total)
	}
	floor := float64(spec.MinGross) * FloorFactor
	if total < floor {
		total = floor
	}
	if total > float64(spec.MaxGross) {
		total = float64(spec.MaxGross)
	}
	return int64(total)
}

// DecayCurve is the share of total gross earned in each theatrical week.
var DecayCurve = []decimal.Decimal{
	decimal.RequireFromString("0.45"),
	decimal.RequireFromString("0.25"),
	decimal.RequireFromString("0.18"),
	decimal.RequireFromString("0.12"),
}

// SplitSchedule spreads total across the decay curve. Each week is floored,
// so the schedule sums to total minus at most len(DecayCurve)-1.
func SplitSchedule(total int64, s film.Strategy) []film.RunWeek {
	spec, _ := Strategy(s)
	studioFraction := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(spec.TheaterCut))
	t := decimal.NewFromInt(total)

	weeks := make([]film.RunWeek, 0, len(DecayCurve))
	for _, share := range DecayCurve {
		gross := t.Mul(share).Floor().IntPart()
		studio := decimal.NewFromInt(gross).Mul(studioFraction).Floor().IntPart()
		weeks = append(weeks, film.RunWeek{
			Gross:        gross,
			StudioShare:  studio,
			TheaterShare: gross - studio,
		})
	}
	return weeks
}
