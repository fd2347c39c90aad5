// Package film defines the core domain entities for films in flight and in release.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package film

import "math"

// Genre is the marketing category of a script.
type Genre string

const (
	GenreDrama    Genre = "Drama"
	GenreComedy   Genre = "Comedy"
	GenreWestern  Genre = "Western"
	GenreMusical  Genre = "Musical"
	GenreHorror   Genre = "Horror"
	GenreSciFi    Genre = "SciFi"
	GenreAction   Genre = "Action"
	GenreRomance  Genre = "Romance"
	GenreThriller Genre = "Thriller"
)

// Genres lists every genre the popularity tables know about.
var Genres = []Genre{
	GenreDrama, GenreComedy, GenreWestern, GenreMusical, GenreHorror,
	GenreSciFi, GenreAction, GenreRomance, GenreThriller,
}

// Valid reports whether g is a known genre.
func (g Genre) Valid() bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}

// Talent is a creative hire with a skill rating used by quality and revenue formulas.
type Talent struct {
	Name  string `json:"name"`
	Skill int    `json:"skill" validate:"min=0,max=100"` // 50 is baseline
}

// Script is the input to a greenlight decision.
type Script struct {
	Title    string   `json:"title" validate:"notblank"`
	Genre    Genre    `json:"genre" validate:"genre"`
	Budget   int64    `json:"budget" validate:"gt=0"`
	Quality  int      `json:"quality" validate:"min=0,max=100"`
	Director *Talent  `json:"director,omitempty"`
	Cast     []Talent `json:"cast,omitempty" validate:"dive"`
}

// ResolvedCrisis is an entry in the production's crisis log.
type ResolvedCrisis struct {
	CrisisID string `json:"crisis_id"`
	Kind     string `json:"kind"`
	Choice   string `json:"choice"`
	Cost     int64  `json:"cost"`
	Week     int    `json:"week"`
}

// Production is a film from greenlight until its run is archived.
type Production struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Genre    Genre  `json:"genre"`
	Script   int    `json:"script_quality"`
	Greenlit int    `json:"greenlit_week"`

	// Economics
	OriginalBudget  int64 `json:"original_budget"`
	CurrentBudget   int64 `json:"current_budget"` // Cash committed: original + crisis costs + overruns
	CumulativeSpend int64 `json:"cumulative_spend"`

	// Craft
	Quality    float64  `json:"quality"`    // 0-100
	Efficiency float64  `json:"efficiency"` // 0.5-1.5, divides weekly cost
	Director   *Talent  `json:"director,omitempty"`
	Cast       []Talent `json:"cast,omitempty"`

	// Health
	OnBudget        bool             `json:"on_budget"`
	OnSchedule      bool             `json:"on_schedule"`
	TotalDelayWeeks int              `json:"total_delay_weeks"`
	CrisisLog       []ResolvedCrisis `json:"crisis_log"`
	RiskFlags       []string         `json:"risk_flags"`

	// Collaborator inputs
	RatingMultiplier     float64 `json:"rating_multiplier"`
	FacilityQualityBonus float64 `json:"facility_quality_bonus"`

	Stage Stage `json:"-"`
}

// NewProduction creates a production in Development from an approved script.
func NewProduction(id string, s Script, week int) *Production {
	p := &Production{
		ID:               id,
		Title:            s.Title,
		Genre:            s.Genre,
		Script:           s.Quality,
		Greenlit:         week,
		OriginalBudget:   s.Budget,
		CurrentBudget:    s.Budget,
		Quality:          float64(s.Quality),
		Efficiency:       1.0,
		OnBudget:         true,
		OnSchedule:       true,
		CrisisLog:        []ResolvedCrisis{},
		RiskFlags:        []string{},
		RatingMultiplier: 1.0,
		Stage:            &InProduction{Phase: PhaseDevelopment},
	}
	if s.Director != nil {
		d := *s.Director
		p.Director = &d
	}
	if len(s.Cast) > 0 {
		p.Cast = append([]Talent(nil), s.Cast...)
	}
	p.ClampQuality()
	return p
}

// AdjustQuality adds delta and clamps to [0,100].
func (p *Production) AdjustQuality(delta float64) {
	p.Quality += delta
	p.ClampQuality()
}

// ClampQuality keeps quality within [0,100].
func (p *Production) ClampQuality() {
	if math.IsNaN(p.Quality) {
		p.Quality = 0
	}
	p.Quality = math.Max(0, math.Min(100, p.Quality))
}

// AdjustEfficiency adds delta and clamps to [0.5,1.5].
func (p *Production) AdjustEfficiency(delta float64) {
	p.Efficiency = math.Max(0.5, math.Min(1.5, p.Efficiency+delta))
}

// AddSpend accrues cost. Negative amounts are ignored so spend never decreases.
func (p *Production) AddSpend(amount int64) {
	if amount > 0 {
		p.CumulativeSpend += amount
	}
}

// AddRiskFlag records a flag once.
func (p *Production) AddRiskFlag(flag string) {
	if flag == "" || p.HasRiskFlag(flag) {
		return
	}
	p.RiskFlags = append(p.RiskFlags, flag)
}

// HasRiskFlag reports whether flag was raised on this production.
func (p *Production) HasRiskFlag(flag string) bool {
	for _, f := range p.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// DirectorSkill returns the director's skill or the baseline when unassigned.
func (p *Production) DirectorSkill() int {
	if p.Director == nil {
		return BaselineSkill
	}
	return p.Director.Skill
}

// AverageCastSkill returns mean cast skill or the baseline when uncast.
func (p *Production) AverageCastSkill() float64 {
	if len(p.Cast) == 0 {
		return BaselineSkill
	}
	total := 0
	for _, c := range p.Cast {
		total += c.Skill
	}
	return float64(total) / float64(len(p.Cast))
}

// Phase returns the pipeline phase; anything past production reports Completed.
func (p *Production) Phase() Phase {
	if ip, ok := p.Stage.(*InProduction); ok {
		return ip.Phase
	}
	return PhaseCompleted
}

// InFlight returns the production stage when the film is still being made.
func (p *Production) InFlight() (*InProduction, bool) {
	ip, ok := p.Stage.(*InProduction)
	return ip, ok
}

// Clone returns a deep copy safe to hand to readers.
func (p *Production) Clone() *Production {
	c := *p
	if p.Director != nil {
		d := *p.Director
		c.Director = &d
	}
	c.Cast = append([]Talent(nil), p.Cast...)
	c.CrisisLog = append([]ResolvedCrisis(nil), p.CrisisLog...)
	c.RiskFlags = append([]string(nil), p.RiskFlags...)
	if p.Stage != nil {
		c.Stage = p.Stage.clone()
	}
	return &c
}

// BaselineSkill is the neutral talent rating.
const BaselineSkill = 50
