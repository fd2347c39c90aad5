package engine

import (
	"sync"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
)

// Calendar maps simulation weeks onto in-world dates.
type Calendar interface {
	CurrentYear(week int) int
}

// WeeksPerYear is the calendar length used by FixedCalendar.
const WeeksPerYear = 52

// FixedCalendar starts at StartYear and advances one year every 52 weeks.
type FixedCalendar struct {
	StartYear int
}

func (c FixedCalendar) CurrentYear(week int) int {
	return c.StartYear + week/WeeksPerYear
}

// Verdict is the content gate's answer for a script.
type Verdict struct {
	Approved         bool          `json:"approved"`
	RequiredChanges  outcome.Delta `json:"required_changes"`
	RatingMultiplier float64       `json:"rating_multiplier"`
	Reason           string        `json:"reason,omitempty"`
}

// ContentGate reviews a script before it may be greenlit.
type ContentGate interface {
	Review(s film.Script) Verdict
}

// OpenGate approves everything unchanged.
type OpenGate struct{}

func (OpenGate) Review(film.Script) Verdict {
	return Verdict{Approved: true, RatingMultiplier: 1.0}
}

// FacilityProvider supplies lot bonuses and the production cap.
type FacilityProvider interface {
	Bonuses(genre film.Genre) (costMult, qualityBonus float64)
	MaxConcurrentProductions() int
}

// BasicLot is a facility set with no bonuses.
type BasicLot struct {
	MaxProductions int
}

func (l BasicLot) Bonuses(film.Genre) (float64, float64) {
	return 1.0, 0
}

func (l BasicLot) MaxConcurrentProductions() int {
	if l.MaxProductions <= 0 {
		return 1
	}
	return l.MaxProductions
}

// ReputationStore owns the studio's public standing.
type ReputationStore interface {
	Reputation() int
	AdjustReputation(delta int)
}

// MemoryReputation keeps reputation in memory, clamped to [0,100].
type MemoryReputation struct {
	mu    sync.Mutex
	value int
}

// NewMemoryReputation creates a store at the given starting value.
func NewMemoryReputation(start int) *MemoryReputation {
	r := &MemoryReputation{}
	r.AdjustReputation(start)
	return r
}

func (r *MemoryReputation) Reputation() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

func (r *MemoryReputation) AdjustReputation(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value += delta
	if r.value < 0 {
		r.value = 0
	}
	if r.value > 100 {
		r.value = 100
	}
}
