package engine

import (
	"strconv"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
)

// Roller is the randomness source for every stochastic draw.
// *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
	Intn(n int) int
}

// ResolutionEngine rolls weighted outcomes and applies effect bundles.
// Production crises, favor demands and content changes all go through it.
type ResolutionEngine struct {
	rng        Roller
	reputation ReputationStore
}

// NewResolutionEngine creates a resolver over rng.
func NewResolutionEngine(rng Roller, reputation ReputationStore) *ResolutionEngine {
	return &ResolutionEngine{rng: rng, reputation: reputation}
}

// Chance reports whether an event with probability p fires.
func (r *ResolutionEngine) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return r.rng.Float64() < p
}

// Uniform draws from [lo, hi).
func (r *ResolutionEngine) Uniform(lo, hi float64) float64 {
	return lo + r.rng.Float64()*(hi-lo)
}

// Intn draws from [0, n).
func (r *ResolutionEngine) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return r.rng.Intn(n)
}

// Roll draws one value from a weighted distribution. Non-positive weights
// never win. An empty or all-zero distribution returns the zero value.
func Roll[T any](r *ResolutionEngine, options []outcome.Weighted[T]) T {
	var zero T
	total := 0.0
	for _, o := range options {
		if o.Weight > 0 {
			total += o.Weight
		}
	}
	if total <= 0 {
		return zero
	}
	x := r.rng.Float64() * total
	last := zero
	for _, o := range options {
		if o.Weight <= 0 {
			continue
		}
		if x < o.Weight {
			return o.Value
		}
		x -= o.Weight
		last = o.Value
	}
	return last
}

// Select validates a choice index against the offered choices.
func (r *ResolutionEngine) Select(choices []outcome.Choice, index int) (outcome.Choice, error) {
	if index < 0 || index >= len(choices) {
		return outcome.Choice{}, apperrors.Validation(apperrors.CodeInvalidChoice, "choice index out of range").
			With("index", strconv.Itoa(index)).
			With("choices", strconv.Itoa(len(choices)))
	}
	return choices[index], nil
}

// ApplyToProduction folds the film-facing parts of d into p. Cash and
// obligations belong to the ledger and are ignored here.
func (r *ResolutionEngine) ApplyToProduction(p *film.Production, d outcome.Delta) {
	if p == nil {
		return
	}
	if d.Quality != 0 {
		p.AdjustQuality(d.Quality)
	}
	if d.Efficiency != 0 {
		p.AdjustEfficiency(d.Efficiency)
	}
	if d.DelayWeeks != 0 {
		p.TotalDelayWeeks += d.DelayWeeks
		if p.TotalDelayWeeks < 0 {
			p.TotalDelayWeeks = 0
		}
		if ip, ok := p.InFlight(); ok {
			ip.PhaseDelay += d.DelayWeeks
			if ip.PhaseDelay < 0 {
				ip.PhaseDelay = 0
			}
		}
	}
	p.AddRiskFlag(d.RiskFlag)
}

// ApplyReputation moves reputation by d.Reputation.
func (r *ResolutionEngine) ApplyReputation(d outcome.Delta) {
	if d.Reputation != 0 && r.reputation != nil {
		r.reputation.AdjustReputation(d.Reputation)
	}
}
