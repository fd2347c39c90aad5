package engine

import (
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
)

// DecisionKind identifies what the clock is waiting on.
type DecisionKind string

const (
	DecisionCrisis DecisionKind = "CRISIS"
	DecisionFavor  DecisionKind = "FAVOR"
)

// Awaiting marks a suspended week: which entity needs a choice before the
// week can close.
type Awaiting struct {
	Kind     DecisionKind `json:"kind"`
	EntityID string       `json:"entity_id"`
	Week     int          `json:"week"`
}

// Suspension is returned by a subsystem that cannot finish its tick without
// a decision.
type Suspension struct {
	Kind     DecisionKind
	EntityID string
}

// SimulationState is the explicit root every subsystem reads and writes.
// It is passed by reference into each tick; nothing is held globally.
type SimulationState struct {
	// Week counts completed weeks; the next tick processes Week+1.
	Week        int
	Ledger      *finance.LedgerState
	Productions []*film.Production
	Awaiting    *Awaiting
	Halted      error

	// partial-week bookkeeping while suspended
	resumeAt   int
	inProgress *WeekReport
	ledgerWeek int
}

// NewSimulationState creates the state for a fresh studio.
func NewSimulationState(cash int64, txCap int) *SimulationState {
	return &SimulationState{
		Ledger:      finance.NewLedgerState(cash, txCap),
		Productions: []*film.Production{},
	}
}

// Production looks up a production by ID.
func (s *SimulationState) Production(id string) *film.Production {
	for _, p := range s.Productions {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ActiveProductions counts films still in the pipeline.
func (s *SimulationState) ActiveProductions() int {
	n := 0
	for _, p := range s.Productions {
		if _, ok := p.InFlight(); ok {
			n++
		}
	}
	return n
}

// MostAdvanced returns the in-flight production furthest along the pipeline,
// earliest greenlight first on ties. nil when nothing is in production.
func (s *SimulationState) MostAdvanced() *film.Production {
	var best *film.Production
	bestPhase := film.Phase(-1)
	for _, p := range s.Productions {
		ip, ok := p.InFlight()
		if !ok {
			continue
		}
		if ip.Phase > bestPhase {
			best, bestPhase = p, ip.Phase
		}
	}
	return best
}

// ProcessingWeek is the week the next tick runs.
func (s *SimulationState) ProcessingWeek() int {
	return s.Week + 1
}

func (s *SimulationState) clearAwaiting(kind DecisionKind, entityID string) {
	if s.Awaiting != nil && s.Awaiting.Kind == kind && s.Awaiting.EntityID == entityID {
		s.Awaiting = nil
	}
}
