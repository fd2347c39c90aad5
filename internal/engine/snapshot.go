package engine

import (
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
)

// ProductionView is a read-only production with its stage exposed for JSON.
type ProductionView struct {
	*film.Production
	StageKind film.StageKind `json:"stage"`
	Detail    film.Stage     `json:"detail"`
}

// Snapshot is a deep copy of everything a display needs. Mutating it has no
// effect on the engine.
type Snapshot struct {
	Week         int                   `json:"week"`
	Year         int                   `json:"year"`
	Cash         int64                 `json:"cash"`
	Reputation   int                   `json:"reputation"`
	Rating       finance.CreditRating  `json:"rating"`
	Score        int                   `json:"score"`
	Obligations  int                   `json:"obligations"`
	TotalDebt    int64                 `json:"total_debt"`
	Productions  []ProductionView      `json:"productions"`
	Loans        []*finance.Loan       `json:"loans"`
	Investments  []*finance.Investment `json:"investments"`
	Transactions []finance.Transaction `json:"transactions"`
	PendingFavor *finance.FavorDemand  `json:"pending_favor,omitempty"`
	Awaiting     *Awaiting             `json:"awaiting,omitempty"`
	Halted       string                `json:"halted,omitempty"`

	CanGreenlight bool `json:"can_greenlight"`
}

// Snapshot returns read-only copies of productions, runs, loans and the ledger.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	ledger := st.Ledger.Clone()
	snap := Snapshot{
		Week:         st.Week,
		Year:         e.calendar.CurrentYear(st.Week),
		Cash:         ledger.Cash,
		Reputation:   e.reputation.Reputation(),
		Rating:       ledger.Rating,
		Score:        ledger.Score,
		Obligations:  ledger.Obligations,
		TotalDebt:    ledger.TotalDebt(),
		Productions:  make([]ProductionView, 0, len(st.Productions)),
		Loans:        ledger.Loans,
		Investments:  ledger.Investments,
		Transactions: ledger.Transactions,
		PendingFavor: ledger.PendingFavor,

		CanGreenlight: e.pipeline.CanStartNewProduction(st),
	}
	for _, p := range st.Productions {
		c := p.Clone()
		snap.Productions = append(snap.Productions, ProductionView{Production: c, StageKind: c.Stage.Kind(), Detail: c.Stage})
	}
	if st.Awaiting != nil {
		a := *st.Awaiting
		snap.Awaiting = &a
	}
	if st.Halted != nil {
		snap.Halted = st.Halted.Error()
	}
	return snap
}

// Production returns the production with id from the snapshot.
func (s Snapshot) Production(id string) (ProductionView, bool) {
	for _, p := range s.Productions {
		if p.ID == id {
			return p, true
		}
	}
	return ProductionView{}, false
}
