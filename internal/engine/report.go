package engine

import "github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"

// WarningKind classifies a solvency warning.
type WarningKind string

const (
	WarningNegativeCash WarningKind = "NEGATIVE_CASH"
	WarningLowCash      WarningKind = "LOW_CASH"
	WarningShortRunway  WarningKind = "SHORT_RUNWAY"
)

// SolvencyWarning is a derived condition surfaced every tick. It never blocks.
type SolvencyWarning struct {
	Kind    WarningKind `json:"kind"`
	Cash    int64       `json:"cash"`
	Runway  float64     `json:"runway_weeks,omitempty"`
	Message string      `json:"message"`
}

// WeekReport summarizes one call to AdvanceWeek.
type WeekReport struct {
	Week      int       `json:"week"`
	Year      int       `json:"year"`
	Suspended bool      `json:"suspended"`
	Awaiting  *Awaiting `json:"awaiting,omitempty"`

	CashBefore int64 `json:"cash_before"`
	CashAfter  int64 `json:"cash_after"`

	Overruns     int64 `json:"overruns"`
	Revenue      int64 `json:"revenue"`
	LoanPayments int64 `json:"loan_payments"`
	Yield        int64 `json:"yield"`

	Crises    []string `json:"crises,omitempty"`
	Completed []string `json:"completed,omitempty"`
	Archived  []string `json:"archived,omitempty"`
	Settled   []string `json:"settled_loans,omitempty"`

	Warnings []SolvencyWarning    `json:"warnings,omitempty"`
	Rating   finance.CreditRating `json:"rating"`
	Score    int                  `json:"score"`
}

func (r *WeekReport) clone() WeekReport {
	c := *r
	c.Crises = append([]string(nil), r.Crises...)
	c.Completed = append([]string(nil), r.Completed...)
	c.Archived = append([]string(nil), r.Archived...)
	c.Settled = append([]string(nil), r.Settled...)
	c.Warnings = append([]SolvencyWarning(nil), r.Warnings...)
	if r.Awaiting != nil {
		a := *r.Awaiting
		c.Awaiting = &a
	}
	return c
}

// TickContext is what the clock hands each subsystem for one week.
type TickContext struct {
	State  *SimulationState
	Week   int
	Year   int
	Report *WeekReport
}
