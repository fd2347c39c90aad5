package autopilot

import (
	"encoding/json"
	"fmt"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// Action is what the pilot decided to do this step.
type Action string

const (
	ActionResolveCrisis Action = "RESOLVE_CRISIS"
	ActionResolveFavor  Action = "RESOLVE_FAVOR"
	ActionRelease       Action = "RELEASE"
	ActionBorrow        Action = "BORROW"
	ActionGreenlight    Action = "GREENLIGHT"
	ActionInvest        Action = "INVEST"
	ActionAdvance       Action = "ADVANCE"
	ActionIdle          Action = "IDLE"
)

// Decision is one planned command with its audit trail.
type Decision struct {
	Action        Action          `json:"action"`
	Target        string          `json:"target,omitempty"`
	Command       network.Command `json:"command"`
	Approved      bool            `json:"approved"`
	Justification string          `json:"justification"`
}

// GuardRule is a hard limit. Check returns false to block the action.
type GuardRule struct {
	Name  string
	Check func(state *StudioState, d *Decision) bool
}

// Objective is a goal the pilot pursues in priority order. Plan returns nil
// when the objective has nothing to do.
type Objective struct {
	Name string
	Plan func(c *Cognitor, state *StudioState) *Decision
}

// Policy holds the pilot's tunables.
type Policy struct {
	CashReserve   int64 // never greenlight below this
	DebtCeiling   int64 // never borrow above this
	LoanSize      int64
	MaxBudget     int64
	MinBudget     int64
	WideThreshold int  // final quality at or above which films open wide
	FavorFloor    int  // refuse favors below this reputation
	Advance       bool // false leaves the clock to the server
}

// DefaultPolicy is a cautious studio head.
func DefaultPolicy() Policy {
	return Policy{
		CashReserve:   100_000,
		DebtCeiling:   400_000,
		LoanSize:      100_000,
		MaxBudget:     250_000,
		MinBudget:     50_000,
		WideThreshold: 55,
		FavorFloor:    30,
		Advance:       true,
	}
}

// Cognitor is the decision-making core of the pilot.
type Cognitor struct {
	policy     Policy
	scripts    *ScriptWriter
	logger     *logger.Logger
	guards     []GuardRule
	objectives []Objective

	// Actions rejected by the studio this week; skipped until the week turns.
	blockedWeek int
	blocked     map[Action]bool
}

// NewCognitor creates a cognitor with the default guards and objectives.
func NewCognitor(policy Policy, scripts *ScriptWriter, log *logger.Logger) *Cognitor {
	c := &Cognitor{
		policy:  policy,
		scripts: scripts,
		logger:  log,
		blocked: make(map[Action]bool),
	}
	c.initializeGuards()
	c.initializeObjectives()
	return c
}

func (c *Cognitor) initializeGuards() {
	c.guards = []GuardRule{
		{
			Name: "HALTED_BOOKS",
			Check: func(state *StudioState, d *Decision) bool {
				return !state.Halted
			},
		},
		{
			Name: "KEEP_RESERVE",
			Check: func(state *StudioState, d *Decision) bool {
				if d.Action != ActionGreenlight {
					return true
				}
				var s film.Script
				if err := json.Unmarshal(d.Command.Payload, &s); err != nil {
					return false
				}
				return state.Cash-s.Budget >= c.policy.CashReserve
			},
		},
		{
			Name: "DEBT_CEILING",
			Check: func(state *StudioState, d *Decision) bool {
				return d.Action != ActionBorrow || state.TotalDebt+c.policy.LoanSize <= c.policy.DebtCeiling
			},
		},
		{
			Name: "NO_SPENDING_UNDER_PRESSURE",
			Check: func(state *StudioState, d *Decision) bool {
				return d.Action != ActionInvest || state.Pressure == PressureLow
			},
		},
	}
}

func (c *Cognitor) initializeObjectives() {
	c.objectives = []Objective{
		{Name: "ANSWER_CRISIS", Plan: (*Cognitor).planCrisis},
		{Name: "ANSWER_FAVOR", Plan: (*Cognitor).planFavor},
		{Name: "RELEASE_FINISHED_FILMS", Plan: (*Cognitor).planRelease},
		{Name: "STAY_LIQUID", Plan: (*Cognitor).planBorrow},
		{Name: "KEEP_STAGES_BUSY", Plan: (*Cognitor).planGreenlight},
		{Name: "BUILD_CATALOG", Plan: (*Cognitor).planInvest},
	}
}

// Decide evaluates the state and produces exactly one decision. Blocked
// actions fall through to the next objective; with nothing left the week
// advances.
func (c *Cognitor) Decide(state *StudioState) *Decision {
	if state.Week != c.blockedWeek {
		c.blockedWeek = state.Week
		c.blocked = make(map[Action]bool)
	}

	for _, obj := range c.objectives {
		d := obj.Plan(c, state)
		if d == nil || c.blocked[d.Action] {
			continue
		}
		if rule, ok := c.runGuards(state, d); !ok {
			c.logger.Warn("autopilot guard " + rule + " blocked " + string(d.Action))
			continue
		}
		d.Approved = true
		c.logger.Event("COGNITION", "autopilot", fmt.Sprintf("%s: %s", obj.Name, d.Justification))
		return d
	}

	if !c.policy.Advance {
		return &Decision{Action: ActionIdle, Justification: "Waiting for the studio clock."}
	}
	d := &Decision{
		Action:        ActionAdvance,
		Command:       network.Command{Type: network.CmdAdvanceWeek},
		Justification: "Nothing else to do this week.",
	}
	if _, ok := c.runGuards(state, d); !ok {
		return &Decision{Action: ActionIdle, Justification: "The books are frozen."}
	}
	d.Approved = true
	return d
}

// Block records that the studio rejected action this week.
func (c *Cognitor) Block(action Action) {
	c.blocked[action] = true
}

func (c *Cognitor) runGuards(state *StudioState, d *Decision) (string, bool) {
	for _, rule := range c.guards {
		if !rule.Check(state, d) {
			return rule.Name, false
		}
	}
	return "", true
}

func (c *Cognitor) planCrisis(state *StudioState) *Decision {
	if state.Awaiting == nil || state.Awaiting.Kind != engine.DecisionCrisis {
		return nil
	}
	f, ok := state.Film(state.Awaiting.EntityID)
	if !ok || f.Crisis == nil || len(f.Crisis.Choices) == 0 {
		return nil
	}

	idx := bestChoice(f.Crisis.Choices, state.Cash)
	return &Decision{
		Action: ActionResolveCrisis,
		Target: f.ID,
		Command: command(network.CmdResolveCrisis, network.CrisisChoicePayload{
			ProductionID: f.ID,
			Choice:       idx,
		}),
		Justification: fmt.Sprintf("%s on %q: chose %q.", f.Crisis.Headline, f.Title, f.Crisis.Choices[idx].Label),
	}
}

// bestChoice prefers the affordable choice that protects quality the most,
// breaking ties on cost. With nothing affordable it takes the cheapest.
func bestChoice(choices []outcome.Choice, cash int64) int {
	best, cheapest := -1, 0
	for i, ch := range choices {
		if ch.Cost < choices[cheapest].Cost {
			cheapest = i
		}
		if ch.Cost > cash {
			continue
		}
		if best < 0 ||
			ch.Delta.Quality > choices[best].Delta.Quality ||
			(ch.Delta.Quality == choices[best].Delta.Quality && ch.Cost < choices[best].Cost) {
			best = i
		}
	}
	if best < 0 {
		return cheapest
	}
	return best
}

func (c *Cognitor) planFavor(state *StudioState) *Decision {
	if state.PendingFavor == nil {
		return nil
	}
	accept := state.Reputation >= c.policy.FavorFloor
	verb := "Refused"
	if accept {
		verb = "Accepted"
	}
	return &Decision{
		Action:        ActionResolveFavor,
		Target:        state.PendingFavor.ID,
		Command:       command(network.CmdResolveFavor, network.FavorPayload{Accept: accept}),
		Justification: fmt.Sprintf("%s %q at reputation %d.", verb, state.PendingFavor.Headline, state.Reputation),
	}
}

func (c *Cognitor) planRelease(state *StudioState) *Decision {
	for _, f := range state.Films {
		if f.Stage != film.StageReadyForRelease {
			continue
		}
		strategy := film.StrategyLimited
		switch {
		case state.Pressure == PressureCritical:
			strategy = film.StrategyDirectSale
		case f.FinalQuality >= c.policy.WideThreshold:
			strategy = film.StrategyWide
		}
		return &Decision{
			Action: ActionRelease,
			Target: f.ID,
			Command: command(network.CmdChooseDistribution, network.DistributionPayload{
				ProductionID: f.ID,
				Strategy:     strategy,
			}),
			Justification: fmt.Sprintf("%q finished at quality %d, releasing %s.", f.Title, f.FinalQuality, strategy),
		}
	}
	return nil
}

func (c *Cognitor) planBorrow(state *StudioState) *Decision {
	if state.Pressure != PressureHigh && state.Pressure != PressureCritical {
		return nil
	}
	lender := finance.LenderBank
	if !state.Rating.AtLeast(finance.RatingFair) {
		lender = finance.LenderPrivateBacker
	}
	return &Decision{
		Action:        ActionBorrow,
		Target:        string(lender),
		Command:       command(network.CmdApplyLoan, network.LoanPayload{Lender: lender, Amount: c.policy.LoanSize}),
		Justification: fmt.Sprintf("Cash at %d with %s pressure, borrowing from %s.", state.Cash, state.Pressure, lender),
	}
}

func (c *Cognitor) planGreenlight(state *StudioState) *Decision {
	if !state.CanGreenlight || state.Awaiting != nil {
		return nil
	}
	budget := (state.Cash - c.policy.CashReserve) / 2
	if budget > c.policy.MaxBudget {
		budget = c.policy.MaxBudget
	}
	budget -= budget % 10_000
	if budget < c.policy.MinBudget {
		return nil
	}
	s := c.scripts.Draft(budget)
	return &Decision{
		Action:        ActionGreenlight,
		Target:        s.Title,
		Command:       command(network.CmdGreenlight, s),
		Justification: fmt.Sprintf("A stage is free, greenlighting %q (%s) at %d.", s.Title, s.Genre, s.Budget),
	}
}

func (c *Cognitor) planInvest(state *StudioState) *Decision {
	for _, offer := range finance.InvestmentCatalog {
		if state.Owns(offer.Kind) {
			continue
		}
		if state.Cash-offer.Cost < 3*c.policy.CashReserve {
			continue
		}
		return &Decision{
			Action:        ActionInvest,
			Target:        string(offer.Kind),
			Command:       command(network.CmdBuyInvestment, network.InvestmentPayload{Kind: offer.Kind}),
			Justification: fmt.Sprintf("Surplus cash, buying %s for %d.", offer.Name, offer.Cost),
		}
	}
	return nil
}

func command(t network.CommandType, payload interface{}) network.Command {
	raw, _ := json.Marshal(payload)
	return network.Command{Type: t, Payload: raw}
}
