package autopilot

import (
	"encoding/json"
	"testing"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// firstPick always takes the first option.
type firstPick struct{}

func (firstPick) Intn(int) int { return 0 }

func newTestCognitor() *Cognitor {
	return NewCognitor(DefaultPolicy(), NewScriptWriter(firstPick{}), logger.Discard())
}

func idleState(cash int64) *StudioState {
	return &StudioState{
		Week:       3,
		Cash:       cash,
		Reputation: 50,
		Rating:     finance.RatingGood,
		Pressure:   pressureFor(cash),
	}
}

func TestBestChoice(t *testing.T) {
	choices := []outcome.Choice{
		{Label: "Cut the scene", Cost: 0, Delta: outcome.Delta{Quality: -6}},
		{Label: "Reshoot", Cost: 40_000, Delta: outcome.Delta{Quality: 2}},
		{Label: "Hire a doctor", Cost: 25_000, Delta: outcome.Delta{Quality: 2}},
	}
	tests := []struct {
		name string
		cash int64
		want int
	}{
		{"prefers quality then cost", 100_000, 2},
		{"skips what it cannot afford", 30_000, 2},
		{"only the free choice fits", 10_000, 0},
		{"nothing affordable takes the cheapest", -5_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bestChoice(choices, tt.cash); got != tt.want {
				t.Errorf("expected choice %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDecideAnswersCrisisFirst(t *testing.T) {
	c := newTestCognitor()
	st := idleState(400_000)
	st.CanGreenlight = true
	st.Awaiting = &engine.Awaiting{Kind: engine.DecisionCrisis, EntityID: "p1", Week: 3}
	st.Films = []FilmView{{
		ID:    "p1",
		Title: "Lonely Frontier",
		Stage: film.StageInProduction,
		Crisis: &film.Crisis{
			ID:       "c1",
			Headline: "Lead actor walks out",
			Choices: []outcome.Choice{
				{Label: "Recast", Cost: 30_000, Delta: outcome.Delta{Quality: -2}},
				{Label: "Pay up", Cost: 60_000},
			},
		},
	}}

	d := c.Decide(st)
	if d.Action != ActionResolveCrisis || !d.Approved {
		t.Fatalf("expected approved crisis resolution, got %+v", d)
	}
	var p network.CrisisChoicePayload
	if err := json.Unmarshal(d.Command.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.ProductionID != "p1" || p.Choice != 1 {
		t.Errorf("expected choice 1 on p1, got %+v", p)
	}
}

func TestDecideReleaseStrategy(t *testing.T) {
	tests := []struct {
		name    string
		cash    int64
		quality int
		want    film.Strategy
	}{
		{"strong film opens wide", 400_000, 70, film.StrategyWide},
		{"weak film goes limited", 400_000, 40, film.StrategyLimited},
		{"broke studio sells direct", -20_000, 70, film.StrategyDirectSale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := idleState(tt.cash)
			st.Films = []FilmView{{ID: "p9", Title: "Silver Alibi", Stage: film.StageReadyForRelease, FinalQuality: tt.quality}}

			d := newTestCognitor().Decide(st)
			if d.Action != ActionRelease {
				t.Fatalf("expected release, got %s", d.Action)
			}
			var p network.DistributionPayload
			if err := json.Unmarshal(d.Command.Payload, &p); err != nil {
				t.Fatal(err)
			}
			if p.Strategy != tt.want {
				t.Errorf("expected %s, got %s", tt.want, p.Strategy)
			}
		})
	}
}

func TestDecideBorrowsUnderPressure(t *testing.T) {
	st := idleState(60_000)
	d := newTestCognitor().Decide(st)
	if d.Action != ActionBorrow || d.Target != string(finance.LenderBank) {
		t.Fatalf("expected a bank loan, got %+v", d)
	}

	st.Rating = finance.RatingPoor
	d = newTestCognitor().Decide(st)
	if d.Target != string(finance.LenderPrivateBacker) {
		t.Errorf("expected a private backer at a poor rating, got %s", d.Target)
	}

	st.TotalDebt = 350_000
	d = newTestCognitor().Decide(st)
	if d.Action != ActionAdvance {
		t.Errorf("expected the debt ceiling to block borrowing, got %s", d.Action)
	}
}

func TestDecideGreenlightSizing(t *testing.T) {
	st := idleState(600_000)
	st.CanGreenlight = true

	d := newTestCognitor().Decide(st)
	if d.Action != ActionGreenlight {
		t.Fatalf("expected greenlight, got %s", d.Action)
	}
	var s film.Script
	if err := json.Unmarshal(d.Command.Payload, &s); err != nil {
		t.Fatal(err)
	}
	if s.Budget != 250_000 || s.Title != "Midnight Harbor" || s.Genre != film.GenreDrama {
		t.Errorf("unexpected script %+v", s)
	}

	st.Cash = 210_000
	st.Pressure = pressureFor(st.Cash)
	d = newTestCognitor().Decide(st)
	if err := json.Unmarshal(d.Command.Payload, &s); err != nil {
		t.Fatal(err)
	}
	if s.Budget != 50_000 {
		t.Errorf("expected budget rounded down to 50000, got %d", s.Budget)
	}

	st.Cash = 180_000
	st.Pressure = pressureFor(st.Cash)
	if d = newTestCognitor().Decide(st); d.Action != ActionAdvance {
		t.Errorf("expected no greenlight below the minimum budget, got %s", d.Action)
	}
}

func TestDecideInvestsOnlyWithSurplus(t *testing.T) {
	st := idleState(400_000)
	d := newTestCognitor().Decide(st)
	if d.Action != ActionInvest || d.Target != string(finance.InvestmentBacklotLease) {
		t.Fatalf("expected the backlot lease, got %+v", d)
	}

	st.Owned = []finance.InvestmentKind{finance.InvestmentBacklotLease}
	d = newTestCognitor().Decide(st)
	if d.Action != ActionAdvance {
		t.Errorf("expected nothing else affordable, got %+v", d)
	}
}

func TestBlockedActionWaitsForNextWeek(t *testing.T) {
	c := newTestCognitor()
	st := idleState(400_000)

	if d := c.Decide(st); d.Action != ActionInvest {
		t.Fatalf("expected invest, got %s", d.Action)
	}
	c.Block(ActionInvest)
	if d := c.Decide(st); d.Action != ActionAdvance {
		t.Fatalf("expected blocked invest to fall through, got %s", d.Action)
	}

	st.Week++
	if d := c.Decide(st); d.Action != ActionInvest {
		t.Errorf("expected block to clear with the week, got %s", d.Action)
	}
}

func TestHaltedBooksIdle(t *testing.T) {
	st := idleState(400_000)
	st.Halted = true
	if d := newTestCognitor().Decide(st); d.Action != ActionIdle || d.Approved {
		t.Fatalf("expected idle on halted books, got %+v", d)
	}

	p := DefaultPolicy()
	p.Advance = false
	c := NewCognitor(p, NewScriptWriter(firstPick{}), logger.Discard())
	st.Halted = false
	st.Owned = []finance.InvestmentKind{finance.InvestmentBacklotLease, finance.InvestmentFilmLibrary}
	if d := c.Decide(st); d.Action != ActionIdle {
		t.Errorf("expected idle when the server owns the clock, got %s", d.Action)
	}
}
