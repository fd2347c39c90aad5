package engine

import (
	"context"
	stderrors "errors"
	"math/rand"
	"testing"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// scriptedRoller replays queued draws, then falls back to fixed values.
type scriptedRoller struct {
	floats   []float64
	ints     []int
	fallback float64
}

func (r *scriptedRoller) Float64() float64 {
	if len(r.floats) > 0 {
		f := r.floats[0]
		r.floats = r.floats[1:]
		return f
	}
	return r.fallback
}

func (r *scriptedRoller) Intn(n int) int {
	if len(r.ints) > 0 {
		v := r.ints[0]
		r.ints = r.ints[1:]
		return v % n
	}
	return 0
}

// quietRoller never fires a crisis, shock or favor.
func quietRoller() *scriptedRoller {
	return &scriptedRoller{fallback: 0.99}
}

func newTestEngine(t *testing.T, roller Roller, mutate ...func(*Options)) *Engine {
	t.Helper()
	opts := Options{
		StartingCash:       600_000,
		StartingReputation: 50,
		TransactionLogCap:  200,
		Roller:             roller,
		Facilities:         BasicLot{MaxProductions: 3},
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewEngine(opts, events.NewEventLog(nil), logger.Discard())
}

func testScript(budget int64) film.Script {
	return film.Script{Title: "Sunset Drive", Genre: film.GenreDrama, Budget: budget, Quality: 60}
}

// injectReady places a finished film directly into the engine's state.
func injectReady(e *Engine, id string, budget int64, quality, completedWeek int) *film.Production {
	p := film.NewProduction(id, testScript(budget), 0)
	p.Stage = &film.ReadyForRelease{CompletedWeek: completedWeek, FinalQuality: quality}
	e.state.Productions = append(e.state.Productions, p)
	return p
}

func advance(t *testing.T, e *Engine, weeks int) WeekReport {
	t.Helper()
	var report WeekReport
	for i := 0; i < weeks; i++ {
		var err error
		report, err = e.AdvanceWeek(context.Background())
		if err != nil {
			t.Fatalf("week %d: unexpected error: %v", i+1, err)
		}
		if report.Suspended {
			t.Fatalf("week %d: unexpected suspension %+v", i+1, report.Awaiting)
		}
	}
	return report
}

func countCategory(snap Snapshot, cat finance.Category) int {
	n := 0
	for _, tx := range snap.Transactions {
		if tx.Category == cat {
			n++
		}
	}
	return n
}

func TestGreenlightReservesBudget(t *testing.T) {
	e := newTestEngine(t, quietRoller())

	p, err := e.Greenlight(testScript(100_000))
	if err != nil {
		t.Fatalf("greenlight failed: %v", err)
	}

	snap := e.Snapshot()
	if snap.Cash != 500_000 {
		t.Errorf("expected cash 500000, got %d", snap.Cash)
	}
	ip, ok := p.InFlight()
	if !ok || ip.Phase != film.PhaseDevelopment {
		t.Fatalf("expected Development, got %s", p.Phase())
	}
	if ip.WeeksInPhase != 0 {
		t.Errorf("expected 0 weeks elapsed, got %d", ip.WeeksInPhase)
	}
	if countCategory(snap, finance.CategoryGreenlight) != 1 {
		t.Errorf("expected one greenlight transaction")
	}
}

func TestGreenlightValidation(t *testing.T) {
	tests := []struct {
		name   string
		cash   int64
		script film.Script
		code   apperrors.Code
		field  string
	}{
		{"missing title", 600_000, film.Script{Genre: film.GenreDrama, Budget: 1, Quality: 50}, apperrors.CodeInvalidScript, "title"},
		{"blank title", 600_000, film.Script{Title: "   ", Genre: film.GenreDrama, Budget: 1, Quality: 50}, apperrors.CodeInvalidScript, "title"},
		{"bad genre", 600_000, film.Script{Title: "X", Genre: "Opera", Budget: 1, Quality: 50}, apperrors.CodeInvalidScript, "genre"},
		{"zero budget", 600_000, film.Script{Title: "X", Genre: film.GenreDrama, Quality: 50}, apperrors.CodeInvalidScript, "budget"},
		{"quality out of range", 600_000, film.Script{Title: "X", Genre: film.GenreDrama, Budget: 1, Quality: 101}, apperrors.CodeInvalidScript, "quality"},
		{"director skill", 600_000, film.Script{Title: "X", Genre: film.GenreDrama, Budget: 1, Quality: 50,
			Director: &film.Talent{Name: "D", Skill: -1}}, apperrors.CodeInvalidScript, "director.skill"},
		{"cast skill", 600_000, film.Script{Title: "X", Genre: film.GenreDrama, Budget: 1, Quality: 50,
			Cast: []film.Talent{{Name: "A", Skill: 50}, {Name: "B", Skill: 120}}}, apperrors.CodeInvalidScript, "cast[1].skill"},
		{"too poor", 50_000, testScript(100_000), apperrors.CodeInsufficientCash, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, quietRoller(), func(o *Options) { o.StartingCash = tt.cash })
			logged := e.GetEventLog().Len()
			_, err := e.Greenlight(tt.script)
			if !apperrors.IsValidation(err) || apperrors.CodeOf(err) != tt.code {
				t.Fatalf("expected %s validation, got %v", tt.code, err)
			}
			var appErr *apperrors.Error
			if tt.field != "" && (!stderrors.As(err, &appErr) || appErr.Metadata["field"] != tt.field) {
				t.Errorf("expected field %q, got %v", tt.field, err)
			}
			snap := e.Snapshot()
			if snap.Cash != tt.cash || len(snap.Productions) != 0 {
				t.Fatalf("expected no mutation, cash=%d productions=%d", snap.Cash, len(snap.Productions))
			}
			if n := e.GetEventLog().Len(); n != logged {
				t.Fatalf("expected the event log untouched, grew from %d to %d", logged, n)
			}
		})
	}
}

func TestProductionCap(t *testing.T) {
	e := newTestEngine(t, quietRoller(), func(o *Options) { o.Facilities = BasicLot{MaxProductions: 1} })

	if _, err := e.Greenlight(testScript(100_000)); err != nil {
		t.Fatalf("first greenlight failed: %v", err)
	}
	if e.CanStartNewProduction() {
		t.Fatal("expected cap to be reached")
	}
	_, err := e.Greenlight(testScript(100_000))
	if apperrors.CodeOf(err) != apperrors.CodeProductionCapReached {
		t.Fatalf("expected cap error, got %v", err)
	}
	if e.Snapshot().Cash != 500_000 {
		t.Fatal("expected rejected greenlight not to touch cash")
	}
}

type rejectGate struct{}

func (rejectGate) Review(film.Script) Verdict {
	return Verdict{Approved: false, Reason: "violates the production code"}
}

type changesGate struct{ verdict Verdict }

func (g changesGate) Review(film.Script) Verdict { return g.verdict }

func TestContentGate(t *testing.T) {
	t.Run("rejection", func(t *testing.T) {
		e := newTestEngine(t, quietRoller(), func(o *Options) { o.Gate = rejectGate{} })
		logged := e.GetEventLog().Len()
		_, err := e.Greenlight(testScript(100_000))
		if !apperrors.IsValidation(err) || apperrors.CodeOf(err) != apperrors.CodeContentRejected {
			t.Fatalf("expected content rejection, got %v", err)
		}
		if e.Snapshot().Cash != 600_000 {
			t.Fatal("expected cash untouched")
		}
		if e.GetEventLog().Len() != logged {
			t.Fatal("expected a rejected review to leave the event log alone")
		}
	})

	t.Run("required changes", func(t *testing.T) {
		gate := changesGate{Verdict{
			Approved:         true,
			RatingMultiplier: 0.8,
		}}
		gate.verdict.RequiredChanges.Quality = -10
		gate.verdict.RequiredChanges.Cash = -5_000
		e := newTestEngine(t, quietRoller(), func(o *Options) { o.Gate = gate })

		p, err := e.Greenlight(testScript(100_000))
		if err != nil {
			t.Fatalf("greenlight failed: %v", err)
		}
		if p.Quality != 50 {
			t.Errorf("expected quality 50 after changes, got %f", p.Quality)
		}
		if p.RatingMultiplier != 0.8 {
			t.Errorf("expected rating multiplier 0.8, got %f", p.RatingMultiplier)
		}
		if cash := e.Snapshot().Cash; cash != 495_000 {
			t.Errorf("expected cash 495000, got %d", cash)
		}
	})
}

func TestFullLifecycleWideRelease(t *testing.T) {
	e := newTestEngine(t, quietRoller())
	p, err := e.Greenlight(testScript(300_000))
	if err != nil {
		t.Fatalf("greenlight failed: %v", err)
	}

	report := advance(t, e, 24)
	if len(report.Completed) != 1 || report.Completed[0] != p.ID {
		t.Fatalf("expected film to complete in week 24, got %+v", report.Completed)
	}
	snap := e.Snapshot()
	view, _ := snap.Production(p.ID)
	ready, ok := view.Detail.(*film.ReadyForRelease)
	if !ok {
		t.Fatalf("expected ReadyForRelease, got %s", view.StageKind)
	}
	if ready.CompletedWeek != 24 {
		t.Errorf("expected completion in week 24, got %d", ready.CompletedWeek)
	}
	// Nominal spend stays under budget, so only the greenlight touched cash.
	if snap.Cash != 300_000 {
		t.Errorf("expected cash 300000, got %d", snap.Cash)
	}

	run, err := e.ChooseDistribution(p.ID, film.StrategyWide)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if run.StartWeek != 25 {
		t.Errorf("expected run to start in week 25, got %d", run.StartWeek)
	}
	if len(run.Weeks) != 4 {
		t.Fatalf("expected 4 scheduled weeks, got %d", len(run.Weeks))
	}
	if diff := run.ProjectedGross - run.ScheduledGross(); diff < 0 || diff > 4 {
		t.Errorf("schedule %d too far from total %d", run.ScheduledGross(), run.ProjectedGross)
	}

	first := advance(t, e, 1)
	if first.Revenue != run.Weeks[0].StudioShare {
		t.Errorf("expected first week revenue %d, got %d", run.Weeks[0].StudioShare, first.Revenue)
	}
	last := advance(t, e, 3)
	if len(last.Archived) != 1 {
		t.Fatalf("expected archive in the fourth run week, got %+v", last.Archived)
	}

	snap = e.Snapshot()
	view, _ = snap.Production(p.ID)
	archived, ok := view.Detail.(*film.Archived)
	if !ok {
		t.Fatalf("expected Archived, got %s", view.StageKind)
	}
	var studio int64
	for _, w := range run.Weeks {
		studio += w.StudioShare
	}
	if archived.NetProfit != studio-300_000-30_000 {
		t.Errorf("expected net %d, got %d", studio-300_000-30_000, archived.NetProfit)
	}
	if snap.Cash != 300_000-30_000+studio {
		t.Errorf("expected cash %d, got %d", 300_000-30_000+studio, snap.Cash)
	}
	if !archived.Run.Sealed {
		t.Error("expected sealed run")
	}
}

func TestSpendMonotonicAndQualityBounded(t *testing.T) {
	e := newTestEngine(t, rand.New(rand.NewSource(7)))
	for _, budget := range []int64{150_000, 220_000} {
		if _, err := e.Greenlight(testScript(budget)); err != nil {
			t.Fatalf("greenlight failed: %v", err)
		}
	}

	lastSpend := make(map[string]int64)
	check := func(step int) {
		for _, p := range e.Snapshot().Productions {
			if p.CumulativeSpend < lastSpend[p.ID] {
				t.Fatalf("step %d: spend for %s fell from %d to %d", step, p.ID, lastSpend[p.ID], p.CumulativeSpend)
			}
			lastSpend[p.ID] = p.CumulativeSpend
			if p.Quality < 0 || p.Quality > 100 {
				t.Fatalf("step %d: quality %f out of range", step, p.Quality)
			}
		}
	}

	ctx := context.Background()
	for step := 0; step < 120; step++ {
		report, err := e.AdvanceWeek(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		check(step)
		if report.Suspended {
			switch report.Awaiting.Kind {
			case DecisionCrisis:
				if _, err := e.ResolveCrisis(report.Awaiting.EntityID, step%3); err != nil {
					t.Fatalf("step %d: resolve crisis: %v", step, err)
				}
			case DecisionFavor:
				if _, err := e.ResolveFavor(step%2 == 0); err != nil {
					t.Fatalf("step %d: resolve favor: %v", step, err)
				}
			}
			check(step)
			continue
		}
		for _, p := range e.Snapshot().Productions {
			if p.StageKind == film.StageReadyForRelease {
				if _, err := e.ChooseDistribution(p.ID, film.StrategyLimited); err != nil && !apperrors.IsValidation(err) {
					t.Fatalf("step %d: release: %v", step, err)
				}
			}
		}
	}
	if e.Halted() != nil {
		t.Fatalf("engine halted: %v", e.Halted())
	}
}

func TestCrisisSuspendsAndResolvesOnce(t *testing.T) {
	// First draw fires the crisis roll; only the rewrite crisis can strike in Development.
	e := newTestEngine(t, &scriptedRoller{floats: []float64{0.0}, fallback: 0.99})
	p, err := e.Greenlight(testScript(100_000))
	if err != nil {
		t.Fatalf("greenlight failed: %v", err)
	}

	report, err := e.AdvanceWeek(context.Background())
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if !report.Suspended || report.Awaiting == nil || report.Awaiting.Kind != DecisionCrisis || report.Awaiting.EntityID != p.ID {
		t.Fatalf("expected crisis suspension for %s, got %+v", p.ID, report)
	}
	if e.Snapshot().Week != 0 {
		t.Fatal("expected suspended week not to count")
	}

	if _, err := e.AdvanceWeek(context.Background()); apperrors.CodeOf(err) != apperrors.CodeAwaitingDecision {
		t.Fatalf("expected AWAITING_DECISION, got %v", err)
	}
	if _, err := e.ResolveCrisis(p.ID, 7); apperrors.CodeOf(err) != apperrors.CodeInvalidChoice {
		t.Fatalf("expected INVALID_CHOICE, got %v", err)
	}
	if _, err := e.ResolveCrisis("nope", 0); apperrors.CodeOf(err) != apperrors.CodeUnknownProduction {
		t.Fatalf("expected UNKNOWN_PRODUCTION, got %v", err)
	}
	if e.Snapshot().Cash != 500_000 {
		t.Fatal("expected rejected choices not to touch cash")
	}

	entry, err := e.ResolveCrisis(p.ID, 0)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if entry.Kind != "SCRIPT_REWRITE" || entry.Cost != 4_000 {
		t.Fatalf("unexpected resolution %+v", entry)
	}

	_, err = e.ResolveCrisis(p.ID, 0)
	if !apperrors.IsInvariant(err) || apperrors.CodeOf(err) != apperrors.CodeCrisisAlreadyResolved {
		t.Fatalf("expected CRISIS_ALREADY_RESOLVED invariant, got %v", err)
	}
	if e.Halted() != nil {
		t.Fatal("a rejected resolution must not halt the engine")
	}

	report, err = e.AdvanceWeek(context.Background())
	if err != nil || report.Suspended || report.Week != 1 {
		t.Fatalf("expected week 1 to close, got %+v err=%v", report, err)
	}

	snap := e.Snapshot()
	view, _ := snap.Production(p.ID)
	if view.CumulativeSpend != 1_666+4_000 {
		t.Errorf("expected one week of accrual plus crisis cost, got %d", view.CumulativeSpend)
	}
	if view.CurrentBudget != 104_000 {
		t.Errorf("expected committed budget 104000, got %d", view.CurrentBudget)
	}
	if view.TotalDelayWeeks != 2 || len(view.CrisisLog) != 1 {
		t.Errorf("expected 2 weeks delay and one logged crisis, got %d / %d", view.TotalDelayWeeks, len(view.CrisisLog))
	}
	ip := view.Detail.(*film.InProduction)
	if ip.WeeksInPhase != 1 || ip.PhaseDelay != 2 {
		t.Errorf("expected 1 week in phase with 2 delay, got %d / %d", ip.WeeksInPhase, ip.PhaseDelay)
	}
	if snap.Cash != 496_000 {
		t.Errorf("expected cash 496000, got %d", snap.Cash)
	}
}

func TestInvariantHaltsEngine(t *testing.T) {
	e := newTestEngine(t, quietRoller())
	p := film.NewProduction("stuck", testScript(100_000), 0)
	p.Stage = &film.InProduction{Phase: film.PhaseCompleted}
	e.state.Productions = append(e.state.Productions, p)

	_, first := e.AdvanceWeek(context.Background())
	if !apperrors.IsInvariant(first) || apperrors.CodeOf(first) != apperrors.CodeTerminalPhase {
		t.Fatalf("expected terminal phase invariant, got %v", first)
	}
	if e.Halted() == nil {
		t.Fatal("expected engine to halt")
	}

	_, again := e.AdvanceWeek(context.Background())
	if apperrors.CodeOf(again) != apperrors.CodeEngineHalted {
		t.Fatalf("expected ENGINE_HALTED, got %v", again)
	}
	if !stderrors.Is(again, first) {
		t.Fatal("expected halted error to wrap the original violation")
	}
	if e.Snapshot().Halted == "" {
		t.Fatal("expected snapshot to report the halt")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEngine(t, quietRoller())
	p, _ := e.Greenlight(testScript(100_000))

	snap := e.Snapshot()
	snap.Productions[0].Quality = 0
	snap.Transactions[0].Amount = 1

	again := e.Snapshot()
	view, _ := again.Production(p.ID)
	if view.Quality != 60 {
		t.Fatal("snapshot mutation leaked into production")
	}
	if again.Transactions[0].Amount != -100_000 {
		t.Fatal("snapshot mutation leaked into the ledger")
	}
}

func TestEventsRecordEveryTransaction(t *testing.T) {
	log := events.NewEventLog(nil)
	e := NewEngine(Options{StartingCash: 600_000, StartingReputation: 50, Roller: quietRoller()}, log, logger.Discard())

	if _, err := e.Greenlight(testScript(100_000)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ApplyLoan(finance.LenderBank, 50_000); err != nil {
		t.Fatal(err)
	}
	advance(t, e, 2)

	var sum int64
	for _, ev := range log.GetByType(events.EventTypeTransaction) {
		sum += ev.Payload.(finance.Transaction).Amount
	}
	if 600_000+sum != e.Snapshot().Cash {
		t.Fatalf("transaction events do not reconstruct cash: %d vs %d", 600_000+sum, e.Snapshot().Cash)
	}
	if len(log.GetByType(events.EventTypeWeekAdvanced)) != 2 {
		t.Fatal("expected one WEEK_ADVANCED per closed week")
	}
}
