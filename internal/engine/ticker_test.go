package engine

import (
	"context"
	"testing"
	"time"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
)

func TestTickerPausesForDecisions(t *testing.T) {
	e := newTestEngine(t, &scriptedRoller{floats: []float64{0.0}, fallback: 0.99})
	p, err := e.Greenlight(testScript(100_000))
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.NewCollector()
	ticker := NewTicker(e, time.Hour, logger.Discard(), m)

	var reports []WeekReport
	ticker.OnWeek(func(r WeekReport) { reports = append(reports, r) })

	ctx := context.Background()
	if !ticker.Tick(ctx) {
		t.Fatal("ticker stopped on a suspension")
	}
	if len(reports) != 1 || !reports[0].Suspended {
		t.Fatalf("expected one suspended report, got %+v", reports)
	}

	if !ticker.Tick(ctx) {
		t.Fatal("ticker stopped while waiting")
	}
	if len(reports) != 1 {
		t.Fatal("ticker advanced while a decision was pending")
	}

	if _, err := e.ResolveCrisis(p.ID, 1); err != nil {
		t.Fatal(err)
	}
	ticker.Tick(ctx)
	if len(reports) != 2 || reports[1].Suspended || reports[1].Week != 1 {
		t.Fatalf("expected week 1 to close after the decision, got %+v", reports)
	}
	if m.TickCount != 2 || m.WeeksCompleted != 1 {
		t.Fatalf("expected 2 ticks and 1 closed week, got ticks=%d weeks=%d", m.TickCount, m.WeeksCompleted)
	}
	if m.CrisesTriggered != 1 {
		t.Fatalf("expected one crisis recorded, got %d", m.CrisesTriggered)
	}
}

func TestTickerStopsWhenHalted(t *testing.T) {
	e := newTestEngine(t, quietRoller())
	p := film.NewProduction("stuck", testScript(100_000), 0)
	p.Stage = &film.InProduction{Phase: film.PhaseCompleted}
	e.state.Productions = append(e.state.Productions, p)

	ticker := NewTicker(e, time.Hour, logger.Discard(), nil)
	if ticker.Tick(context.Background()) {
		t.Fatal("expected ticker to stop once the engine halted")
	}
}

func TestTickerStop(t *testing.T) {
	e := newTestEngine(t, quietRoller())
	ticker := NewTicker(e, time.Millisecond, logger.Discard(), nil)

	done := make(chan struct{})
	go func() {
		ticker.Start(context.Background())
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	ticker.Stop()
	ticker.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
	if e.Snapshot().Week == 0 {
		t.Fatal("expected the ticker to have advanced at least one week")
	}
}
