package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
)

// DefaultTickRate is how often the real-time driver advances a week.
const DefaultTickRate = 30 * time.Second

// WeekListener is called after every AdvanceWeek the ticker performs,
// suspended weeks included.
type WeekListener func(report WeekReport)

// Ticker drives the engine in real time. It skips beats while a decision is
// pending and stops for good once the engine halts.
type Ticker struct {
	engine    *Engine
	logger    *logger.Logger
	metrics   *metrics.Collector
	interval  time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex
	listeners []WeekListener
}

// NewTicker creates a driver for e.
func NewTicker(e *Engine, interval time.Duration, log *logger.Logger, m *metrics.Collector) *Ticker {
	if interval <= 0 {
		interval = DefaultTickRate
	}
	return &Ticker{
		engine:   e,
		logger:   log,
		metrics:  m,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// OnWeek registers fn to be called after each tick.
func (t *Ticker) OnWeek(fn WeekListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Start begins the loop. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("Studio ticker started, one week every " + t.interval.String())

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Studio ticker stopped by context.")
			return
		case <-t.stopChan:
			t.logger.Info("Studio ticker stopped manually.")
			return
		case <-ticker.C:
			if !t.Tick(ctx) {
				return
			}
		}
	}
}

// Stop gracefully stops the ticker.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Tick performs one beat. It returns false when the engine has halted.
func (t *Ticker) Tick(ctx context.Context) bool {
	if a := t.engine.Awaiting(); a != nil {
		t.logger.Info(fmt.Sprintf("waiting on %s decision for %s", a.Kind, a.EntityID))
		return true
	}

	start := time.Now()
	report, err := t.engine.AdvanceWeek(ctx)
	if t.metrics != nil {
		t.metrics.RecordTick(time.Since(start))
	}
	if err != nil {
		if t.engine.Halted() != nil {
			t.logger.Error("engine halted, ticker stopping: " + err.Error())
			return false
		}
		t.logger.Warn("week not advanced: " + err.Error())
		return true
	}
	if t.metrics != nil && !report.Suspended {
		t.metrics.RecordWeek(report.CashAfter, len(report.Crises), len(report.Completed), len(report.Archived), report.Revenue)
	}

	t.mu.Lock()
	listeners := append([]WeekListener(nil), t.listeners...)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(report)
	}
	return true
}
