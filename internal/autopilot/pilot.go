package autopilot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// maxStepsPerWeek bounds how many commands the pilot issues before it gives
// up on a week.
const maxStepsPerWeek = 16

// Summary is a running tally of what the pilot did.
type Summary struct {
	WeeksAdvanced int            `json:"weeks_advanced"`
	Suspensions   int            `json:"suspensions"`
	Rejected      int            `json:"rejected"`
	Decisions     map[Action]int `json:"decisions"`
	LastWeek      int            `json:"last_week"`
	LastCash      int64          `json:"last_cash"`
	Halted        bool           `json:"halted"`
}

// Pilot orchestrates the Perceive-Decide-Act loop.
type Pilot struct {
	perceiver *Perceiver
	cognitor  *Cognitor
	executor  *Executor
	logger    *logger.Logger
	interval  time.Duration

	stopChan chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	summary Summary
}

// NewPilot wires the loop around sink.
func NewPilot(sink Sink, policy Policy, pick Picker, interval time.Duration, log *logger.Logger) *Pilot {
	if interval <= 0 {
		interval = time.Second
	}
	return &Pilot{
		perceiver: NewPerceiver(sink, log),
		cognitor:  NewCognitor(policy, NewScriptWriter(pick), log),
		executor:  NewExecutor(sink, log),
		logger:    log,
		interval:  interval,
		stopChan:  make(chan struct{}),
		summary:   Summary{Decisions: make(map[Action]int)},
	}
}

// Step runs one Perceive-Decide-Act cycle.
func (p *Pilot) Step(ctx context.Context) (*Decision, network.Envelope, error) {
	state, err := p.perceiver.Perceive(ctx)
	if err != nil {
		return nil, network.Envelope{}, fmt.Errorf("perceive: %w", err)
	}

	p.mu.Lock()
	p.summary.LastWeek = state.Week
	p.summary.LastCash = state.Cash
	p.summary.Halted = state.Halted
	p.mu.Unlock()

	decision := p.cognitor.Decide(state)
	env, err := p.executor.Execute(ctx, decision)
	if err != nil {
		return decision, env, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if decision.Action == ActionIdle {
		return decision, env, nil
	}
	p.summary.Decisions[decision.Action]++
	if env.Error != nil {
		p.summary.Rejected++
		p.cognitor.Block(decision.Action)
		return decision, env, nil
	}
	if decision.Action == ActionAdvance {
		report, err := weekReport(env.Data)
		if err != nil {
			return decision, env, err
		}
		if report.Suspended {
			p.summary.Suspensions++
		} else {
			p.summary.WeeksAdvanced++
		}
		p.summary.LastWeek = report.Week
		p.summary.LastCash = report.CashAfter
	}
	return decision, env, nil
}

// PlayWeek steps until one week closes. It returns false when the pilot had
// nothing it could do, which happens once the books halt or when the clock
// belongs to the server.
func (p *Pilot) PlayWeek(ctx context.Context) (bool, error) {
	for i := 0; i < maxStepsPerWeek; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		d, env, err := p.Step(ctx)
		if err != nil {
			return false, err
		}
		if d.Action == ActionIdle {
			return false, nil
		}
		if d.Action == ActionAdvance && env.Error == nil {
			report, _ := weekReport(env.Data)
			if !report.Suspended {
				return true, nil
			}
		}
	}
	return false, fmt.Errorf("no week closed after %d commands", maxStepsPerWeek)
}

// RunWeeks plays n weeks back to back, stopping early if the books halt.
func (p *Pilot) RunWeeks(ctx context.Context, n int) (Summary, error) {
	for played := 0; played < n; played++ {
		closed, err := p.PlayWeek(ctx)
		if err != nil {
			return p.Summary(), err
		}
		if !closed {
			break
		}
	}
	return p.Summary(), nil
}

// Start plays one week per interval until stopped. Call in a goroutine.
func (p *Pilot) Start(ctx context.Context) {
	p.logger.Info("Autopilot engaged, one pass every " + p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Autopilot disengaged.")
			return
		case <-p.stopChan:
			p.logger.Info("Autopilot stopped manually.")
			return
		case <-ticker.C:
			if _, err := p.PlayWeek(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("autopilot pass failed: " + err.Error())
			}
			if p.Summary().Halted {
				p.logger.Error("studio books halted, autopilot standing down")
				return
			}
		}
	}
}

// Stop halts the loop.
func (p *Pilot) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

// Summary returns a copy of the tally.
func (p *Pilot) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.summary
	s.Decisions = make(map[Action]int, len(p.summary.Decisions))
	for k, v := range p.summary.Decisions {
		s.Decisions[k] = v
	}
	return s
}

// weekReport reads the reply to ADVANCE_WEEK from either sink.
func weekReport(data interface{}) (engine.WeekReport, error) {
	switch v := data.(type) {
	case engine.WeekReport:
		return v, nil
	case json.RawMessage:
		var r engine.WeekReport
		if err := json.Unmarshal(v, &r); err != nil {
			return r, fmt.Errorf("decode week report: %w", err)
		}
		return r, nil
	default:
		return engine.WeekReport{}, fmt.Errorf("unexpected week report payload %T", data)
	}
}
