package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

const actorClock = "clock"

// Subsystem is one stage of the weekly tick. A subsystem must be safe to
// call again for the same week after it suspended.
type Subsystem interface {
	Name() string
	Tick(ctx context.Context, tc *TickContext) (*Suspension, error)
}

// SimulationClock advances the state one week at a time by running its
// subsystems in order. The order is the contract: production, then box
// office, then the ledger.
type SimulationClock struct {
	subsystems []Subsystem
	calendar   Calendar
	eventLog   *events.EventLog
	logger     *logger.Logger
}

// NewSimulationClock creates a clock over an ordered subsystem list.
func NewSimulationClock(calendar Calendar, eventLog *events.EventLog, log *logger.Logger, subsystems ...Subsystem) *SimulationClock {
	return &SimulationClock{
		subsystems: subsystems,
		calendar:   calendar,
		eventLog:   eventLog,
		logger:     log,
	}
}

// Order returns the subsystem names in tick order.
func (c *SimulationClock) Order() []string {
	names := make([]string, len(c.subsystems))
	for i, s := range c.subsystems {
		names[i] = s.Name()
	}
	return names
}

// AdvanceWeek runs one week, or resumes a suspended one at the stage that
// suspended. A suspended week returns a report with Suspended set and leaves
// the week counter alone.
func (c *SimulationClock) AdvanceWeek(ctx context.Context, st *SimulationState) (WeekReport, error) {
	if st.Halted != nil {
		return WeekReport{}, apperrors.Wrap(apperrors.KindInvariant, apperrors.CodeEngineHalted,
			"engine halted after an invariant violation", st.Halted)
	}
	if st.Awaiting != nil {
		return WeekReport{}, apperrors.Validation(apperrors.CodeAwaitingDecision, "a decision is required before the week can close").
			With("kind", string(st.Awaiting.Kind)).
			With("entity", st.Awaiting.EntityID)
	}
	if err := ctx.Err(); err != nil {
		return WeekReport{}, err
	}

	week := st.ProcessingWeek()
	year := c.calendar.CurrentYear(week)
	if st.inProgress == nil {
		st.inProgress = &WeekReport{Week: week, Year: year, CashBefore: st.Ledger.Cash}
		st.resumeAt = 0
	}
	tc := &TickContext{State: st, Week: week, Year: year, Report: st.inProgress}

	for i := st.resumeAt; i < len(c.subsystems); i++ {
		sub := c.subsystems[i]
		suspension, err := sub.Tick(ctx, tc)
		if err != nil {
			if apperrors.IsInvariant(err) {
				st.Halted = err
				c.eventLog.Append(events.New(events.EventTypeEngineHalted, actorClock, "", week, err.Error()))
				c.logger.Error(fmt.Sprintf("engine halted in %s during week %d: %v", sub.Name(), week, err))
			}
			return WeekReport{}, err
		}
		if suspension != nil {
			st.resumeAt = i
			st.Awaiting = &Awaiting{Kind: suspension.Kind, EntityID: suspension.EntityID, Week: week}

			report := st.inProgress.clone()
			report.Suspended = true
			awaiting := *st.Awaiting
			report.Awaiting = &awaiting
			report.CashAfter = st.Ledger.Cash

			c.eventLog.Append(events.New(events.EventTypeDecisionRequired, actorClock, suspension.EntityID, week, *st.Awaiting))
			c.logger.Info("week " + strconv.Itoa(week) + " suspended: " + string(suspension.Kind) + " on " + suspension.EntityID)
			return report, nil
		}
	}

	st.Week = week
	report := st.inProgress.clone()
	report.CashAfter = st.Ledger.Cash
	report.Rating = st.Ledger.Rating
	report.Score = st.Ledger.Score
	st.inProgress = nil
	st.resumeAt = 0

	c.eventLog.Append(events.New(events.EventTypeWeekAdvanced, actorClock, "", week, report))
	return report, nil
}
