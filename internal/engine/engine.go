package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// Options configures a new Engine. Zero-valued collaborators get defaults.
type Options struct {
	StartingCash       int64
	StartingReputation int
	TransactionLogCap  int

	Roller     Roller
	Calendar   Calendar
	Gate       ContentGate
	Facilities FacilityProvider
	Reputation ReputationStore
}

// Engine is the public face of the simulation. It wires the subsystems to a
// single SimulationState and serializes every call, because the server shares
// one Engine between HTTP handlers, the ticker and WebSocket commands.
type Engine struct {
	mu    sync.Mutex
	state *SimulationState

	clock     *SimulationClock
	resolver  *ResolutionEngine
	pipeline  *ProductionPipeline
	boxOffice *BoxOfficeEngine
	ledger    *FinancialLedger

	calendar   Calendar
	reputation ReputationStore
	eventLog   *events.EventLog
	logger     *logger.Logger
}

// NewEngine initializes the core systems and their shared state.
func NewEngine(opts Options, eventLog *events.EventLog, log *logger.Logger) *Engine {
	if opts.Calendar == nil {
		opts.Calendar = FixedCalendar{StartYear: 1950}
	}
	if opts.Gate == nil {
		opts.Gate = OpenGate{}
	}
	if opts.Facilities == nil {
		opts.Facilities = BasicLot{MaxProductions: 2}
	}
	if opts.Reputation == nil {
		opts.Reputation = NewMemoryReputation(opts.StartingReputation)
	}
	if opts.Roller == nil {
		panic("engine: Options.Roller is required")
	}
	if eventLog == nil {
		eventLog = events.NewEventLog(nil)
	}
	if log == nil {
		log = logger.Discard()
	}

	resolver := NewResolutionEngine(opts.Roller, opts.Reputation)
	ledger := NewFinancialLedger(resolver, opts.Reputation, opts.Facilities, eventLog, log.With("system", actorLedger))
	pipeline := NewProductionPipeline(resolver, ledger, opts.Gate, opts.Facilities, eventLog, log.With("system", actorProduction))
	boxOffice := NewBoxOfficeEngine(resolver, ledger, opts.Calendar, eventLog, log.With("system", actorBoxOffice))

	e := &Engine{
		state:      NewSimulationState(opts.StartingCash, opts.TransactionLogCap),
		clock:      NewSimulationClock(opts.Calendar, eventLog, log.With("system", actorClock), pipeline, boxOffice, ledger),
		resolver:   resolver,
		pipeline:   pipeline,
		boxOffice:  boxOffice,
		ledger:     ledger,
		calendar:   opts.Calendar,
		reputation: opts.Reputation,
		eventLog:   eventLog,
		logger:     log,
	}
	ledger.RecomputeCredit(e.state.Ledger, 0)
	return e
}

// Greenlight starts a production from a script and reserves its budget.
func (e *Engine) Greenlight(s film.Script) (*film.Production, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pipeline.Greenlight(e.state, s)
	if err != nil {
		return nil, e.report(err)
	}
	return p.Clone(), nil
}

// AdvanceWeek runs or resumes one simulation week.
func (e *Engine) AdvanceWeek(ctx context.Context) (WeekReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report, err := e.clock.AdvanceWeek(ctx, e.state)
	if err != nil {
		return report, e.report(err)
	}
	return report, nil
}

// ChooseDistribution releases a finished film.
func (e *Engine) ChooseDistribution(productionID string, strategy film.Strategy) (*film.TheatricalRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, err := e.boxOffice.ChooseDistribution(e.state, productionID, strategy)
	if err != nil {
		return nil, e.report(err)
	}
	return run.Clone(), nil
}

// ResolveCrisis applies one choice to a production's pending crisis.
func (e *Engine) ResolveCrisis(productionID string, choiceIndex int) (film.ResolvedCrisis, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.pipeline.ResolveCrisis(e.state, productionID, choiceIndex)
	if err != nil {
		return entry, e.report(err)
	}
	return entry, nil
}

// ResolveFavor accepts or refuses the pending favor demand.
func (e *Engine) ResolveFavor(accept bool) (outcome.Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied, err := e.ledger.ResolveFavor(e.state, accept, e.state.ProcessingWeek())
	if err != nil {
		return applied, e.report(err)
	}
	return applied, nil
}

// ApplyLoan originates a loan from lender.
func (e *Engine) ApplyLoan(lender finance.LenderType, amount int64) (*finance.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loan, err := e.ledger.ApplyLoan(e.state.Ledger, lender, amount, e.state.Week)
	if err != nil {
		return nil, e.report(err)
	}
	c := *loan
	return &c, nil
}

// BuyInvestment purchases a catalog asset.
func (e *Engine) BuyInvestment(kind finance.InvestmentKind) (*finance.Investment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inv, err := e.ledger.BuyInvestment(e.state.Ledger, kind, e.state.Week)
	if err != nil {
		return nil, e.report(err)
	}
	c := *inv
	c.Tags = append([]string(nil), inv.Tags...)
	return &c, nil
}

// CanStartNewProduction reports whether facilities allow another greenlight.
func (e *Engine) CanStartNewProduction() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.CanStartNewProduction(e.state)
}

// Awaiting returns the pending decision, or nil.
func (e *Engine) Awaiting() *Awaiting {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Awaiting == nil {
		return nil
	}
	a := *e.state.Awaiting
	return &a
}

// Halted reports whether an invariant violation stopped the engine.
func (e *Engine) Halted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Halted
}

// GetEventLog exposes the event log for persistence and broadcasting.
func (e *Engine) GetEventLog() *events.EventLog {
	return e.eventLog
}

// report logs invariant violations loudly. Validation failures are the
// caller's to present and pass through untouched.
func (e *Engine) report(err error) error {
	if apperrors.IsInvariant(err) {
		e.logger.Error(fmt.Sprintf("invariant violation: %v", err))
	}
	return err
}
