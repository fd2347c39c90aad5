package network

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/validation"
)

// Studio is the command surface of the simulation. *engine.Engine satisfies it.
type Studio interface {
	Greenlight(s film.Script) (*film.Production, error)
	AdvanceWeek(ctx context.Context) (engine.WeekReport, error)
	ChooseDistribution(productionID string, strategy film.Strategy) (*film.TheatricalRun, error)
	ResolveCrisis(productionID string, choiceIndex int) (film.ResolvedCrisis, error)
	ResolveFavor(accept bool) (outcome.Delta, error)
	ApplyLoan(lender finance.LenderType, amount int64) (*finance.Loan, error)
	BuyInvestment(kind finance.InvestmentKind) (*finance.Investment, error)
	Snapshot() engine.Snapshot
}

// Dispatcher routes decoded commands to the studio and shapes the reply.
type Dispatcher struct {
	studio  Studio
	logger  *logger.Logger
	metrics *metrics.Collector

	mu        sync.Mutex
	listeners []engine.WeekListener
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(studio Studio, log *logger.Logger, m *metrics.Collector) *Dispatcher {
	return &Dispatcher{studio: studio, logger: log, metrics: m}
}

// OnWeek registers fn to be called after a client-driven AdvanceWeek.
func (d *Dispatcher) OnWeek(fn engine.WeekListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Dispatch runs one command and always returns an envelope for the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Envelope {
	data, err := d.run(ctx, cmd)
	if err != nil {
		if d.metrics != nil {
			d.metrics.RecordRejectedCommand()
		}
		if apperrors.IsInvariant(err) {
			d.logger.Error(fmt.Sprintf("command %s hit an invariant: %v", cmd.Type, err))
		} else {
			d.logger.Warn(fmt.Sprintf("command %s rejected: %v", cmd.Type, err))
		}
		return Envelope{Type: MsgError, Command: cmd.Type, RequestID: cmd.RequestID, Error: errorDetail(err)}
	}
	return Envelope{Type: MsgResult, Command: cmd.Type, RequestID: cmd.RequestID, Data: data}
}

func (d *Dispatcher) run(ctx context.Context, cmd Command) (interface{}, error) {
	switch cmd.Type {
	case CmdGreenlight:
		var s film.Script
		if err := decode(cmd, &s); err != nil {
			return nil, err
		}
		return d.studio.Greenlight(s)

	case CmdAdvanceWeek:
		report, err := d.studio.AdvanceWeek(ctx)
		if err != nil {
			return nil, err
		}
		d.notify(report)
		return report, nil

	case CmdChooseDistribution:
		var p DistributionPayload
		if err := decode(cmd, &p); err != nil {
			return nil, err
		}
		return d.studio.ChooseDistribution(p.ProductionID, p.Strategy)

	case CmdResolveCrisis:
		var p CrisisChoicePayload
		if err := decode(cmd, &p); err != nil {
			return nil, err
		}
		return d.studio.ResolveCrisis(p.ProductionID, p.Choice)

	case CmdResolveFavor:
		var p FavorPayload
		if err := decode(cmd, &p); err != nil {
			return nil, err
		}
		return d.studio.ResolveFavor(p.Accept)

	case CmdApplyLoan:
		var p LoanPayload
		if err := decode(cmd, &p); err != nil {
			return nil, err
		}
		return d.studio.ApplyLoan(p.Lender, p.Amount)

	case CmdBuyInvestment:
		var p InvestmentPayload
		if err := decode(cmd, &p); err != nil {
			return nil, err
		}
		return d.studio.BuyInvestment(p.Kind)

	case CmdSnapshot:
		return d.studio.Snapshot(), nil

	default:
		return nil, apperrors.Validation(apperrors.CodeMalformedCommand, "unknown command type").
			With("type", string(cmd.Type))
	}
}

func (d *Dispatcher) notify(report engine.WeekReport) {
	d.mu.Lock()
	listeners := append([]engine.WeekListener(nil), d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(report)
	}
}

// payloadRules checks the validate tags on command payloads. Scripts are
// checked by the engine, which owns their domain rules.
var payloadRules = validation.New()

func decode(cmd Command, target interface{}) error {
	if len(cmd.Payload) == 0 {
		return apperrors.Validation(apperrors.CodeMalformedCommand, "missing payload").
			With("type", string(cmd.Type))
	}
	if err := json.Unmarshal(cmd.Payload, target); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, apperrors.CodeMalformedCommand, "invalid payload", err).
			With("type", string(cmd.Type))
	}
	if _, isScript := target.(*film.Script); isScript {
		return nil
	}
	if err := payloadRules.Check(target, apperrors.CodeMalformedCommand); err != nil {
		var appErr *apperrors.Error
		if stderrors.As(err, &appErr) {
			return appErr.With("type", string(cmd.Type))
		}
		return err
	}
	return nil
}
