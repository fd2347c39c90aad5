package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/rules"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

const actorBoxOffice = "boxoffice"

// BoxOfficeEngine turns finished films into revenue. Theatrical runs pay out
// over a fixed decay schedule; direct sales pay once at the decision.
type BoxOfficeEngine struct {
	resolver *ResolutionEngine
	ledger   *FinancialLedger
	calendar Calendar
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewBoxOfficeEngine creates the box-office subsystem.
func NewBoxOfficeEngine(resolver *ResolutionEngine, ledger *FinancialLedger, calendar Calendar, eventLog *events.EventLog, log *logger.Logger) *BoxOfficeEngine {
	return &BoxOfficeEngine{
		resolver: resolver,
		ledger:   ledger,
		calendar: calendar,
		eventLog: eventLog,
		logger:   log,
	}
}

func (bo *BoxOfficeEngine) Name() string { return actorBoxOffice }

// ChooseDistribution releases a ReadyForRelease film through strategy.
func (bo *BoxOfficeEngine) ChooseDistribution(st *SimulationState, productionID string, strategy film.Strategy) (*film.TheatricalRun, error) {
	p := st.Production(productionID)
	if p == nil {
		return nil, apperrors.Validation(apperrors.CodeUnknownProduction, "no such production").
			With("production", productionID)
	}
	if !strategy.Valid() {
		return nil, apperrors.Validation(apperrors.CodeInvalidStrategy, "unknown distribution strategy").
			With("strategy", string(strategy))
	}
	ready, ok := p.Stage.(*film.ReadyForRelease)
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeNotReadyForRelease, "film is not ready for release").
			With("production", productionID).
			With("stage", string(p.Stage.Kind()))
	}

	if strategy == film.StrategyDirectSale {
		if bo.ledger.DistributionLocked(st.Ledger) {
			return nil, apperrors.Validation(apperrors.CodeDistributionLocked, "a distributor loan forbids direct sales").
				With("production", productionID)
		}
		return bo.directSale(st, p, ready), nil
	}

	spec, _ := rules.Strategy(strategy)
	if st.Ledger.Cash < spec.Marketing {
		return nil, apperrors.Validation(apperrors.CodeInsufficientCash, "not enough cash for the marketing campaign").
			With("marketing", strconv.FormatInt(spec.Marketing, 10)).
			With("cash", strconv.FormatInt(st.Ledger.Cash, 10))
	}
	return bo.release(st, p, ready, strategy, spec), nil
}

func (bo *BoxOfficeEngine) directSale(st *SimulationState, p *film.Production, ready *film.ReadyForRelease) *film.TheatricalRun {
	week := st.Week
	amount := rules.DirectSaleAmount(ready.FinalQuality)
	bo.ledger.ApplyDelta(st.Ledger, week, amount, finance.CategoryDirectSale, "direct sale of "+p.Title, p.ID)

	run := &film.TheatricalRun{
		Strategy:       film.StrategyDirectSale,
		ProjectedGross: amount,
		StartWeek:      week,
		GrossToDate:    amount,
		StudioRevenue:  amount,
		Sealed:         true,
	}
	bo.eventLog.Append(events.New(events.EventTypeFilmReleased, actorBoxOffice, p.ID, week, run.Clone()))
	bo.archive(st, p, ready.FinalQuality, run, week, nil)
	return run
}

func (bo *BoxOfficeEngine) release(st *SimulationState, p *film.Production, ready *film.ReadyForRelease, strategy film.Strategy, spec rules.StrategySpec) *film.TheatricalRun {
	week := st.Week
	bo.ledger.ApplyDelta(st.Ledger, week, -spec.Marketing, finance.CategoryMarketing, "marketing for "+p.Title, p.ID)

	projected := rules.ProjectGross(rules.GrossInputs{
		Quality:          ready.FinalQuality,
		AverageCastSkill: p.AverageCastSkill(),
		Genre:            p.Genre,
		Year:             bo.calendar.CurrentYear(st.ProcessingWeek()),
		Strategy:         strategy,
		RatingMultiplier: p.RatingMultiplier,
	})

	// Reception and shocks are independent draws.
	reception := Roll(bo.resolver, rules.ReceptionWeights(ready.FinalQuality))
	var shocks []film.MarketShock
	for _, s := range rules.MarketShocks {
		if bo.resolver.Chance(s.Probability) {
			shocks = append(shocks, film.MarketShock{Name: s.Name, Percent: s.Percent})
		}
	}
	adjusted := rules.ApplyShocks(projected*rules.ReceptionMultiplier(reception), shocks)
	total := rules.ClampGross(adjusted, strategy)

	startWeek := st.ProcessingWeek()
	if ready.CompletedWeek+1 > startWeek {
		startWeek = ready.CompletedWeek + 1
	}
	run := &film.TheatricalRun{
		Strategy:       strategy,
		Marketing:      spec.Marketing,
		Reception:      reception,
		Shocks:         shocks,
		ProjectedGross: total,
		Weeks:          rules.SplitSchedule(total, strategy),
		StartWeek:      startWeek,
	}
	p.Stage = &film.InTheaters{FinalQuality: ready.FinalQuality, Run: run}

	bo.eventLog.Append(events.New(events.EventTypeFilmReleased, actorBoxOffice, p.ID, week, run.Clone()))
	bo.logger.Event("FILM_RELEASED", p.ID,
		fmt.Sprintf("%q opens %s, %s reception, projected $%s", p.Title, strategy, reception, humanize.Comma(total)))
	return run
}

// Tick pays the current week of every run that has started, then archives
// runs whose schedule is exhausted. A run pays at most once per simulation
// week, so a tick retried after cancellation skips runs it already paid.
func (bo *BoxOfficeEngine) Tick(ctx context.Context, tc *TickContext) (*Suspension, error) {
	st := tc.State
	for _, p := range st.Productions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		showing, ok := p.Stage.(*film.InTheaters)
		if !ok {
			continue
		}
		run := showing.Run
		if run.Sealed || run.StartWeek > tc.Week || run.LastPaidWeek >= tc.Week {
			continue
		}

		if !run.Exhausted() {
			w := run.Weeks[run.WeekPointer]
			cut := bo.ledger.ProfitShareCut(st.Ledger, w.StudioShare)
			bo.ledger.ApplyDelta(st.Ledger, tc.Week, w.StudioShare, finance.CategoryBoxOffice,
				fmt.Sprintf("%s week %d", p.Title, run.WeekPointer+1), p.ID)
			bo.ledger.ApplyDelta(st.Ledger, tc.Week, -cut, finance.CategoryProfitShare,
				"investor share of "+p.Title, p.ID)

			run.WeekPointer++
			run.LastPaidWeek = tc.Week
			run.GrossToDate += w.Gross
			run.StudioRevenue += w.StudioShare - cut
			tc.Report.Revenue += w.StudioShare - cut

			bo.eventLog.Append(events.New(events.EventTypeBoxOfficeWeek, actorBoxOffice, p.ID, tc.Week, map[string]interface{}{
				"week":         run.WeekPointer,
				"gross":        w.Gross,
				"studio_share": w.StudioShare,
				"profit_share": cut,
			}))
		}

		if run.Exhausted() {
			run.Sealed = true
			bo.archive(st, p, showing.FinalQuality, run, tc.Week, tc.Report)
		}
	}
	return nil, nil
}

// archive seals a film's books. NetProfit is studio revenue less the cash
// committed to the film and its marketing.
func (bo *BoxOfficeEngine) archive(st *SimulationState, p *film.Production, finalQuality int, run *film.TheatricalRun, week int, report *WeekReport) {
	net := run.StudioRevenue - p.CurrentBudget - run.Marketing
	p.Stage = &film.Archived{
		FinalQuality: finalQuality,
		Run:          run,
		NetProfit:    net,
		ArchivedWeek: week,
	}
	bo.ledger.RecordFilmResult(st.Ledger, run.GrossToDate, net)
	if report != nil {
		report.Archived = append(report.Archived, p.ID)
	}

	bo.eventLog.Append(events.New(events.EventTypeFilmArchived, actorBoxOffice, p.ID, week, map[string]interface{}{
		"strategy":   run.Strategy,
		"gross":      run.GrossToDate,
		"revenue":    run.StudioRevenue,
		"net_profit": net,
	}))
	bo.logger.Event("FILM_ARCHIVED", p.ID,
		fmt.Sprintf("%q closed: gross $%s, net $%s", p.Title, humanize.Comma(run.GrossToDate), humanize.Comma(net)))
}
