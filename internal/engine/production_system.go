package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/rules"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/validation"
)

const actorProduction = "production"

// Casting pools for talent hired in pre-production.
var (
	directorPool = []string{"Vera Holt", "Sam Kessler", "Ida Marsh", "Leo Brandt", "Otto Kane", "June Calloway"}
	castPool     = []string{"Rex Dalton", "Mae Winslow", "Cliff Harper", "Lola Grant", "Hank Moreau", "Dot Sinclair", "Gus Farrell", "Ruby Lane"}
)

const (
	hiredSkillMin   = 35
	hiredSkillRange = 51 // 35-85
	hiredCastSize   = 2
)

// ProductionPipeline moves each greenlit film through the phase machine.
// It accrues cost, drifts quality, rolls crises and finalizes completed films.
type ProductionPipeline struct {
	resolver   *ResolutionEngine
	ledger     *FinancialLedger
	gate       ContentGate
	facilities FacilityProvider
	eventLog   *events.EventLog
	logger     *logger.Logger
}

// NewProductionPipeline creates the pipeline subsystem.
func NewProductionPipeline(resolver *ResolutionEngine, ledger *FinancialLedger, gate ContentGate, facilities FacilityProvider, eventLog *events.EventLog, log *logger.Logger) *ProductionPipeline {
	return &ProductionPipeline{
		resolver:   resolver,
		ledger:     ledger,
		gate:       gate,
		facilities: facilities,
		eventLog:   eventLog,
		logger:     log,
	}
}

func (pp *ProductionPipeline) Name() string { return actorProduction }

// CanStartNewProduction is the admission check against the facility cap.
func (pp *ProductionPipeline) CanStartNewProduction(st *SimulationState) bool {
	return st.ActiveProductions() < pp.facilities.MaxConcurrentProductions()
}

// Greenlight validates a script, runs it past the content gate, reserves the
// full budget from cash and creates the production in Development. Nothing is
// recorded unless every check passes.
func (pp *ProductionPipeline) Greenlight(st *SimulationState, s film.Script) (*film.Production, error) {
	if err := validateScript(s); err != nil {
		return nil, err
	}
	if !pp.CanStartNewProduction(st) {
		return nil, apperrors.Validation(apperrors.CodeProductionCapReached, "facilities are at capacity").
			With("max", strconv.Itoa(pp.facilities.MaxConcurrentProductions()))
	}

	verdict := pp.gate.Review(s)
	week := st.Week
	if !verdict.Approved {
		pp.logger.Warn(fmt.Sprintf("content review rejected %q: %s", s.Title, verdict.Reason))
		return nil, apperrors.Validation(apperrors.CodeContentRejected, "script rejected by content review").
			With("title", s.Title).
			With("reason", verdict.Reason)
	}

	required := s.Budget
	if verdict.RequiredChanges.Cash < 0 {
		required -= verdict.RequiredChanges.Cash
	}
	if st.Ledger.Cash < required {
		return nil, apperrors.Validation(apperrors.CodeInsufficientCash, "not enough cash to greenlight").
			With("required", strconv.FormatInt(required, 10)).
			With("cash", strconv.FormatInt(st.Ledger.Cash, 10))
	}

	p := film.NewProduction(uuid.NewString(), s, week)
	if ip, ok := p.InFlight(); ok {
		ip.LastTickedWeek = week
	}
	if verdict.RatingMultiplier > 0 {
		p.RatingMultiplier = verdict.RatingMultiplier
	}
	_, p.FacilityQualityBonus = pp.facilities.Bonuses(p.Genre)

	st.Productions = append(st.Productions, p)
	pp.eventLog.Append(events.New(events.EventTypeContentReviewed, actorProduction, p.ID, week, verdict))
	pp.ledger.ApplyDelta(st.Ledger, week, -s.Budget, finance.CategoryGreenlight, "greenlit "+s.Title, p.ID)

	if !verdict.RequiredChanges.IsZero() {
		changes := verdict.RequiredChanges
		pp.resolver.ApplyToProduction(p, changes)
		pp.resolver.ApplyReputation(changes)
		pp.ledger.ApplyDelta(st.Ledger, week, changes.Cash, finance.CategoryAdjustment, "content changes for "+s.Title, p.ID)
	}

	pp.eventLog.Append(events.New(events.EventTypeGreenlight, actorProduction, p.ID, week, p.Clone()))
	pp.logger.Event("GREENLIGHT", p.ID,
		fmt.Sprintf("%q (%s) greenlit for $%s", p.Title, p.Genre, humanize.Comma(p.OriginalBudget)))
	return p, nil
}

// scriptRules checks the validate tags on film.Script.
var scriptRules = validation.New().MustRegister("genre", func(fl validator.FieldLevel) bool {
	return film.Genre(fl.Field().String()).Valid()
})

func validateScript(s film.Script) error {
	return scriptRules.Check(s, apperrors.CodeInvalidScript)
}

// Tick advances every in-flight production by one week. A crisis suspends
// the tick on that production; the rest follow once it is resolved.
func (pp *ProductionPipeline) Tick(ctx context.Context, tc *TickContext) (*Suspension, error) {
	for _, p := range tc.State.Productions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ip, ok := p.InFlight()
		if !ok {
			continue
		}
		if ip.Phase == film.PhaseCompleted {
			return nil, apperrors.Invariant(apperrors.CodeTerminalPhase, "production stuck in terminal phase").
				With("production", p.ID)
		}
		if ip.PendingCrisis != nil {
			return &Suspension{Kind: DecisionCrisis, EntityID: p.ID}, nil
		}

		if ip.LastTickedWeek < tc.Week {
			if crisis := pp.work(tc, p, ip); crisis != nil {
				return &Suspension{Kind: DecisionCrisis, EntityID: p.ID}, nil
			}
		}
		if err := pp.settle(tc, p, ip); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// work runs the once-per-week steps: accrual, phase logic and the crisis roll.
func (pp *ProductionPipeline) work(tc *TickContext, p *film.Production, ip *film.InProduction) *film.Crisis {
	costMult, qualityBonus := pp.facilities.Bonuses(p.Genre)
	p.FacilityQualityBonus = qualityBonus

	before := p.CumulativeSpend
	p.AddSpend(rules.WeeklyCost(p, ip.Phase, costMult))
	if debit := rules.OverrunDebit(before, p.CumulativeSpend, p.CurrentBudget); debit > 0 {
		p.CurrentBudget += debit
		pp.ledger.ApplyDelta(tc.State.Ledger, tc.Week, -debit, finance.CategoryOverrun, p.Title+" over budget", p.ID)
		tc.Report.Overruns += debit
	}
	ip.WeeksInPhase++

	switch ip.Phase {
	case film.PhasePreProduction:
		if !ip.CastingDone {
			pp.cast(tc, p)
			ip.CastingDone = true
		}
	case film.PhasePrincipalPhotography:
		p.AdjustQuality(rules.PhotographyDrift(p.DirectorSkill(), qualityBonus, pp.resolver.Uniform(-1, 1)))
	case film.PhasePostProduction:
		p.AdjustQuality(rules.PostProductionDrift(qualityBonus, pp.resolver.Uniform(-0.5, 1)))
	}
	ip.LastTickedWeek = tc.Week

	if !pp.resolver.Chance(rules.CrisisProbability(p, ip.Phase)) {
		return nil
	}
	options := eligibleCrises(ip.Phase)
	if len(options) == 0 {
		return nil
	}
	crisis := Roll(pp.resolver, options).instantiate(p, tc.Week)
	ip.PendingCrisis = crisis
	tc.Report.Crises = append(tc.Report.Crises, p.ID)

	pp.eventLog.Append(events.New(events.EventTypeCrisisTriggered, actorProduction, p.ID, tc.Week, *crisis))
	pp.logger.Event("CRISIS_TRIGGERED", p.ID, fmt.Sprintf("%s on %q", crisis.Headline, p.Title))
	return crisis
}

// cast fills any missing director or cast from the hiring pools.
func (pp *ProductionPipeline) cast(tc *TickContext, p *film.Production) {
	hire := func(pool []string) film.Talent {
		return film.Talent{
			Name:  pool[pp.resolver.Intn(len(pool))],
			Skill: hiredSkillMin + pp.resolver.Intn(hiredSkillRange),
		}
	}
	if p.Director == nil {
		d := hire(directorPool)
		p.Director = &d
	}
	if len(p.Cast) == 0 {
		for i := 0; i < hiredCastSize; i++ {
			p.Cast = append(p.Cast, hire(castPool))
		}
	}
	pp.eventLog.Append(events.New(events.EventTypeCastingAssigned, actorProduction, p.ID, tc.Week, map[string]interface{}{
		"director": p.Director,
		"cast":     p.Cast,
	}))
}

// settle recomputes health flags and advances the phase when due. Safe to
// run twice in one week.
func (pp *ProductionPipeline) settle(tc *TickContext, p *film.Production, ip *film.InProduction) error {
	p.OnBudget = rules.OnBudget(p)
	p.OnSchedule = rules.OnSchedule(p)

	if !rules.PhaseComplete(ip.Phase, ip.WeeksInPhase, ip.PhaseDelay) {
		return nil
	}
	next, ok := ip.Phase.Next()
	if !ok {
		return apperrors.Invariant(apperrors.CodeTerminalPhase, "cannot advance past the terminal phase").
			With("production", p.ID)
	}
	from := ip.Phase
	ip.Phase = next
	ip.WeeksInPhase = 0
	ip.PhaseDelay = 0
	pp.eventLog.Append(events.New(events.EventTypePhaseChanged, actorProduction, p.ID, tc.Week, map[string]string{
		"from": from.String(),
		"to":   next.String(),
	}))

	if next == film.PhaseCompleted {
		pp.finalize(tc, p)
	}
	return nil
}

func (pp *ProductionPipeline) finalize(tc *TickContext, p *film.Production) {
	final := rules.FinalQuality(p)
	p.Stage = &film.ReadyForRelease{CompletedWeek: tc.Week, FinalQuality: final}
	tc.Report.Completed = append(tc.Report.Completed, p.ID)

	pp.eventLog.Append(events.New(events.EventTypeProductionCompleted, actorProduction, p.ID, tc.Week, map[string]interface{}{
		"final_quality": final,
		"spend":         p.CumulativeSpend,
		"budget":        p.CurrentBudget,
		"crises":        len(p.CrisisLog),
	}))
	pp.logger.Event("PRODUCTION_COMPLETED", p.ID,
		fmt.Sprintf("%q wrapped with quality %d, spent $%s", p.Title, final, humanize.Comma(p.CumulativeSpend)))
}

// ResolveCrisis applies exactly one choice to the production's pending crisis.
func (pp *ProductionPipeline) ResolveCrisis(st *SimulationState, productionID string, choiceIndex int) (film.ResolvedCrisis, error) {
	p := st.Production(productionID)
	if p == nil {
		return film.ResolvedCrisis{}, apperrors.Validation(apperrors.CodeUnknownProduction, "no such production").
			With("production", productionID)
	}
	ip, ok := p.InFlight()
	if !ok || ip.PendingCrisis == nil {
		if len(p.CrisisLog) > 0 {
			last := p.CrisisLog[len(p.CrisisLog)-1]
			return film.ResolvedCrisis{}, apperrors.Invariant(apperrors.CodeCrisisAlreadyResolved, "crisis was already resolved").
				With("production", productionID).
				With("crisis", last.CrisisID)
		}
		return film.ResolvedCrisis{}, apperrors.Invariant(apperrors.CodeNoPendingCrisis, "production has no pending crisis").
			With("production", productionID)
	}
	crisis := ip.PendingCrisis
	if crisis.Resolved {
		return film.ResolvedCrisis{}, apperrors.Invariant(apperrors.CodeCrisisAlreadyResolved, "crisis was already resolved").
			With("production", productionID).
			With("crisis", crisis.ID)
	}
	choice, err := pp.resolver.Select(crisis.Choices, choiceIndex)
	if err != nil {
		return film.ResolvedCrisis{}, err
	}

	week := st.ProcessingWeek()
	cost := choice.Cost - choice.Delta.Cash
	if cost > 0 {
		p.CurrentBudget += cost
		p.AddSpend(cost)
	}
	pp.ledger.ApplyDelta(st.Ledger, week, -cost, finance.CategoryCrisis, crisis.Headline+": "+choice.Label, p.ID)
	pp.resolver.ApplyToProduction(p, choice.Delta)
	pp.resolver.ApplyReputation(choice.Delta)

	crisis.Resolved = true
	entry := film.ResolvedCrisis{
		CrisisID: crisis.ID,
		Kind:     crisis.Kind,
		Choice:   choice.Label,
		Cost:     cost,
		Week:     week,
	}
	p.CrisisLog = append(p.CrisisLog, entry)
	ip.PendingCrisis = nil
	st.clearAwaiting(DecisionCrisis, p.ID)

	pp.eventLog.Append(events.New(events.EventTypeCrisisResolved, actorProduction, p.ID, week, entry))
	pp.logger.Event("CRISIS_RESOLVED", p.ID,
		fmt.Sprintf("%s: chose %q for $%s", crisis.Headline, choice.Label, humanize.Comma(cost)))
	return entry, nil
}
