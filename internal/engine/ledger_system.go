package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/rules"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

const actorLedger = "ledger"

var favorHeadlines = []string{
	"Your backer wants his nephew cast in a speaking role",
	"Your backer asks you to shelve a picture that embarrasses a friend",
	"Your backer demands a cameo for a singer he manages",
	"Your backer wants a rival's script quietly buried",
}

// refusalPenalties is the fixed set a refused favor draws one penalty from.
var refusalPenalties = []outcome.Delta{
	{Cash: -10_000},
	{Cash: -25_000},
	{DelayWeeks: rules.FavorRefusalDelay},
}

// FinancialLedger owns cash, debt, investments and the credit rating.
// It never blocks a negative balance; it reports it.
type FinancialLedger struct {
	resolver   *ResolutionEngine
	reputation ReputationStore
	facilities FacilityProvider
	eventLog   *events.EventLog
	logger     *logger.Logger
}

// NewFinancialLedger creates the ledger subsystem. Facilities price the
// overrun side of the runway estimate.
func NewFinancialLedger(resolver *ResolutionEngine, reputation ReputationStore, facilities FacilityProvider, eventLog *events.EventLog, log *logger.Logger) *FinancialLedger {
	return &FinancialLedger{
		resolver:   resolver,
		reputation: reputation,
		facilities: facilities,
		eventLog:   eventLog,
		logger:     log,
	}
}

func (fl *FinancialLedger) Name() string { return actorLedger }

// ApplyDelta moves cash and records the transaction. Zero amounts are dropped.
func (fl *FinancialLedger) ApplyDelta(l *finance.LedgerState, week int, amount int64, category finance.Category, reason, entityID string) finance.Transaction {
	if amount == 0 {
		return finance.Transaction{}
	}
	tx := l.Apply(week, amount, category, reason, entityID)
	fl.eventLog.Append(events.New(events.EventTypeTransaction, actorLedger, entityID, week, tx))
	return tx
}

// ApplyLoan originates a loan after checking the lender's band and gate.
func (fl *FinancialLedger) ApplyLoan(l *finance.LedgerState, lender finance.LenderType, amount int64, week int) (*finance.Loan, error) {
	spec, ok := rules.Lender(lender)
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeUnknownLender, "no such lender").
			With("lender", string(lender))
	}
	if amount < spec.MinAmount || amount > spec.MaxAmount {
		return nil, apperrors.Validation(apperrors.CodeAmountOutsideBand, "amount outside lender band").
			With("amount", strconv.FormatInt(amount, 10)).
			With("min", strconv.FormatInt(spec.MinAmount, 10)).
			With("max", strconv.FormatInt(spec.MaxAmount, 10))
	}
	if err := fl.checkEligibility(l, spec); err != nil {
		return nil, err
	}

	loan := finance.NewLoan(uuid.NewString(), lender, amount, spec.Rate, rules.TermForPrincipal(amount), spec.Terms, week)
	l.Loans = append(l.Loans, loan)
	if spec.Terms.Favor {
		l.Obligations++
	}
	fl.ApplyDelta(l, week, amount, finance.CategoryLoanProceeds, "loan from "+spec.Name, loan.ID)
	fl.eventLog.Append(events.New(events.EventTypeLoanOriginated, actorLedger, loan.ID, week, *loan))
	fl.logger.Event("LOAN_ORIGINATED", loan.ID,
		fmt.Sprintf("%s lent $%s over %d payments", spec.Name, humanize.Comma(amount), loan.TermMonths))
	return loan, nil
}

func (fl *FinancialLedger) checkEligibility(l *finance.LedgerState, spec rules.LenderSpec) error {
	ineligible := func(reason string) error {
		return apperrors.Validation(apperrors.CodeLenderIneligible, "studio does not qualify for this lender").
			With("lender", string(spec.Type)).
			With("reason", reason)
	}
	if spec.MinRating != "" && !l.Rating.AtLeast(spec.MinRating) {
		return ineligible("credit rating " + string(l.Rating))
	}
	if spec.MinReputation > 0 && fl.currentReputation() < spec.MinReputation {
		return ineligible("reputation " + strconv.Itoa(fl.currentReputation()))
	}
	if spec.MinLastGross > 0 && l.LastFilmGross < spec.MinLastGross {
		return ineligible("last film grossed " + strconv.FormatInt(l.LastFilmGross, 10))
	}
	return nil
}

// BuyInvestment purchases a catalog asset outright.
func (fl *FinancialLedger) BuyInvestment(l *finance.LedgerState, kind finance.InvestmentKind, week int) (*finance.Investment, error) {
	offer, ok := finance.FindOffer(kind)
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeUnknownInvestment, "no such investment").
			With("kind", string(kind))
	}
	if l.Owns(kind) {
		return nil, apperrors.Validation(apperrors.CodeInvestmentOwned, "investment already owned").
			With("kind", string(kind))
	}
	if l.Cash < offer.Cost {
		return nil, apperrors.Validation(apperrors.CodeInsufficientCash, "not enough cash for investment").
			With("cost", strconv.FormatInt(offer.Cost, 10)).
			With("cash", strconv.FormatInt(l.Cash, 10))
	}

	inv := &finance.Investment{
		ID:           uuid.NewString(),
		Kind:         offer.Kind,
		Name:         offer.Name,
		Cost:         offer.Cost,
		MonthlyYield: offer.MonthlyYield,
		Tags:         append([]string(nil), offer.Tags...),
		AcquiredWeek: week,
	}
	l.Investments = append(l.Investments, inv)
	fl.ApplyDelta(l, week, -offer.Cost, finance.CategoryInvestment, "purchased "+offer.Name, inv.ID)
	fl.eventLog.Append(events.New(events.EventTypeInvestmentPurchased, actorLedger, inv.ID, week, *inv))
	return inv, nil
}

// ProfitShareCut is what profit-share lenders take from a box-office credit.
func (fl *FinancialLedger) ProfitShareCut(l *finance.LedgerState, studioShare int64) int64 {
	if studioShare <= 0 || !l.HasTerms(func(t finance.Terms) bool { return t.ProfitShare }) {
		return 0
	}
	return decimal.NewFromInt(studioShare).
		Mul(decimal.NewFromFloat(rules.ProfitShareRate)).
		Floor().
		IntPart()
}

// DistributionLocked reports whether a distributor loan forbids direct sales.
func (fl *FinancialLedger) DistributionLocked(l *finance.LedgerState) bool {
	return l.HasTerms(func(t finance.Terms) bool { return t.DistributionLock })
}

// RecordFilmResult feeds a finished run into credit history.
func (fl *FinancialLedger) RecordFilmResult(l *finance.LedgerState, gross, netProfit int64) {
	l.LastFilmGross = gross
	if netProfit > 0 {
		l.ProfitableFilms++
	}
}

// Tick amortizes loans, realizes yields, rescores credit, reports solvency
// and finally rolls for a favor demand. Everything before the favor roll
// runs at most once per week.
func (fl *FinancialLedger) Tick(ctx context.Context, tc *TickContext) (*Suspension, error) {
	st := tc.State
	l := st.Ledger
	if st.ledgerWeek >= tc.Week {
		return nil, nil
	}

	if err := fl.amortize(l, tc); err != nil {
		return nil, err
	}
	fl.realizeYields(l, tc)
	fl.RecomputeCredit(l, tc.Week)

	for _, w := range fl.SolvencyWarnings(st) {
		tc.Report.Warnings = append(tc.Report.Warnings, w)
		fl.eventLog.Append(events.New(events.EventTypeSolvencyWarning, actorLedger, "", tc.Week, w))
		fl.logger.Warn(w.Message)
	}
	st.ledgerWeek = tc.Week

	if demand := fl.rollFavor(l, tc.Week); demand != nil {
		return &Suspension{Kind: DecisionFavor, EntityID: demand.ID}, nil
	}
	return nil, nil
}

func (fl *FinancialLedger) amortize(l *finance.LedgerState, tc *TickContext) error {
	kept := make([]*finance.Loan, 0, len(l.Loans))
	for _, loan := range l.Loans {
		p := rules.Amortize(loan)
		if p.Total() > 0 {
			reason := fmt.Sprintf("loan payment %d/%d", loan.TermMonths-loan.PaymentsRemaining, loan.TermMonths)
			fl.ApplyDelta(l, tc.Week, -p.Total(), finance.CategoryLoanPayment, reason, loan.ID)
			tc.Report.LoanPayments += p.Total()
		}
		if (loan.Remaining == 0) != (loan.PaymentsRemaining == 0) {
			return apperrors.Invariant(apperrors.CodeAmortization, "loan balance and term disagree").
				With("loan", loan.ID).
				With("remaining", strconv.FormatInt(loan.Remaining, 10)).
				With("payments_remaining", strconv.Itoa(loan.PaymentsRemaining))
		}
		if loan.Settled() {
			tc.Report.Settled = append(tc.Report.Settled, loan.ID)
			fl.eventLog.Append(events.New(events.EventTypeLoanSettled, actorLedger, loan.ID, tc.Week, *loan))
			continue
		}
		kept = append(kept, loan)
	}
	l.Loans = kept
	return nil
}

func (fl *FinancialLedger) realizeYields(l *finance.LedgerState, tc *TickContext) {
	for _, inv := range l.Investments {
		held := tc.Week - inv.AcquiredWeek
		if held <= 0 || held%finance.YieldIntervalWeeks != 0 {
			continue
		}
		fl.ApplyDelta(l, tc.Week, inv.MonthlyYield, finance.CategoryYield, inv.Name+" yield", inv.ID)
		tc.Report.Yield += inv.MonthlyYield
	}
}

// RecomputeCredit rescores the studio and records rating changes.
func (fl *FinancialLedger) RecomputeCredit(l *finance.LedgerState, week int) {
	score := rules.CreditScore(rules.CreditInputs{
		Cash:            l.Cash,
		Reputation:      fl.currentReputation(),
		ProfitableFilms: l.ProfitableFilms,
		Obligations:     l.Obligations,
		TotalDebt:       l.TotalDebt(),
	})
	rating := finance.RatingForScore(score)
	if rating != l.Rating {
		fl.eventLog.Append(events.New(events.EventTypeCreditRated, actorLedger, "", week, map[string]interface{}{
			"from":  l.Rating,
			"to":    rating,
			"score": score,
		}))
		fl.logger.Event("CREDIT_RATED", actorLedger, fmt.Sprintf("rating %s -> %s (score %d)", l.Rating, rating, score))
	}
	l.Score = score
	l.Rating = rating
}

// WeeklyOutflow estimates next week's committed cash outflow: loan payments
// due plus overrun debits the pipeline would take.
func (fl *FinancialLedger) WeeklyOutflow(st *SimulationState) int64 {
	var out int64
	for _, loan := range st.Ledger.Loans {
		out += rules.NextPayment(loan).Total()
	}
	for _, p := range st.Productions {
		ip, ok := p.InFlight()
		if !ok {
			continue
		}
		costMult, _ := fl.facilities.Bonuses(p.Genre)
		cost := rules.WeeklyCost(p, ip.Phase, costMult)
		out += rules.OverrunDebit(p.CumulativeSpend, p.CumulativeSpend+cost, p.CurrentBudget)
	}
	return out
}

// SolvencyWarnings derives the current warning set. Runway is cash divided
// by WeeklyOutflow.
func (fl *FinancialLedger) SolvencyWarnings(st *SimulationState) []SolvencyWarning {
	cash := st.Ledger.Cash
	var out []SolvencyWarning
	switch {
	case cash < 0:
		out = append(out, SolvencyWarning{
			Kind:    WarningNegativeCash,
			Cash:    cash,
			Message: "studio is overdrawn by $" + humanize.Comma(-cash),
		})
		return out
	case cash < rules.LowCashThreshold:
		out = append(out, SolvencyWarning{
			Kind:    WarningLowCash,
			Cash:    cash,
			Message: "cash is down to $" + humanize.Comma(cash),
		})
	}
	runway := rules.Runway(cash, fl.WeeklyOutflow(st))
	if runway < rules.MinRunwayWeeks {
		out = append(out, SolvencyWarning{
			Kind:    WarningShortRunway,
			Cash:    cash,
			Runway:  runway,
			Message: fmt.Sprintf("runway is %.1f weeks", runway),
		})
	}
	return out
}

func (fl *FinancialLedger) rollFavor(l *finance.LedgerState, week int) *finance.FavorDemand {
	if l.PendingFavor != nil {
		return l.PendingFavor
	}
	if !fl.resolver.Chance(rules.FavorProbability(l.Obligations)) {
		return nil
	}
	demand := &finance.FavorDemand{
		ID:       uuid.NewString(),
		Headline: favorHeadlines[fl.resolver.Intn(len(favorHeadlines))],
		Accept: outcome.Delta{
			Reputation:  rules.FavorAcceptRep,
			Quality:     rules.FavorAcceptQuality,
			Obligations: -1,
		},
		Week: week,
	}
	l.PendingFavor = demand
	fl.eventLog.Append(events.New(events.EventTypeFavorDemanded, actorLedger, demand.ID, week, *demand))
	fl.logger.Event("FAVOR_DEMANDED", demand.ID, demand.Headline)
	return demand
}

// ResolveFavor answers the pending favor demand and returns the effects
// actually applied.
func (fl *FinancialLedger) ResolveFavor(st *SimulationState, accept bool, week int) (outcome.Delta, error) {
	l := st.Ledger
	demand := l.PendingFavor
	if demand == nil {
		return outcome.Delta{}, apperrors.Validation(apperrors.CodeNoPendingFavor, "no favor is being demanded")
	}

	target := st.MostAdvanced()
	var applied outcome.Delta
	if accept {
		applied = demand.Accept
		if target == nil {
			applied.Quality = 0
		}
		fl.resolver.ApplyToProduction(target, applied)
		fl.resolver.ApplyReputation(applied)
	} else {
		applied = refusalPenalties[fl.resolver.Intn(len(refusalPenalties))]
		if applied.DelayWeeks > 0 && target == nil {
			applied = refusalPenalties[0]
		}
		applied.Obligations = 1
		fl.ApplyDelta(l, week, applied.Cash, finance.CategoryFavor, "refused favor", demand.ID)
		fl.resolver.ApplyToProduction(target, applied)
	}

	l.Obligations += applied.Obligations
	if l.Obligations < 0 {
		l.Obligations = 0
	}
	l.PendingFavor = nil
	st.clearAwaiting(DecisionFavor, demand.ID)
	fl.RecomputeCredit(l, week)

	fl.eventLog.Append(events.New(events.EventTypeFavorResolved, actorLedger, demand.ID, week, map[string]interface{}{
		"accepted": accept,
		"applied":  applied,
	}))
	fl.logger.Event("FAVOR_RESOLVED", demand.ID, fmt.Sprintf("accepted=%t obligations=%d", accept, l.Obligations))
	return applied, nil
}

func (fl *FinancialLedger) currentReputation() int {
	if fl.reputation == nil {
		return 0
	}
	return fl.reputation.Reputation()
}
