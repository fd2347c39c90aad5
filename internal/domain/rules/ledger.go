package rules

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
)

// LenderSpec describes a lender's band, price and gate.
type LenderSpec struct {
	Type      finance.LenderType
	Name      string
	MinAmount int64
	MaxAmount int64
	Rate      float64
	Terms     finance.Terms

	MinRating     finance.CreditRating // "" = no rating gate
	MinReputation int
	MinLastGross  int64
}

var lenders = map[finance.LenderType]LenderSpec{
	finance.LenderBank: {
		Type: finance.LenderBank, Name: "First National Bank",
		MinAmount: 10_000, MaxAmount: 500_000, Rate: 0.02,
		MinRating: finance.RatingFair,
	},
	finance.LenderInvestor: {
		Type: finance.LenderInvestor, Name: "Studio Investor Group",
		MinAmount: 50_000, MaxAmount: 1_000_000, Rate: 0.01,
		Terms:        finance.Terms{ProfitShare: true},
		MinLastGross: 200_000,
	},
	finance.LenderDistributor: {
		Type: finance.LenderDistributor, Name: "Consolidated Distributors",
		MinAmount: 20_000, MaxAmount: 400_000, Rate: 0.015,
		Terms:         finance.Terms{DistributionLock: true},
		MinReputation: 40,
	},
	finance.LenderPrivateBacker: {
		Type: finance.LenderPrivateBacker, Name: "Private Backer",
		MinAmount: 5_000, MaxAmount: 300_000, Rate: 0.05,
		Terms: finance.Terms{Favor: true},
	},
}

// Lender returns the parameters for a lender type.
func Lender(t finance.LenderType) (LenderSpec, bool) {
	spec, ok := lenders[t]
	return spec, ok
}

// ProfitShareRate is the cut of box-office studio revenue an investor takes.
const ProfitShareRate = 0.15

// TermForPrincipal picks the amortization length from principal size.
func TermForPrincipal(principal int64) int {
	switch {
	case principal < 50_000:
		return 6
	case principal < 200_000:
		return 12
	case principal < 500_000:
		return 24
	default:
		return 36
	}
}

// Payment is one amortization step.
type Payment struct {
	Principal int64
	Interest  int64
}

// Total is the cash leaving the studio for this payment.
func (p Payment) Total() int64 {
	return p.Principal + p.Interest
}

// NextPayment computes the next payment without mutating the loan.
// Interest accrues on the remaining balance before principal is paid.
func NextPayment(l *finance.Loan) Payment {
	if l.Settled() {
		return Payment{}
	}
	interest := decimal.NewFromInt(l.Remaining).
		Mul(decimal.NewFromFloat(l.Rate)).
		Floor().
		IntPart()
	return Payment{Principal: l.PrincipalPayment(), Interest: interest}
}

// Amortize applies one payment to the loan and returns it.
func Amortize(l *finance.Loan) Payment {
	p := NextPayment(l)
	if l.Settled() {
		return p
	}
	l.Remaining -= p.Principal
	l.PaymentsRemaining--
	if l.PaymentsRemaining == 0 {
		l.Remaining = 0
	}
	return p
}

// CreditInputs are the terms of the credit score.
type CreditInputs struct {
	Cash            int64
	Reputation      int
	ProfitableFilms int
	Obligations     int
	TotalDebt       int64
}

// CashTier scores liquidity.
func CashTier(cash int64) int {
	switch {
	case cash < 0:
		return 0
	case cash < 100_000:
		return 10
	case cash < 500_000:
		return 20
	case cash < 1_000_000:
		return 30
	default:
		return 40
	}
}

// CreditScore is the deterministic weighted credit formula.
func CreditScore(in CreditInputs) int {
	score := float64(CashTier(in.Cash))
	score += float64(in.Reputation) * 0.4
	films := in.ProfitableFilms
	if films > 5 {
		films = 5
	}
	score += float64(films * 4)
	score -= float64(in.Obligations * 10)
	cash := in.Cash
	if cash < 0 {
		cash = 0
	}
	if in.TotalDebt > cash {
		score -= 10
	}
	return int(math.Round(score))
}

// Favor odds.
const (
	FavorBaseChance    = 0.05
	FavorPerObligation = 0.02
	FavorMaxChance     = 0.25
	FavorAcceptRep     = -5
	FavorAcceptQuality = -4
	FavorRefusalDelay  = 2
)

// FavorProbability is the weekly chance a favor lender calls in a debt.
func FavorProbability(obligations int) float64 {
	if obligations <= 0 {
		return 0
	}
	return math.Min(FavorMaxChance, FavorBaseChance+FavorPerObligation*float64(obligations))
}

// Solvency thresholds.
const (
	LowCashThreshold = 50_000
	MinRunwayWeeks   = 8
)

// Runway is the number of weeks cash lasts at weeklyOutflow. It returns
// +Inf when nothing flows out.
func Runway(cash, weeklyOutflow int64) float64 {
	if weeklyOutflow <= 0 {
		return math.Inf(1)
	}
	if cash <= 0 {
		return 0
	}
	return float64(cash) / float64(weeklyOutflow)
}
