package finance

// LenderType identifies a source of credit.
type LenderType string

const (
	LenderBank          LenderType = "BANK"
	LenderInvestor      LenderType = "STUDIO_INVESTOR"
	LenderDistributor   LenderType = "DISTRIBUTOR"
	LenderPrivateBacker LenderType = "PRIVATE_BACKER"
)

// Terms are the special conditions a lender attaches to a loan.
type Terms struct {
	Favor            bool `json:"favor"`
	ProfitShare      bool `json:"profit_share"`
	DistributionLock bool `json:"distribution_lock"`
}

// Loan is an amortized debt. Remaining reaches zero exactly when
// PaymentsRemaining does.
type Loan struct {
	ID                string     `json:"id"`
	Lender            LenderType `json:"lender"`
	Principal         int64      `json:"principal"`
	Remaining         int64      `json:"remaining"`
	Rate              float64    `json:"rate"` // per payment
	TermMonths        int        `json:"term_months"`
	PaymentsRemaining int        `json:"payments_remaining"`
	Terms             Terms      `json:"terms"`
	OriginatedWeek    int        `json:"originated_week"`
}

// NewLoan creates an unpaid loan.
func NewLoan(id string, lender LenderType, principal int64, rate float64, term int, terms Terms, week int) *Loan {
	return &Loan{
		ID:                id,
		Lender:            lender,
		Principal:         principal,
		Remaining:         principal,
		Rate:              rate,
		TermMonths:        term,
		PaymentsRemaining: term,
		Terms:             terms,
		OriginatedWeek:    week,
	}
}

// PrincipalPayment is the principal due on the next payment. The final
// payment takes whatever floor division left behind.
func (l *Loan) PrincipalPayment() int64 {
	if l.PaymentsRemaining <= 0 || l.Remaining <= 0 {
		return 0
	}
	if l.PaymentsRemaining == 1 {
		return l.Remaining
	}
	part := l.Principal / int64(l.TermMonths)
	if part > l.Remaining {
		part = l.Remaining
	}
	return part
}

// Settled reports whether the loan can be removed.
func (l *Loan) Settled() bool {
	return l.PaymentsRemaining <= 0 || l.Remaining <= 0
}
