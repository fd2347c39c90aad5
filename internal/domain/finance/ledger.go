// Package finance defines the studio's economic root: cash, debt, assets and
// the transaction history every subsystem writes to.
// This package is PURE and must NOT import any infrastructure packages.
package finance

import "github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"

// Category groups transactions for reporting and reconstruction.
type Category string

const (
	CategoryGreenlight   Category = "GREENLIGHT"
	CategoryOverrun      Category = "OVERRUN"
	CategoryCrisis       Category = "CRISIS"
	CategoryMarketing    Category = "MARKETING"
	CategoryBoxOffice    Category = "BOX_OFFICE"
	CategoryDirectSale   Category = "DIRECT_SALE"
	CategoryProfitShare  Category = "PROFIT_SHARE"
	CategoryLoanProceeds Category = "LOAN_PROCEEDS"
	CategoryLoanPayment  Category = "LOAN_PAYMENT"
	CategoryInvestment   Category = "INVESTMENT"
	CategoryYield        Category = "INVESTMENT_YIELD"
	CategoryFavor        Category = "FAVOR"
	CategoryAdjustment   Category = "ADJUSTMENT"
)

// Transaction is one signed cash movement.
type Transaction struct {
	Seq      int64    `json:"seq"`
	Week     int      `json:"week"`
	Amount   int64    `json:"amount"`
	Balance  int64    `json:"balance"`
	Category Category `json:"category"`
	Reason   string   `json:"reason"`
	EntityID string   `json:"entity_id,omitempty"`
}

// FavorDemand is a pending request from a favor-based lender.
type FavorDemand struct {
	ID       string        `json:"id"`
	Headline string        `json:"headline"`
	Accept   outcome.Delta `json:"accept"`
	Week     int           `json:"week"`
}

// LedgerState is the single source of truth for money.
type LedgerState struct {
	Cash            int64         `json:"cash"`
	Transactions    []Transaction `json:"transactions"`
	TxCap           int           `json:"tx_cap"`
	Loans           []*Loan       `json:"loans"`
	Investments     []*Investment `json:"investments"`
	Obligations     int           `json:"obligations"`
	Score           int           `json:"score"`
	Rating          CreditRating  `json:"rating"`
	ProfitableFilms int           `json:"profitable_films"`
	LastFilmGross   int64         `json:"last_film_gross"`
	PendingFavor    *FavorDemand  `json:"pending_favor,omitempty"`
	nextSeq         int64
}

// NewLedgerState creates a ledger with starting cash and a capped history.
func NewLedgerState(cash int64, txCap int) *LedgerState {
	if txCap <= 0 {
		txCap = DefaultTxCap
	}
	return &LedgerState{
		Cash:         cash,
		Transactions: make([]Transaction, 0, txCap),
		TxCap:        txCap,
		Loans:        []*Loan{},
		Investments:  []*Investment{},
		Rating:       RatingFair,
	}
}

// DefaultTxCap bounds the in-memory transaction history.
const DefaultTxCap = 200

// Apply moves cash by amount and records it. Negative balances are allowed.
func (l *LedgerState) Apply(week int, amount int64, category Category, reason, entityID string) Transaction {
	l.Cash += amount
	l.nextSeq++
	tx := Transaction{
		Seq:      l.nextSeq,
		Week:     week,
		Amount:   amount,
		Balance:  l.Cash,
		Category: category,
		Reason:   reason,
		EntityID: entityID,
	}
	if len(l.Transactions) >= l.TxCap {
		copy(l.Transactions, l.Transactions[1:])
		l.Transactions = l.Transactions[:len(l.Transactions)-1]
	}
	l.Transactions = append(l.Transactions, tx)
	return tx
}

// TotalDebt sums remaining loan balances.
func (l *LedgerState) TotalDebt() int64 {
	var total int64
	for _, loan := range l.Loans {
		total += loan.Remaining
	}
	return total
}

// HasTerms reports whether any outstanding loan carries the given terms flag.
func (l *LedgerState) HasTerms(match func(Terms) bool) bool {
	for _, loan := range l.Loans {
		if match(loan.Terms) {
			return true
		}
	}
	return false
}

// Owns reports whether an investment of kind is held.
func (l *LedgerState) Owns(kind InvestmentKind) bool {
	for _, inv := range l.Investments {
		if inv.Kind == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy for read-only snapshots.
func (l *LedgerState) Clone() *LedgerState {
	c := *l
	c.Transactions = append([]Transaction(nil), l.Transactions...)
	c.Loans = make([]*Loan, len(l.Loans))
	for i, loan := range l.Loans {
		lc := *loan
		c.Loans[i] = &lc
	}
	c.Investments = make([]*Investment, len(l.Investments))
	for i, inv := range l.Investments {
		ic := *inv
		ic.Tags = append([]string(nil), inv.Tags...)
		c.Investments[i] = &ic
	}
	if l.PendingFavor != nil {
		f := *l.PendingFavor
		c.PendingFavor = &f
	}
	return &c
}
