package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request validation
	CodeInsufficientCash     Code = "INSUFFICIENT_CASH"
	CodeInvalidScript        Code = "INVALID_SCRIPT"
	CodeUnknownProduction    Code = "UNKNOWN_PRODUCTION"
	CodeInvalidChoice        Code = "INVALID_CHOICE"
	CodeProductionCapReached Code = "PRODUCTION_CAP_REACHED"
	CodeContentRejected      Code = "CONTENT_REJECTED"
	CodeNotReadyForRelease   Code = "NOT_READY_FOR_RELEASE"
	CodeInvalidStrategy      Code = "INVALID_STRATEGY"
	CodeDistributionLocked   Code = "DISTRIBUTION_LOCKED"
	CodeAwaitingDecision     Code = "AWAITING_DECISION"
	CodeNoPendingFavor       Code = "NO_PENDING_FAVOR"
	CodeMalformedCommand     Code = "MALFORMED_COMMAND"

	// Lending
	CodeUnknownLender     Code = "UNKNOWN_LENDER"
	CodeAmountOutsideBand Code = "AMOUNT_OUTSIDE_BAND"
	CodeLenderIneligible  Code = "LENDER_INELIGIBLE"
	CodeUnknownInvestment Code = "UNKNOWN_INVESTMENT"
	CodeInvestmentOwned   Code = "INVESTMENT_ALREADY_OWNED"

	// Invariants
	CodeCrisisAlreadyResolved Code = "CRISIS_ALREADY_RESOLVED"
	CodeNoPendingCrisis       Code = "NO_PENDING_CRISIS"
	CodeTerminalPhase         Code = "TRANSITION_FROM_TERMINAL_PHASE"
	CodeNegativeSpend         Code = "NEGATIVE_SPEND"
	CodeAmortization          Code = "AMORTIZATION_MISMATCH"
	CodeEngineHalted          Code = "ENGINE_HALTED"
)
