package network

import (
	"encoding/json"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
)

// CommandType names an incoming player command.
type CommandType string

const (
	CmdGreenlight         CommandType = "GREENLIGHT"
	CmdAdvanceWeek        CommandType = "ADVANCE_WEEK"
	CmdChooseDistribution CommandType = "CHOOSE_DISTRIBUTION"
	CmdResolveCrisis      CommandType = "RESOLVE_CRISIS"
	CmdResolveFavor       CommandType = "RESOLVE_FAVOR"
	CmdApplyLoan          CommandType = "APPLY_LOAN"
	CmdBuyInvestment      CommandType = "BUY_INVESTMENT"
	CmdSnapshot           CommandType = "SNAPSHOT"
)

// Command is a request from the frontend.
type Command struct {
	Type      CommandType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"` // echoed on the reply
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DistributionPayload is the body of CHOOSE_DISTRIBUTION.
type DistributionPayload struct {
	ProductionID string        `json:"production_id" validate:"required"`
	Strategy     film.Strategy `json:"strategy" validate:"required"`
}

// CrisisChoicePayload is the body of RESOLVE_CRISIS.
type CrisisChoicePayload struct {
	ProductionID string `json:"production_id" validate:"required"`
	Choice       int    `json:"choice" validate:"min=0"`
}

// FavorPayload is the body of RESOLVE_FAVOR.
type FavorPayload struct {
	Accept bool `json:"accept"`
}

// LoanPayload is the body of APPLY_LOAN.
type LoanPayload struct {
	Lender finance.LenderType `json:"lender" validate:"required"`
	Amount int64              `json:"amount" validate:"gt=0"`
}

// InvestmentPayload is the body of BUY_INVESTMENT.
type InvestmentPayload struct {
	Kind finance.InvestmentKind `json:"kind" validate:"required"`
}

// MessageType tags every outgoing frame.
type MessageType string

const (
	MsgResult MessageType = "RESULT"
	MsgError  MessageType = "ERROR"
	MsgWeek   MessageType = "WEEK"
	MsgEvent  MessageType = "EVENT"
)

// Envelope is the single shape the server writes to clients.
type Envelope struct {
	Type      MessageType  `json:"type"`
	Command   CommandType  `json:"command,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the machine-readable side of a rejected command.
type ErrorDetail struct {
	Kind    apperrors.Kind `json:"kind,omitempty"`
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

func errorDetail(err error) *ErrorDetail {
	return &ErrorDetail{
		Kind:    apperrors.KindOf(err),
		Code:    apperrors.CodeOf(err),
		Message: err.Error(),
	}
}
