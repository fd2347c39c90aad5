package network

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
)

// calmRoller never fires a random event.
type calmRoller struct{}

func (calmRoller) Float64() float64 { return 0.99 }
func (calmRoller) Intn(int) int     { return 0 }

func newTestStudio(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.NewEngine(engine.Options{
		StartingCash:       600_000,
		StartingReputation: 50,
		Roller:             calmRoller{},
	}, events.NewEventLog(nil), logger.Discard())
}

func mustPayload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestDispatchGreenlight(t *testing.T) {
	studio := newTestStudio(t)
	d := NewDispatcher(studio, logger.Discard(), nil)

	env := d.Dispatch(context.Background(), Command{
		Type:      CmdGreenlight,
		RequestID: "r1",
		Payload:   mustPayload(t, film.Script{Title: "Harbor Lights", Genre: film.GenreRomance, Budget: 150_000, Quality: 65}),
	})
	if env.Type != MsgResult || env.RequestID != "r1" || env.Command != CmdGreenlight {
		t.Fatalf("unexpected envelope %+v", env)
	}
	p, ok := env.Data.(*film.Production)
	if !ok || p.Title != "Harbor Lights" {
		t.Fatalf("expected the new production, got %T %+v", env.Data, env.Data)
	}
	if cash := studio.Snapshot().Cash; cash != 450_000 {
		t.Fatalf("expected budget reserved, cash %d", cash)
	}
}

func TestDispatchRejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		code apperrors.Code
	}{
		{"unknown type", Command{Type: "FIRE_EVERYONE"}, apperrors.CodeMalformedCommand},
		{"missing payload", Command{Type: CmdGreenlight}, apperrors.CodeMalformedCommand},
		{"bad payload", Command{Type: CmdApplyLoan, Payload: json.RawMessage(`{"amount":"lots"}`)}, apperrors.CodeMalformedCommand},
		{"unknown production", Command{Type: CmdChooseDistribution, Payload: json.RawMessage(`{"production_id":"nope","strategy":"WIDE"}`)}, apperrors.CodeUnknownProduction},
		{"unknown lender", Command{Type: CmdApplyLoan, Payload: json.RawMessage(`{"lender":"MOB","amount":10000}`)}, apperrors.CodeUnknownLender},
		{"no favor", Command{Type: CmdResolveFavor, Payload: json.RawMessage(`{"accept":true}`)}, apperrors.CodeNoPendingFavor},
		{"unknown investment", Command{Type: CmdBuyInvestment, Payload: json.RawMessage(`{"kind":"RACEHORSE"}`)}, apperrors.CodeUnknownInvestment},
		{"missing production id", Command{Type: CmdChooseDistribution, Payload: json.RawMessage(`{"strategy":"WIDE"}`)}, apperrors.CodeMalformedCommand},
		{"negative choice", Command{Type: CmdResolveCrisis, Payload: json.RawMessage(`{"production_id":"p1","choice":-1}`)}, apperrors.CodeMalformedCommand},
		{"zero loan", Command{Type: CmdApplyLoan, Payload: json.RawMessage(`{"lender":"BANK","amount":0}`)}, apperrors.CodeMalformedCommand},
		{"missing investment kind", Command{Type: CmdBuyInvestment, Payload: json.RawMessage(`{}`)}, apperrors.CodeMalformedCommand},
		{"blank script title", Command{Type: CmdGreenlight, Payload: json.RawMessage(`{"title":" ","genre":"Drama","budget":1000,"quality":50}`)}, apperrors.CodeInvalidScript},
	}

	m := metrics.NewCollector()
	d := NewDispatcher(newTestStudio(t), logger.Discard(), m)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := d.Dispatch(context.Background(), tt.cmd)
			if env.Type != MsgError || env.Error == nil {
				t.Fatalf("expected an error envelope, got %+v", env)
			}
			if env.Error.Code != tt.code {
				t.Fatalf("expected %s, got %s (%s)", tt.code, env.Error.Code, env.Error.Message)
			}
			if env.Error.Kind != apperrors.KindValidation {
				t.Fatalf("expected a validation failure, got %s", env.Error.Kind)
			}
		})
	}
	env := d.Dispatch(context.Background(), Command{Type: CmdApplyLoan, Payload: json.RawMessage(`{"lender":"BANK","amount":-5}`)})
	if env.Error == nil || !strings.Contains(env.Error.Message, "field=amount") || !strings.Contains(env.Error.Message, "rule=gt") {
		t.Fatalf("expected the failing field and rule in the message, got %+v", env.Error)
	}
	if m.CommandsRejected != int64(len(tests)+1) {
		t.Fatalf("expected %d rejected commands counted, got %d", len(tests), m.CommandsRejected)
	}
}

func TestDispatchAdvanceNotifiesListeners(t *testing.T) {
	d := NewDispatcher(newTestStudio(t), logger.Discard(), nil)
	var weeks []int
	d.OnWeek(func(r engine.WeekReport) { weeks = append(weeks, r.Week) })

	for i := 0; i < 2; i++ {
		if env := d.Dispatch(context.Background(), Command{Type: CmdAdvanceWeek}); env.Type != MsgResult {
			t.Fatalf("advance failed: %+v", env.Error)
		}
	}
	if len(weeks) != 2 || weeks[0] != 1 || weeks[1] != 2 {
		t.Fatalf("expected listeners for weeks 1 and 2, got %v", weeks)
	}
}

func TestDispatchLoanAndSnapshot(t *testing.T) {
	d := NewDispatcher(newTestStudio(t), logger.Discard(), nil)

	env := d.Dispatch(context.Background(), Command{
		Type:    CmdApplyLoan,
		Payload: mustPayload(t, LoanPayload{Lender: finance.LenderBank, Amount: 50_000}),
	})
	if env.Type != MsgResult {
		t.Fatalf("loan rejected: %+v", env.Error)
	}

	env = d.Dispatch(context.Background(), Command{Type: CmdSnapshot})
	snap, ok := env.Data.(engine.Snapshot)
	if !ok {
		t.Fatalf("expected a snapshot, got %T", env.Data)
	}
	if snap.Cash != 650_000 || len(snap.Loans) != 1 {
		t.Fatalf("expected loan proceeds in cash, got cash=%d loans=%d", snap.Cash, len(snap.Loans))
	}
}
