package autopilot

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

func sampleSnapshot() engine.Snapshot {
	shooting := film.NewProduction("p1", film.Script{Title: "Golden Express", Genre: film.GenreWestern, Budget: 200_000, Quality: 60}, 1)
	crisis := &film.Crisis{
		ID:       "c1",
		Kind:     "SCRIPT_REWRITE",
		Headline: "The third act does not work",
		Choices:  []outcome.Choice{{Label: "Rewrite", Cost: 4_000}},
		Week:     2,
	}
	shooting.Stage = &film.InProduction{Phase: film.PhaseDevelopment, PendingCrisis: crisis}

	done := film.NewProduction("p2", film.Script{Title: "Crimson Serenade", Genre: film.GenreMusical, Budget: 120_000, Quality: 70}, 0)
	done.Stage = &film.ReadyForRelease{CompletedWeek: 2, FinalQuality: 66}

	return engine.Snapshot{
		Week:          2,
		Cash:          80_000,
		Reputation:    44,
		Rating:        finance.RatingFair,
		Obligations:   1,
		TotalDebt:     50_000,
		CanGreenlight: false,
		Investments:   []*finance.Investment{{ID: "i1", Kind: finance.InvestmentFilmLibrary}},
		Awaiting:      &engine.Awaiting{Kind: engine.DecisionCrisis, EntityID: "p1", Week: 3},
		Productions: []engine.ProductionView{
			{Production: shooting, StageKind: film.StageInProduction, Detail: shooting.Stage},
			{Production: done, StageKind: film.StageReadyForRelease, Detail: done.Stage},
		},
	}
}

func TestFromSnapshot(t *testing.T) {
	st := FromSnapshot(sampleSnapshot())

	if st.Pressure != PressureHigh {
		t.Errorf("expected HIGH pressure at 80000, got %s", st.Pressure)
	}
	if !st.Owns(finance.InvestmentFilmLibrary) || st.Owns(finance.InvestmentTheaterChain) {
		t.Errorf("unexpected holdings %v", st.Owned)
	}
	shooting, ok := st.Film("p1")
	if !ok || shooting.Crisis == nil || shooting.Crisis.ID != "c1" {
		t.Fatalf("expected the pending crisis on p1, got %+v", shooting)
	}
	done, _ := st.Film("p2")
	if done.Stage != film.StageReadyForRelease || done.FinalQuality != 66 {
		t.Errorf("unexpected finished film %+v", done)
	}
	if _, ok := st.Film("p3"); ok {
		t.Error("expected no p3")
	}
}

func TestDecodeSnapshotMatchesInProcess(t *testing.T) {
	snap := sampleSnapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if want := FromSnapshot(snap); !reflect.DeepEqual(want, decoded) {
		t.Errorf("wire state differs:\nwant %+v\ngot  %+v", want, decoded)
	}

	if _, err := DecodeSnapshot([]byte(`{"week":"soon"}`)); err == nil {
		t.Error("expected a decode error")
	}
}

type cannedSink struct {
	env network.Envelope
	got []network.Command
}

func (s *cannedSink) Send(_ context.Context, cmd network.Command) (network.Envelope, error) {
	s.got = append(s.got, cmd)
	return s.env, nil
}

func TestPerceiveAcceptsRawSnapshots(t *testing.T) {
	raw, _ := json.Marshal(sampleSnapshot())
	sink := &cannedSink{env: network.Envelope{Type: network.MsgResult, Data: json.RawMessage(raw)}}

	st, err := NewPerceiver(sink, logger.Discard()).Perceive(context.Background())
	if err != nil {
		t.Fatalf("perceive failed: %v", err)
	}
	if st.Week != 2 || len(st.Films) != 2 {
		t.Errorf("unexpected state %+v", st)
	}
	if len(sink.got) != 1 || sink.got[0].Type != network.CmdSnapshot {
		t.Errorf("expected one SNAPSHOT command, got %+v", sink.got)
	}

	sink.env = network.Envelope{Type: network.MsgError, Error: &network.ErrorDetail{Message: "nope"}}
	if _, err := NewPerceiver(sink, logger.Discard()).Perceive(context.Background()); err == nil {
		t.Error("expected an error for a rejected snapshot")
	}
}
