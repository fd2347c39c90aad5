// Package autopilot runs the studio without a player.
//
// It repeats a Perceive-Decide-Act loop: the Perceiver turns a snapshot into a
// StudioState, the Cognitor picks one command under hard guard rules, and the
// Executor sends it through a Sink. The same loop drives the headless
// simulator in-process and the WebSocket autopilot against a live server.
package autopilot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// Pressure is a coarse read of how close the studio is to running dry.
type Pressure string

const (
	PressureLow      Pressure = "LOW"
	PressureMedium   Pressure = "MEDIUM"
	PressureHigh     Pressure = "HIGH"
	PressureCritical Pressure = "CRITICAL"
)

// FilmView is what the pilot needs to know about one production.
type FilmView struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Stage        film.StageKind `json:"stage"`
	Quality      float64        `json:"quality"`
	FinalQuality int            `json:"final_quality,omitempty"`
	Crisis       *film.Crisis   `json:"crisis,omitempty"`
}

// StudioState is the perceived situation at one instant.
type StudioState struct {
	Week          int                      `json:"week"`
	Cash          int64                    `json:"cash"`
	Reputation    int                      `json:"reputation"`
	Rating        finance.CreditRating     `json:"rating"`
	TotalDebt     int64                    `json:"total_debt"`
	Obligations   int                      `json:"obligations"`
	CanGreenlight bool                     `json:"can_greenlight"`
	Films         []FilmView               `json:"films"`
	Owned         []finance.InvestmentKind `json:"owned"`
	Awaiting      *engine.Awaiting         `json:"awaiting,omitempty"`
	PendingFavor  *finance.FavorDemand     `json:"pending_favor,omitempty"`
	Halted        bool                     `json:"halted"`
	Pressure      Pressure                 `json:"pressure"`
}

// Film returns the view for id.
func (s *StudioState) Film(id string) (FilmView, bool) {
	for _, f := range s.Films {
		if f.ID == id {
			return f, true
		}
	}
	return FilmView{}, false
}

// Owns reports whether the studio already holds kind.
func (s *StudioState) Owns(kind finance.InvestmentKind) bool {
	for _, k := range s.Owned {
		if k == kind {
			return true
		}
	}
	return false
}

// FromSnapshot builds the state from an in-process snapshot.
func FromSnapshot(snap engine.Snapshot) *StudioState {
	st := &StudioState{
		Week:          snap.Week,
		Cash:          snap.Cash,
		Reputation:    snap.Reputation,
		Rating:        snap.Rating,
		TotalDebt:     snap.TotalDebt,
		Obligations:   snap.Obligations,
		CanGreenlight: snap.CanGreenlight,
		Awaiting:      snap.Awaiting,
		PendingFavor:  snap.PendingFavor,
		Halted:        snap.Halted != "",
	}
	for _, inv := range snap.Investments {
		st.Owned = append(st.Owned, inv.Kind)
	}
	for _, p := range snap.Productions {
		fv := FilmView{ID: p.ID, Title: p.Title, Stage: p.StageKind, Quality: p.Quality}
		switch s := p.Detail.(type) {
		case *film.InProduction:
			if s.PendingCrisis != nil && !s.PendingCrisis.Resolved {
				fv.Crisis = s.PendingCrisis
			}
		case *film.ReadyForRelease:
			fv.FinalQuality = s.FinalQuality
		}
		st.Films = append(st.Films, fv)
	}
	st.Pressure = pressureFor(st.Cash)
	return st
}

type wireProduction struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Quality float64         `json:"quality"`
	Stage   film.StageKind  `json:"stage"`
	Detail  json.RawMessage `json:"detail"`
}

// DecodeSnapshot builds the state from a snapshot received as JSON.
func DecodeSnapshot(raw []byte) (*StudioState, error) {
	var wire struct {
		Week          int                  `json:"week"`
		Cash          int64                `json:"cash"`
		Reputation    int                  `json:"reputation"`
		Rating        finance.CreditRating `json:"rating"`
		TotalDebt     int64                `json:"total_debt"`
		Obligations   int                  `json:"obligations"`
		CanGreenlight bool                 `json:"can_greenlight"`
		Investments   []finance.Investment `json:"investments"`
		Awaiting      *engine.Awaiting     `json:"awaiting"`
		PendingFavor  *finance.FavorDemand `json:"pending_favor"`
		Halted        string               `json:"halted"`
		Productions   []wireProduction     `json:"productions"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	st := &StudioState{
		Week:          wire.Week,
		Cash:          wire.Cash,
		Reputation:    wire.Reputation,
		Rating:        wire.Rating,
		TotalDebt:     wire.TotalDebt,
		Obligations:   wire.Obligations,
		CanGreenlight: wire.CanGreenlight,
		Awaiting:      wire.Awaiting,
		PendingFavor:  wire.PendingFavor,
		Halted:        wire.Halted != "",
	}
	for _, inv := range wire.Investments {
		st.Owned = append(st.Owned, inv.Kind)
	}
	for _, p := range wire.Productions {
		fv := FilmView{ID: p.ID, Title: p.Title, Stage: p.Stage, Quality: p.Quality}
		switch p.Stage {
		case film.StageInProduction:
			var ip film.InProduction
			if err := json.Unmarshal(p.Detail, &ip); err != nil {
				return nil, fmt.Errorf("decode production %s: %w", p.ID, err)
			}
			if ip.PendingCrisis != nil && !ip.PendingCrisis.Resolved {
				fv.Crisis = ip.PendingCrisis
			}
		case film.StageReadyForRelease:
			var r film.ReadyForRelease
			if err := json.Unmarshal(p.Detail, &r); err != nil {
				return nil, fmt.Errorf("decode production %s: %w", p.ID, err)
			}
			fv.FinalQuality = r.FinalQuality
		}
		st.Films = append(st.Films, fv)
	}
	st.Pressure = pressureFor(st.Cash)
	return st, nil
}

func pressureFor(cash int64) Pressure {
	switch {
	case cash < 0:
		return PressureCritical
	case cash < 100_000:
		return PressureHigh
	case cash < 300_000:
		return PressureMedium
	default:
		return PressureLow
	}
}

// Perceiver asks the studio for a snapshot through the same sink the pilot
// acts through, so it works in-process and over the wire.
type Perceiver struct {
	sink   Sink
	logger *logger.Logger
}

// NewPerceiver creates a new perception module.
func NewPerceiver(sink Sink, log *logger.Logger) *Perceiver {
	return &Perceiver{sink: sink, logger: log}
}

// Perceive fetches and interprets the current snapshot.
func (p *Perceiver) Perceive(ctx context.Context) (*StudioState, error) {
	env, err := p.sink.Send(ctx, network.Command{Type: network.CmdSnapshot})
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, fmt.Errorf("snapshot rejected: %s", env.Error.Message)
	}

	var st *StudioState
	switch data := env.Data.(type) {
	case engine.Snapshot:
		st = FromSnapshot(data)
	case json.RawMessage:
		if st, err = DecodeSnapshot(data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unexpected snapshot payload %T", env.Data)
	}

	p.logger.Event("PERCEPTION", "autopilot",
		fmt.Sprintf("week %d, cash %d, pressure %s", st.Week, st.Cash, st.Pressure))
	return st, nil
}
