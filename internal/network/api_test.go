package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/infra/storage"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

type stubCache struct {
	raw []byte
}

func (s stubCache) SnapshotJSON(context.Context, string) ([]byte, error) {
	if s.raw == nil {
		return nil, errors.New("miss")
	}
	return s.raw, nil
}

type stubRecap struct {
	since int
}

func (s *stubRecap) GenerateRecap(_ context.Context, _ string, sinceWeek int) ([]storage.RecapEvent, error) {
	s.since = sinceWeek
	return []storage.RecapEvent{{Week: sinceWeek, EventType: "GREENLIGHT", Summary: "ok", Impact: "NEUTRAL"}}, nil
}

func newTestAPI(t *testing.T, cache SnapshotCache, recap RecapSource) (*http.ServeMux, *events.EventLog) {
	t.Helper()
	studio := newTestStudio(t)
	api := NewAPI("studio-1", studio, NewDispatcher(studio, logger.Discard(), nil), studio.GetEventLog(), cache, recap, logger.Discard())
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return mux, studio.GetEventLog()
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestCommandEndpointStatuses(t *testing.T) {
	mux, _ := newTestAPI(t, nil, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   apperrors.Code
	}{
		{"greenlight", `{"type":"GREENLIGHT","payload":{"title":"Dust","genre":"Western","budget":80000,"quality":50}}`, http.StatusOK, ""},
		{"unaffordable", `{"type":"GREENLIGHT","payload":{"title":"Epic","genre":"Drama","budget":5000000,"quality":50}}`, http.StatusUnprocessableEntity, apperrors.CodeInsufficientCash},
		{"unknown production", `{"type":"RESOLVE_CRISIS","payload":{"production_id":"ghost","choice":0}}`, http.StatusNotFound, apperrors.CodeUnknownProduction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, http.MethodPost, "/api/command", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
			var env wireEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatal(err)
			}
			if tt.code != "" && (env.Error == nil || env.Error.Code != tt.code) {
				t.Fatalf("expected %s, got %+v", tt.code, env.Error)
			}
		})
	}

	if rec := serve(mux, http.MethodGet, "/api/command", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
	if rec := serve(mux, http.MethodPost, "/api/command", "nope"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for junk body, got %d", rec.Code)
	}
}

func TestSnapshotPrefersCache(t *testing.T) {
	mux, _ := newTestAPI(t, stubCache{raw: []byte(`{"cash":1}`)}, nil)
	rec := serve(mux, http.MethodGet, "/api/snapshot", "")
	if rec.Header().Get("X-Cache") != "HIT" || strings.TrimSpace(rec.Body.String()) != `{"cash":1}` {
		t.Fatalf("expected cached body, got %s %s", rec.Header().Get("X-Cache"), rec.Body)
	}

	mux, _ = newTestAPI(t, stubCache{}, nil)
	rec = serve(mux, http.MethodGet, "/api/snapshot", "")
	var snap struct {
		Cash int64 `json:"cash"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get("X-Cache") != "MISS" || snap.Cash != 600_000 {
		t.Fatalf("expected live snapshot on miss, got %s cash=%d", rec.Header().Get("X-Cache"), snap.Cash)
	}
}

func TestEventsEndpointFilters(t *testing.T) {
	mux, log := newTestAPI(t, nil, nil)
	log.Append(events.New(events.EventTypeGreenlight, "production", "p1", 0, nil))
	log.Append(events.New(events.EventTypeTransaction, "ledger", "p1", 0, nil))
	log.Append(events.New(events.EventTypeTransaction, "ledger", "l1", 3, nil))

	decode := func(rec *httptest.ResponseRecorder) HistoryResponse {
		t.Helper()
		var h HistoryResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
			t.Fatalf("decode %s: %v", rec.Body, err)
		}
		return h
	}

	if h := decode(serve(mux, http.MethodGet, "/api/events", "")); h.TotalEvents != 3 {
		t.Fatalf("expected 3 events, got %d", h.TotalEvents)
	}
	if h := decode(serve(mux, http.MethodGet, "/api/events?entity=p1&type=TRANSACTION", "")); h.TotalEvents != 1 || h.FilteredBy != "Entity p1, Type TRANSACTION" {
		t.Fatalf("unexpected filtered history %+v", h)
	}
	if h := decode(serve(mux, http.MethodGet, "/api/events?week=3", "")); h.TotalEvents != 1 || h.Events[0].EntityID != "l1" {
		t.Fatalf("unexpected week history %+v", h)
	}
	if rec := serve(mux, http.MethodGet, "/api/events?week=x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad week, got %d", rec.Code)
	}

	var stats struct {
		Total  int            `json:"total_events"`
		ByType map[string]int `json:"by_type"`
	}
	rec := serve(mux, http.MethodGet, "/api/events/stats", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.ByType["TRANSACTION"] != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRecapEndpoint(t *testing.T) {
	mux, _ := newTestAPI(t, nil, nil)
	if rec := serve(mux, http.MethodGet, "/api/recap", ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without persistence, got %d", rec.Code)
	}

	recap := &stubRecap{}
	mux, _ = newTestAPI(t, nil, recap)
	rec := serve(mux, http.MethodGet, "/api/recap?since=4", "")
	if rec.Code != http.StatusOK || recap.since != 4 {
		t.Fatalf("expected recap since week 4, got status %d since %d", rec.Code, recap.since)
	}
	var out []storage.RecapEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || len(out) != 1 {
		t.Fatalf("unexpected recap body %s", rec.Body)
	}
}
