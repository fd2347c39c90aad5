package network

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/infra/storage"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// SnapshotCache serves pre-rendered snapshots. *cache.StudioCache satisfies it.
type SnapshotCache interface {
	SnapshotJSON(ctx context.Context, studioID string) ([]byte, error)
}

// RecapSource summarizes persisted history. *storage.Reconstructor satisfies it.
type RecapSource interface {
	GenerateRecap(ctx context.Context, studioID string, sinceWeek int) ([]storage.RecapEvent, error)
}

// API exposes the studio over plain HTTP for dashboards and scripts.
type API struct {
	studioID   string
	studio     Studio
	dispatcher *Dispatcher
	eventLog   *events.EventLog
	cache      SnapshotCache // optional
	recap      RecapSource   // optional
	logger     *logger.Logger
}

// NewAPI creates the HTTP surface. cache and recap may be nil.
func NewAPI(studioID string, studio Studio, dispatcher *Dispatcher, eventLog *events.EventLog,
	cache SnapshotCache, recap RecapSource, log *logger.Logger) *API {
	return &API{
		studioID:   studioID,
		studio:     studio,
		dispatcher: dispatcher,
		eventLog:   eventLog,
		cache:      cache,
		recap:      recap,
		logger:     log,
	}
}

// HistoryResponse is the body of GET /api/events.
type HistoryResponse struct {
	StudioID    string               `json:"studio_id"`
	TotalEvents int                  `json:"total_events"`
	FilteredBy  string               `json:"filtered_by,omitempty"`
	GeneratedAt string               `json:"generated_at"`
	Events      []events.StudioEvent `json:"events"`
}

// RegisterRoutes sets up the studio API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/snapshot", a.HandleSnapshot)
	mux.HandleFunc("/api/command", a.HandleCommand)
	mux.HandleFunc("/api/events", a.HandleEvents)
	mux.HandleFunc("/api/events/stats", a.HandleStats)
	mux.HandleFunc("/api/recap", a.HandleRecap)
}

// HandleSnapshot returns the studio snapshot, from cache when one is fresh.
// GET /api/snapshot
func (a *API) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.cache != nil {
		if raw, err := a.cache.SnapshotJSON(r.Context(), a.studioID); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(raw)
			return
		}
	}
	w.Header().Set("X-Cache", "MISS")
	a.writeJSON(w, http.StatusOK, a.studio.Snapshot())
}

// HandleCommand runs one command through the same dispatcher the WebSocket uses.
// POST /api/command {"type":"GREENLIGHT","payload":{...}}
func (a *API) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		a.jsonError(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	env := a.dispatcher.Dispatch(r.Context(), cmd)
	status := http.StatusOK
	if env.Error != nil {
		status = statusFor(env.Error)
	}
	a.writeJSON(w, status, env)
}

// HandleEvents returns the event history, optionally filtered.
// GET /api/events?week=N | entity=ID | type=TRANSACTION
func (a *API) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	var list []events.StudioEvent
	filterDesc := ""
	switch {
	case q.Get("week") != "":
		week, err := strconv.Atoi(q.Get("week"))
		if err != nil {
			a.jsonError(w, "week must be an integer", http.StatusBadRequest)
			return
		}
		list = a.eventLog.GetByWeek(week)
		filterDesc = "Week " + q.Get("week")
	case q.Get("entity") != "":
		list = a.eventLog.GetByEntity(q.Get("entity"))
		filterDesc = "Entity " + q.Get("entity")
	default:
		list = a.eventLog.Replay()
	}

	if t := q.Get("type"); t != "" {
		filtered := list[:0:0]
		for _, e := range list {
			if string(e.Type) == t {
				filtered = append(filtered, e)
			}
		}
		list = filtered
		if filterDesc != "" {
			filterDesc += ", "
		}
		filterDesc += "Type " + t
	}
	if list == nil {
		list = []events.StudioEvent{}
	}

	a.writeJSON(w, http.StatusOK, HistoryResponse{
		StudioID:    a.studioID,
		TotalEvents: len(list),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      list,
	})
}

// HandleStats returns event counts by type.
// GET /api/events/stats
func (a *API) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := a.eventLog.Replay()
	byType := make(map[events.EventType]int)
	for _, e := range all {
		byType[e.Type]++
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": len(all),
		"by_type":      byType,
	})
}

// HandleRecap returns the persisted recap since a week.
// GET /api/recap?since=N
func (a *API) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.recap == nil {
		a.jsonError(w, "Recap requires persistence", http.StatusNotImplemented)
		return
	}

	since := 0
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			a.jsonError(w, "since must be an integer", http.StatusBadRequest)
			return
		}
		since = v
	}

	recap, err := a.recap.GenerateRecap(r.Context(), a.studioID, since)
	if err != nil {
		a.logger.Error("recap failed: " + err.Error())
		a.jsonError(w, "Recap unavailable", http.StatusInternalServerError)
		return
	}
	if recap == nil {
		recap = []storage.RecapEvent{}
	}
	a.writeJSON(w, http.StatusOK, recap)
}

// statusFor maps a rejected command onto an HTTP status.
func statusFor(d *ErrorDetail) int {
	switch d.Kind {
	case apperrors.KindValidation:
		if d.Code == apperrors.CodeUnknownProduction {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case apperrors.KindInvariant:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn("failed to write response: " + err.Error())
	}
}

// jsonError sends an error response.
func (a *API) jsonError(w http.ResponseWriter, message string, status int) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

var _ Studio = (*engine.Engine)(nil)
