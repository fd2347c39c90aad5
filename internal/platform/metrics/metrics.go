// Package metrics provides observability for the studio server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance and simulation metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// Simulation
	WeeksCompleted   int64
	Cash             int64
	CrisesTriggered  int64
	FilmsCompleted   int64
	FilmsArchived    int64
	BoxOfficeRevenue int64
	CommandsRejected int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = NewCollector()

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordWeek records the outcome of a closed week.
func (c *Collector) RecordWeek(cash int64, crises, completed, archived int, revenue int64) {
	atomic.AddInt64(&c.WeeksCompleted, 1)
	atomic.StoreInt64(&c.Cash, cash)
	atomic.AddInt64(&c.CrisesTriggered, int64(crises))
	atomic.AddInt64(&c.FilmsCompleted, int64(completed))
	atomic.AddInt64(&c.FilmsArchived, int64(archived))
	atomic.AddInt64(&c.BoxOfficeRevenue, revenue)
}

// RecordRejectedCommand counts a player command the engine refused.
func (c *Collector) RecordRejectedCommand() {
	atomic.AddInt64(&c.CommandsRejected, 1)
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))

	if int64(latency) > atomic.LoadInt64(&c.EventWriteLatMax) {
		atomic.StoreInt64(&c.EventWriteLatMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	// Calculate averages
	var tickAvg, eventAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},

		"studio": map[string]interface{}{
			"weeks":              atomic.LoadInt64(&c.WeeksCompleted),
			"cash":               atomic.LoadInt64(&c.Cash),
			"crises":             atomic.LoadInt64(&c.CrisesTriggered),
			"films_completed":    atomic.LoadInt64(&c.FilmsCompleted),
			"films_archived":     atomic.LoadInt64(&c.FilmsArchived),
			"box_office_revenue": atomic.LoadInt64(&c.BoxOfficeRevenue),
			"commands_rejected":  atomic.LoadInt64(&c.CommandsRejected),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return collector.Handler()
}

// Handler serves this collector as JSON.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return collector.PrometheusHandler()
}

// PrometheusHandler serves this collector in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Tick metrics
		fmt.Fprintf(w, "# HELP backlot_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE backlot_tick_count counter\n")
		fmt.Fprintf(w, "backlot_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP backlot_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE backlot_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "backlot_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		// Event metrics
		fmt.Fprintf(w, "# HELP backlot_events_written Total events written\n")
		fmt.Fprintf(w, "# TYPE backlot_events_written counter\n")
		fmt.Fprintf(w, "backlot_events_written %d\n\n", atomic.LoadInt64(&c.EventsWritten))

		fmt.Fprintf(w, "# HELP backlot_event_write_errors Total event write errors\n")
		fmt.Fprintf(w, "# TYPE backlot_event_write_errors counter\n")
		fmt.Fprintf(w, "backlot_event_write_errors %d\n\n", atomic.LoadInt64(&c.EventWriteErrors))

		// WebSocket metrics
		fmt.Fprintf(w, "# HELP backlot_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE backlot_ws_connections gauge\n")
		fmt.Fprintf(w, "backlot_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP backlot_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE backlot_ws_messages_total counter\n")
		fmt.Fprintf(w, "backlot_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "backlot_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		// Simulation metrics
		fmt.Fprintf(w, "# HELP backlot_weeks_total Simulation weeks advanced\n")
		fmt.Fprintf(w, "# TYPE backlot_weeks_total counter\n")
		fmt.Fprintf(w, "backlot_weeks_total %d\n\n", atomic.LoadInt64(&c.WeeksCompleted))

		fmt.Fprintf(w, "# HELP backlot_cash_dollars Studio cash balance\n")
		fmt.Fprintf(w, "# TYPE backlot_cash_dollars gauge\n")
		fmt.Fprintf(w, "backlot_cash_dollars %d\n\n", atomic.LoadInt64(&c.Cash))

		fmt.Fprintf(w, "# HELP backlot_crises_total Production crises rolled\n")
		fmt.Fprintf(w, "# TYPE backlot_crises_total counter\n")
		fmt.Fprintf(w, "backlot_crises_total %d\n\n", atomic.LoadInt64(&c.CrisesTriggered))

		fmt.Fprintf(w, "# HELP backlot_films_total Films by lifecycle milestone\n")
		fmt.Fprintf(w, "# TYPE backlot_films_total counter\n")
		fmt.Fprintf(w, "backlot_films_total{milestone=\"completed\"} %d\n", atomic.LoadInt64(&c.FilmsCompleted))
		fmt.Fprintf(w, "backlot_films_total{milestone=\"archived\"} %d\n\n", atomic.LoadInt64(&c.FilmsArchived))

		fmt.Fprintf(w, "# HELP backlot_box_office_revenue_dollars Studio box-office revenue\n")
		fmt.Fprintf(w, "# TYPE backlot_box_office_revenue_dollars counter\n")
		fmt.Fprintf(w, "backlot_box_office_revenue_dollars %d\n\n", atomic.LoadInt64(&c.BoxOfficeRevenue))

		fmt.Fprintf(w, "# HELP backlot_commands_rejected_total Player commands refused by the engine\n")
		fmt.Fprintf(w, "# TYPE backlot_commands_rejected_total counter\n")
		fmt.Fprintf(w, "backlot_commands_rejected_total %d\n", atomic.LoadInt64(&c.CommandsRejected))
	}
}
