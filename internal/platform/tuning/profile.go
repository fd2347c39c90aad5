// Package tuning provides load profiles for the studio server.
package tuning

import (
	"fmt"
	"runtime"
	"time"
)

// Profile holds the knobs that trade memory for latency under load.
type Profile struct {
	Name string

	ClientSendBuffer  int           // per-WebSocket outgoing queue
	EventPollInterval time.Duration // how often the hub scans the event log
	RedisPoolSize     int
	MaxClients        int // concurrent WebSocket clients, 0 = unlimited
}

// Default returns sensible defaults for production.
func Default() *Profile {
	numCPU := runtime.NumCPU()

	return &Profile{
		Name:              "default",
		ClientSendBuffer:  64,
		EventPollInterval: 200 * time.Millisecond,
		RedisPoolSize:     numCPU * 2,
		MaxClients:        200,
	}
}

// Stress returns aggressive settings for load testing with many autopilots.
func Stress() *Profile {
	numCPU := runtime.NumCPU()

	return &Profile{
		Name:              "stress",
		ClientSendBuffer:  128,
		EventPollInterval: 50 * time.Millisecond,
		RedisPoolSize:     numCPU * 4,
		MaxClients:        500,
	}
}

// LowResource returns minimal settings for development.
func LowResource() *Profile {
	return &Profile{
		Name:              "low",
		ClientSendBuffer:  8,
		EventPollInterval: 500 * time.Millisecond,
		RedisPoolSize:     5,
		MaxClients:        20,
	}
}

// ByName returns the named profile. An empty name selects Default.
func ByName(name string) (*Profile, error) {
	switch name {
	case "", "default":
		return Default(), nil
	case "stress":
		return Stress(), nil
	case "low":
		return LowResource(), nil
	default:
		return nil, fmt.Errorf("unknown tuning profile %q", name)
	}
}

// Recommendations are adjustments suggested by observed metrics.
type Recommendations struct {
	IncreaseSendBuffer bool
	SlowEventPoller    bool
	RaiseClientCap     bool
	CheckStorage       bool
	Notes              []string
}

// Empty reports whether nothing needs to change.
func (r *Recommendations) Empty() bool {
	return len(r.Notes) == 0
}

// Analyze examines a metrics snapshot against p.
func Analyze(p *Profile, metrics map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Week latency: the poller contends for the engine lock
	if tick, ok := metrics["tick"].(map[string]interface{}); ok {
		if maxLat, ok := tick["max_latency_ms"].(float64); ok && maxLat > 100 {
			rec.SlowEventPoller = true
			rec.Notes = append(rec.Notes, "Week latency exceeds 100ms - poll the event log less often")
		}
	}

	if events, ok := metrics["events"].(map[string]interface{}); ok {
		if errors, ok := events["errors"].(int64); ok && errors > 0 {
			rec.CheckStorage = true
			rec.Notes = append(rec.Notes, "Event write errors detected - check the SQLite path")
		}
	}

	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if errors, ok := ws["errors"].(int64); ok && errors > 0 {
			rec.IncreaseSendBuffer = true
			rec.Notes = append(rec.Notes, "WebSocket errors detected - increase client send buffer")
		}
		if active, ok := ws["active_connections"].(int64); ok && p.MaxClients > 0 && active*5 >= int64(p.MaxClients)*4 {
			rec.RaiseClientCap = true
			rec.Notes = append(rec.Notes, "Connections above 80% of the cap - raise max clients")
		}
	}

	return rec
}

// Apply returns a copy of p adjusted by rec.
func Apply(p *Profile, rec *Recommendations) *Profile {
	out := *p
	if rec.IncreaseSendBuffer {
		out.ClientSendBuffer *= 2
	}
	if rec.SlowEventPoller {
		out.EventPollInterval *= 2
	}
	if rec.RaiseClientCap {
		out.MaxClients = out.MaxClients * 3 / 2
	}
	return &out
}
