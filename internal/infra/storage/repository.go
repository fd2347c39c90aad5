// Package storage provides the persistence layer for the studio server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// StoredEvent mirrors the domain event structure for persistence.
// The payload stays raw JSON so readers decode only what they need.
type StoredEvent struct {
	ID        string          `json:"id" db:"id"`
	StudioID  string          `json:"studio_id" db:"studio_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	EventType string          `json:"event_type" db:"event_type"`
	ActorID   string          `json:"actor_id" db:"actor_id"`
	EntityID  string          `json:"entity_id" db:"entity_id"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	Week      int             `json:"week" db:"week"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event StoredEvent) error

	// GetByStudio retrieves all events for a studio in append order (for replay).
	GetByStudio(ctx context.Context, studioID string) ([]StoredEvent, error)

	// GetByEntity retrieves all events touching a production, loan or investment.
	GetByEntity(ctx context.Context, studioID, entityID string) ([]StoredEvent, error)

	// GetByWeek retrieves all events from a specific simulation week.
	GetByWeek(ctx context.Context, studioID string, week int) ([]StoredEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, studioID string, eventType string) ([]StoredEvent, error)
}

// StudioSnapshot is the latest serialized engine snapshot for quick reads.
type StudioSnapshot struct {
	StudioID    string          `json:"studio_id" db:"studio_id"`
	Week        int             `json:"week" db:"week"`
	Cash        int64           `json:"cash" db:"cash"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	LastUpdated time.Time       `json:"last_updated" db:"last_updated"`
}

// SnapshotRepository defines the interface for studio snapshots.
type SnapshotRepository interface {
	// Upsert updates or inserts the studio's snapshot.
	Upsert(ctx context.Context, snapshot StudioSnapshot) error

	// Get retrieves the studio's snapshot, or nil when none was saved.
	Get(ctx context.Context, studioID string) (*StudioSnapshot, error)
}
