package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
)

// EventPersister translates domain events into stored events. It satisfies
// events.EventPersister so the in-memory log can write through to SQLite.
type EventPersister struct {
	repo     EventRepository
	studioID string
	metrics  *metrics.Collector
	timeout  time.Duration
}

// NewEventPersister binds repo to one studio. m may be nil.
func NewEventPersister(repo EventRepository, studioID string, m *metrics.Collector) *EventPersister {
	return &EventPersister{
		repo:     repo,
		studioID: studioID,
		metrics:  m,
		timeout:  5 * time.Second,
	}
}

// Append stores one event.
func (p *EventPersister) Append(event events.StudioEvent) error {
	start := time.Now()
	err := p.append(event)
	if p.metrics != nil {
		p.metrics.RecordEventWrite(time.Since(start), err)
	}
	return err
}

func (p *EventPersister) append(event events.StudioEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.repo.Append(ctx, StoredEvent{
		ID:        event.ID,
		StudioID:  p.studioID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		EntityID:  event.EntityID,
		Payload:   payload,
		Week:      event.Week,
	})
}
