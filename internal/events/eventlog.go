// Package events provides the append-only record of every weekly effect the
// simulation applies. Anything that moves cash, changes a film's stage or
// needs a decision lands here, which is what makes a run reconstructable.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a studio event.
type EventType string

const (
	EventTypeWeekAdvanced        EventType = "WEEK_ADVANCED"
	EventTypeDecisionRequired    EventType = "DECISION_REQUIRED"
	EventTypeTransaction         EventType = "TRANSACTION"
	EventTypeGreenlight          EventType = "GREENLIGHT"
	EventTypeContentReviewed     EventType = "CONTENT_REVIEWED"
	EventTypeCastingAssigned     EventType = "CASTING_ASSIGNED"
	EventTypePhaseChanged        EventType = "PHASE_CHANGED"
	EventTypeCrisisTriggered     EventType = "CRISIS_TRIGGERED"
	EventTypeCrisisResolved      EventType = "CRISIS_RESOLVED"
	EventTypeProductionCompleted EventType = "PRODUCTION_COMPLETED"
	EventTypeFilmReleased        EventType = "FILM_RELEASED"
	EventTypeBoxOfficeWeek       EventType = "BOX_OFFICE_WEEK"
	EventTypeFilmArchived        EventType = "FILM_ARCHIVED"
	EventTypeLoanOriginated      EventType = "LOAN_ORIGINATED"
	EventTypeLoanSettled         EventType = "LOAN_SETTLED"
	EventTypeInvestmentPurchased EventType = "INVESTMENT_PURCHASED"
	EventTypeCreditRated         EventType = "CREDIT_RATED"
	EventTypeFavorDemanded       EventType = "FAVOR_DEMANDED"
	EventTypeFavorResolved       EventType = "FAVOR_RESOLVED"
	EventTypeSolvencyWarning     EventType = "SOLVENCY_WARNING"
	EventTypeEngineHalted        EventType = "ENGINE_HALTED"
)

// StudioEvent represents an immutable record of something the simulation did.
type StudioEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`  // Subsystem that produced the event
	EntityID  string      `json:"entity_id"` // Production, loan or investment affected (optional)
	Payload   interface{} `json:"payload"`   // Event-specific data
	Week      int         `json:"week"`
}

// New builds an event stamped with a fresh ID and the current time.
func New(eventType EventType, actorID, entityID string, week int, payload interface{}) StudioEvent {
	return StudioEvent{
		ID:        GenerateEventID(),
		Timestamp: time.Now(),
		Type:      eventType,
		ActorID:   actorID,
		EntityID:  entityID,
		Payload:   payload,
		Week:      week,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event StudioEvent) error
}

// Subscriber is notified synchronously after every append.
type Subscriber func(event StudioEvent)

// EventLog is the in-memory append-only log of studio events.
type EventLog struct {
	mu          sync.RWMutex
	events      []StudioEvent
	persister   EventPersister
	subscribers []Subscriber
	persistErrs int
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]StudioEvent, 0),
		persister: persister,
	}
}

// Subscribe registers fn to receive every future event.
func (el *EventLog) Subscribe(fn Subscriber) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.subscribers = append(el.subscribers, fn)
}

// Append adds a new event to the log. Events are immutable once appended.
// The persister is written synchronously so stored order matches log order.
func (el *EventLog) Append(event StudioEvent) {
	el.mu.Lock()
	el.events = append(el.events, event)
	if el.persister != nil {
		if err := el.persister.Append(event); err != nil {
			el.persistErrs++
		}
	}
	subs := append([]Subscriber(nil), el.subscribers...)
	el.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

// PersistErrors returns how many appends failed to reach the persister.
func (el *EventLog) PersistErrors() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.persistErrs
}

// GetByEntity returns all events that touched a specific entity.
func (el *EventLog) GetByEntity(entityID string) []StudioEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []StudioEvent
	for _, e := range el.events {
		if e.EntityID == entityID {
			result = append(result, e)
		}
	}
	return result
}

// GetByWeek returns all events recorded during a simulation week.
func (el *EventLog) GetByWeek(week int) []StudioEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []StudioEvent
	for _, e := range el.events {
		if e.Week == week {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of one type in append order.
func (el *EventLog) GetByType(eventType EventType) []StudioEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []StudioEvent
	for _, e := range el.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history for state reconstruction.
func (el *EventLog) Replay() []StudioEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return append([]StudioEvent(nil), el.events...)
}

// Len returns the number of events recorded.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
