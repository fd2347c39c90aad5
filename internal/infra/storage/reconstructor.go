package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
)

// Reconstructor rebuilds studio books from the event log.
// This is used for:
// 1. Auditing a run against the live engine's cash
// 2. The weekly recap shown to a player who was away
// 3. Debugging a halted engine
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new ledger reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RebuiltLedger is the cash position derived purely from TRANSACTION events.
type RebuiltLedger struct {
	Cash         int64                      `json:"cash"`
	Transactions int                        `json:"transactions"`
	ByCategory   map[finance.Category]int64 `json:"by_category"`
	LastWeek     int                        `json:"last_week"`
}

// RecapEvent is a simplified event for the weekly recap screen.
type RecapEvent struct {
	Week      int    `json:"week"`
	EventType string `json:"event_type"`
	EntityID  string `json:"entity_id,omitempty"`
	Summary   string `json:"summary"`
	Impact    string `json:"impact"` // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// RebuildLedger replays every transaction onto startingCash.
func (r *Reconstructor) RebuildLedger(ctx context.Context, studioID string, startingCash int64) (*RebuiltLedger, error) {
	stored, err := r.eventRepo.GetByEventType(ctx, studioID, string(events.EventTypeTransaction))
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}

	out := &RebuiltLedger{Cash: startingCash, ByCategory: make(map[finance.Category]int64)}
	for _, e := range stored {
		var tx finance.Transaction
		if err := json.Unmarshal(e.Payload, &tx); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", e.ID, err)
		}
		out.Cash += tx.Amount
		out.ByCategory[tx.Category] += tx.Amount
		out.Transactions++
		if tx.Week > out.LastWeek {
			out.LastWeek = tx.Week
		}
	}
	return out, nil
}

// GenerateRecap summarizes the notable events since a given week.
func (r *Reconstructor) GenerateRecap(ctx context.Context, studioID string, sinceWeek int) ([]RecapEvent, error) {
	all, err := r.eventRepo.GetByStudio(ctx, studioID)
	if err != nil {
		return nil, err
	}

	var recap []RecapEvent
	for _, e := range all {
		if e.Week < sinceWeek {
			continue
		}
		summary, ok := r.summarizeEvent(e)
		if !ok {
			continue
		}
		recap = append(recap, RecapEvent{
			Week:      e.Week,
			EventType: e.EventType,
			EntityID:  e.EntityID,
			Summary:   summary,
			Impact:    r.determineImpact(e),
		})
	}
	return recap, nil
}

// summarizeEvent creates a human-readable line. Routine bookkeeping is skipped.
func (r *Reconstructor) summarizeEvent(e StoredEvent) (string, bool) {
	var fields map[string]interface{}
	_ = json.Unmarshal(e.Payload, &fields)
	str := func(key string) string {
		if v, ok := fields[key].(string); ok {
			return v
		}
		return ""
	}
	money := func(key string) string {
		if v, ok := fields[key].(float64); ok {
			return "$" + humanize.Comma(int64(v))
		}
		return "$?"
	}

	switch events.EventType(e.EventType) {
	case events.EventTypeGreenlight:
		return fmt.Sprintf("Greenlit %q with a %s budget.", str("title"), money("original_budget")), true
	case events.EventTypeCrisisTriggered:
		return str("headline") + " on set.", true
	case events.EventTypeCrisisResolved:
		return fmt.Sprintf("Crisis handled: %s (%s).", str("choice"), money("cost")), true
	case events.EventTypeProductionCompleted:
		return fmt.Sprintf("A picture wrapped at quality %v.", fields["final_quality"]), true
	case events.EventTypeFilmReleased:
		return fmt.Sprintf("Released %s to a %s reception, projected %s.", str("strategy"), str("reception"), money("projected_gross")), true
	case events.EventTypeFilmArchived:
		return fmt.Sprintf("A run closed with %s gross and %s net.", money("gross"), money("net_profit")), true
	case events.EventTypeLoanOriginated:
		return fmt.Sprintf("Borrowed %s from %s.", money("principal"), str("lender")), true
	case events.EventTypeLoanSettled:
		return "A loan was paid off.", true
	case events.EventTypeFavorDemanded:
		return str("headline") + ".", true
	case events.EventTypeSolvencyWarning:
		return str("message") + ".", true
	case events.EventTypeEngineHalted:
		return "The studio books were frozen after an accounting fault.", true
	default:
		return "", false
	}
}

// determineImpact classifies the event impact.
func (r *Reconstructor) determineImpact(e StoredEvent) string {
	switch events.EventType(e.EventType) {
	case events.EventTypeCrisisTriggered, events.EventTypeFavorDemanded,
		events.EventTypeSolvencyWarning, events.EventTypeEngineHalted:
		return "NEGATIVE"
	case events.EventTypeProductionCompleted, events.EventTypeLoanSettled:
		return "POSITIVE"
	case events.EventTypeFilmArchived:
		var fields struct {
			NetProfit int64 `json:"net_profit"`
		}
		if json.Unmarshal(e.Payload, &fields) == nil && fields.NetProfit > 0 {
			return "POSITIVE"
		}
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}
