package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const eventColumns = `id, studio_id, timestamp, event_type, actor_id, entity_id, payload, week`

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event StoredEvent) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "null"
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.StudioID, event.Timestamp, event.EventType, event.ActorID,
		event.EntityID, payload, event.Week,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, where string, args ...interface{}) ([]StoredEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var payload string
		err := rows.Scan(
			&e.ID, &e.StudioID, &e.Timestamp, &e.EventType, &e.ActorID,
			&e.EntityID, &payload, &e.Week,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByStudio(ctx context.Context, studioID string) ([]StoredEvent, error) {
	return r.getMany(ctx, `studio_id = ?`, studioID)
}

func (r *SQLiteEventRepository) GetByEntity(ctx context.Context, studioID, entityID string) ([]StoredEvent, error) {
	return r.getMany(ctx, `studio_id = ? AND entity_id = ?`, studioID, entityID)
}

func (r *SQLiteEventRepository) GetByWeek(ctx context.Context, studioID string, week int) ([]StoredEvent, error) {
	return r.getMany(ctx, `studio_id = ? AND week = ?`, studioID, week)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, studioID string, eventType string) ([]StoredEvent, error) {
	return r.getMany(ctx, `studio_id = ? AND event_type = ?`, studioID, eventType)
}

// ---------------------------------------------------------
// SQLiteSnapshotRepository
// ---------------------------------------------------------

type SQLiteSnapshotRepository struct {
	db *sql.DB
}

func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

func (r *SQLiteSnapshotRepository) Upsert(ctx context.Context, snapshot StudioSnapshot) error {
	updated := snapshot.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}
	query := `
		INSERT INTO studio_snapshots (studio_id, week, cash, payload, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(studio_id) DO UPDATE SET
			week=excluded.week,
			cash=excluded.cash,
			payload=excluded.payload,
			last_updated=excluded.last_updated
	`
	_, err := r.db.ExecContext(ctx, query,
		snapshot.StudioID, snapshot.Week, snapshot.Cash, string(snapshot.Payload), updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteSnapshotRepository) Get(ctx context.Context, studioID string) (*StudioSnapshot, error) {
	query := `SELECT studio_id, week, cash, payload, last_updated FROM studio_snapshots WHERE studio_id = ?`
	var s StudioSnapshot
	var payload string
	err := r.db.QueryRowContext(ctx, query, studioID).Scan(&s.StudioID, &s.Week, &s.Cash, &payload, &s.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	s.Payload = []byte(payload)
	return &s, nil
}
