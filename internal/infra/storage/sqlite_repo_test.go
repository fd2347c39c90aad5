package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/finance"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "nested", "backlot.db"))
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// steadyRoller never fires a random event.
type steadyRoller struct{}

func (steadyRoller) Float64() float64 { return 0.99 }
func (steadyRoller) Intn(int) int     { return 0 }

func TestEventRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))

	now := time.Now()
	fixtures := []StoredEvent{
		{ID: "e1", StudioID: "s1", Timestamp: now, EventType: "GREENLIGHT", ActorID: "production", EntityID: "p1", Payload: json.RawMessage(`{"title":"A"}`), Week: 0},
		{ID: "e2", StudioID: "s1", Timestamp: now, EventType: "TRANSACTION", ActorID: "ledger", EntityID: "p1", Payload: json.RawMessage(`{"amount":-5}`), Week: 1},
		{ID: "e3", StudioID: "s1", Timestamp: now, EventType: "TRANSACTION", ActorID: "ledger", EntityID: "l1", Payload: json.RawMessage(`{"amount":9}`), Week: 1},
		{ID: "e4", StudioID: "s2", Timestamp: now, EventType: "TRANSACTION", ActorID: "ledger", EntityID: "p1", Week: 1},
	}
	for _, e := range fixtures {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.ID, err)
		}
	}
	if err := repo.Append(ctx, fixtures[0]); err == nil {
		t.Fatal("expected duplicate event id to be rejected")
	}

	all, err := repo.GetByStudio(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "e1" || all[2].ID != "e3" {
		t.Fatalf("expected e1..e3 in append order, got %+v", all)
	}
	if string(all[1].Payload) != `{"amount":-5}` {
		t.Fatalf("payload not preserved: %s", all[1].Payload)
	}

	byEntity, _ := repo.GetByEntity(ctx, "s1", "p1")
	if len(byEntity) != 2 {
		t.Fatalf("expected 2 events for p1, got %d", len(byEntity))
	}
	byWeek, _ := repo.GetByWeek(ctx, "s1", 1)
	if len(byWeek) != 2 {
		t.Fatalf("expected 2 events in week 1, got %d", len(byWeek))
	}
	byType, _ := repo.GetByEventType(ctx, "s2", "TRANSACTION")
	if len(byType) != 1 || string(byType[0].Payload) != "null" {
		t.Fatalf("expected one s2 transaction with null payload, got %+v", byType)
	}
}

func TestSnapshotRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSnapshotRepository(openTestDB(t))

	missing, err := repo.Get(ctx, "s1")
	if err != nil || missing != nil {
		t.Fatalf("expected no snapshot, got %+v err=%v", missing, err)
	}

	if err := repo.Upsert(ctx, StudioSnapshot{StudioID: "s1", Week: 1, Cash: 100, Payload: json.RawMessage(`{"week":1}`)}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(ctx, StudioSnapshot{StudioID: "s1", Week: 2, Cash: 50, Payload: json.RawMessage(`{"week":2}`)}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Week != 2 || got.Cash != 50 || string(got.Payload) != `{"week":2}` {
		t.Fatalf("expected the latest snapshot, got %+v", got)
	}
}

func TestPersistedRunReconstructsCash(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	m := metrics.NewCollector()
	log := events.NewEventLog(NewEventPersister(repo, "studio-1", m))

	eng := engine.NewEngine(engine.Options{
		StartingCash:       600_000,
		StartingReputation: 50,
		Roller:             steadyRoller{},
	}, log, logger.Discard())

	p, err := eng.Greenlight(film.Script{Title: "River Town", Genre: film.GenreWestern, Budget: 120_000, Quality: 55})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ApplyLoan(finance.LenderBank, 40_000); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := eng.AdvanceWeek(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if log.PersistErrors() != 0 {
		t.Fatalf("expected every event persisted, %d failed", log.PersistErrors())
	}
	if m.EventsWritten != int64(log.Len()) {
		t.Fatalf("expected %d writes recorded, got %d", log.Len(), m.EventsWritten)
	}

	rebuilt, err := NewReconstructor(repo).RebuildLedger(ctx, "studio-1", 600_000)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.Cash != eng.Snapshot().Cash {
		t.Fatalf("rebuilt cash %d does not match engine cash %d", rebuilt.Cash, eng.Snapshot().Cash)
	}
	if rebuilt.ByCategory[finance.CategoryGreenlight] != -120_000 {
		t.Fatalf("expected greenlight debit, got %+v", rebuilt.ByCategory)
	}
	if rebuilt.LastWeek != 5 {
		t.Fatalf("expected last transaction in week 5, got %d", rebuilt.LastWeek)
	}

	recap, err := NewReconstructor(repo).GenerateRecap(ctx, "studio-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recap) == 0 || recap[0].EventType != string(events.EventTypeGreenlight) || recap[0].EntityID != p.ID {
		t.Fatalf("expected recap to open with the greenlight, got %+v", recap)
	}
}
