package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE access_events (
			id          TEXT PRIMARY KEY,
			slot_id     INTEGER NOT NULL,
			method      TEXT NOT NULL,
			usage_count INTEGER NOT NULL,
			occurred_at TEXT NOT NULL
		) STRICT;
	`)
	if err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	return db
}

func TestRecord(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	e := &AccessEvent{SlotID: 3, Method: "keypad", UsageCount: 1}
	if err := repo.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if e.ID == "" {
		t.Error("Record() should generate an ID")
	}
	if e.OccurredAt.IsZero() {
		t.Error("Record() should stamp OccurredAt")
	}

	events, err := repo.ListBySlot(ctx, 3, 10)
	if err != nil {
		t.Fatalf("ListBySlot() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Method != "keypad" || events[0].UsageCount != 1 {
		t.Errorf("event = %+v, want keypad/1", events[0])
	}
}

func TestListBySlot_OrderAndLimit(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		e := &AccessEvent{
			SlotID:     1,
			Method:     "keypad",
			UsageCount: i,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	// A different slot's events must not leak in.
	other := &AccessEvent{SlotID: 2, Method: "proximity", UsageCount: 1, OccurredAt: base}
	if err := repo.Record(ctx, other); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	events, err := repo.ListBySlot(ctx, 1, 3)
	if err != nil {
		t.Fatalf("ListBySlot() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].UsageCount != 5 {
		t.Errorf("first event usage_count = %d, want 5 (most recent first)", events[0].UsageCount)
	}
	for _, e := range events {
		if e.SlotID != 1 {
			t.Errorf("event slot = %d, want 1", e.SlotID)
		}
	}
}

func TestListBySlot_Empty(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	events, err := repo.ListBySlot(context.Background(), 9, 0)
	if err != nil {
		t.Fatalf("ListBySlot() error = %v", err)
	}
	if events == nil {
		t.Error("ListBySlot() should return an empty slice, not nil")
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}
