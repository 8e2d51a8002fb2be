// Package history provides access to the access_events table: one row
// per credential use at the lock, written by the usage tracker.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccessEvent is a single credential use recorded from the lock.
type AccessEvent struct {
	ID         string    `json:"id"`
	SlotID     int       `json:"slot_id"`
	Method     string    `json:"method"`
	UsageCount int       `json:"usage_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Repository defines the interface for access event persistence.
type Repository interface {
	Record(ctx context.Context, e *AccessEvent) error
	ListBySlot(ctx context.Context, slotID, limit int) ([]AccessEvent, error)
}

// SQLiteRepository stores access events in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new access event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an access event. The ID and OccurredAt are generated if
// empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *AccessEvent) error {
	if e.ID == "" {
		e.ID = "acc-" + uuid.NewString()[:8]
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_events (id, slot_id, method, usage_count, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.SlotID, e.Method, e.UsageCount,
		e.OccurredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting access event: %w", err)
	}

	return nil
}

// ListBySlot returns a slot's access events, most recent first.
// Limit defaults to 50, capped at 200.
func (r *SQLiteRepository) ListBySlot(ctx context.Context, slotID, limit int) ([]AccessEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 { //nolint:mnd // max page size for history queries
		limit = 200
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, slot_id, method, usage_count, occurred_at
		 FROM access_events WHERE slot_id = ?
		 ORDER BY occurred_at DESC LIMIT ?`,
		slotID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying access events: %w", err)
	}
	defer rows.Close()

	events := []AccessEvent{}
	for rows.Next() {
		var e AccessEvent
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.SlotID, &e.Method, &e.UsageCount, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning access event: %w", err)
		}

		t, err := time.Parse(time.RFC3339, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing access event timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access events: %w", err)
	}

	return events, nil
}
