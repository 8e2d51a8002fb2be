package slot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for slot persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a slot by its number.
	// Returns ErrSlotNotFound if the slot does not exist.
	Get(ctx context.Context, id int) (*Slot, error)

	// All retrieves every slot in slot-number order.
	All(ctx context.Context) ([]Slot, error)

	// Save applies a partial update to the slot's desired configuration.
	// Returns ErrDuplicateCode if the patch assigns a code another claimed
	// slot already holds; the error names the conflicting slot.
	Save(ctx context.Context, id int, patch *Patch) (*Slot, error)

	// Clear resets the slot's desired configuration to unclaimed.
	// The lock-reported mirror is left untouched; only a confirmed device
	// clear updates it, via SetLockState.
	Clear(ctx context.Context, id int) error

	// SetLockState records what the device reported for the slot.
	// This is the only writer of the mirror columns.
	SetLockState(ctx context.Context, id int, code *string, status *Status) error

	// SetDesiredStatus changes just the desired status.
	// Used by the schedule monitor and usage tracker.
	SetDesiredStatus(ctx context.Context, id int, status Status) error

	// AdoptDeviceCredential records a credential discovered on the device:
	// desired and mirror sides are both set so the slot reads as synced.
	AdoptDeviceCredential(ctx context.Context, id int, ct CredentialType, code string, status Status) error

	// IncrementUsage bumps the usage counter and stamps last_used_at.
	// Returns the new count.
	IncrementUsage(ctx context.Context, id int, at time.Time) (int, error)

	// EnsureSlots seeds rows 1..n, leaving existing rows untouched.
	EnsureSlots(ctx context.Context, n int) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const slotColumns = `id, name, credential_type, desired_code, desired_status,
	lock_code, lock_status, schedule_start, schedule_end,
	usage_limit, usage_count, notification_targets, last_used_at,
	created_at, updated_at`

// Get retrieves a slot by its number.
func (r *SQLiteRepository) Get(ctx context.Context, id int) (*Slot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)

	s, err := scanSlotRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("querying slot by id: %w", err)
	}
	return s, nil
}

// All retrieves every slot in slot-number order.
func (r *SQLiteRepository) All(ctx context.Context) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		s, err := scanSlotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slots = append(slots, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slots: %w", err)
	}
	return slots, nil
}

// Save applies a partial update to the slot's desired configuration.
// The whole operation runs in one transaction so the duplicate-code check
// and the update cannot interleave with another writer.
func (r *SQLiteRepository) Save(ctx context.Context, id int, patch *Patch) (*Slot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	row := tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	s, err := scanSlotRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("querying slot by id: %w", err)
	}

	applyPatch(s, patch)

	// Duplicate-code check across claimed slots.
	if patch.Code != nil && s.DesiredCode != "" {
		var holder int
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM slots WHERE desired_code = ? AND id != ? LIMIT 1`,
			s.DesiredCode, id,
		).Scan(&holder)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: code already assigned to slot %d", ErrDuplicateCode, holder)
		case errors.Is(err, sql.ErrNoRows):
			// No conflict.
		default:
			return nil, fmt.Errorf("checking duplicate code: %w", err)
		}
	}

	s.UpdatedAt = time.Now().UTC()

	targetsJSON, err := json.Marshal(s.NotificationTargets)
	if err != nil {
		return nil, fmt.Errorf("marshalling notification targets: %w", err)
	}
	if s.NotificationTargets == nil {
		targetsJSON = []byte("[]")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE slots SET
			name = ?, credential_type = ?, desired_code = ?, desired_status = ?,
			schedule_start = ?, schedule_end = ?,
			usage_limit = ?, usage_count = ?, notification_targets = ?,
			updated_at = ?
		WHERE id = ?`,
		s.Name,
		string(s.CredentialType),
		s.DesiredCode,
		string(s.DesiredStatus),
		nullableTime(scheduleStart(s.Schedule)),
		nullableTime(scheduleEnd(s.Schedule)),
		nullableInt(s.UsageLimit),
		s.UsageCount,
		string(targetsJSON),
		s.UpdatedAt.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing slot update: %w", err)
	}
	return s, nil
}

// applyPatch merges a patch into a slot in memory.
func applyPatch(s *Slot, p *Patch) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.CredentialType != nil {
		s.CredentialType = *p.CredentialType
	}
	if p.Code != nil {
		s.DesiredCode = *p.Code
	}
	if p.Status != nil {
		s.DesiredStatus = *p.Status
	}
	if p.ClearSchedule {
		s.Schedule = nil
	} else if p.Schedule != nil {
		s.Schedule = p.Schedule
	}
	if p.ClearUsageLimit {
		s.UsageLimit = nil
	} else if p.UsageLimit != nil {
		s.UsageLimit = p.UsageLimit
	}
	if p.NotificationTargets != nil {
		s.NotificationTargets = *p.NotificationTargets
	}
	if p.ResetUsageCount {
		s.UsageCount = 0
	}
}

// Clear resets the slot's desired configuration to unclaimed.
func (r *SQLiteRepository) Clear(ctx context.Context, id int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		UPDATE slots SET
			name = '', credential_type = 'pin', desired_code = '',
			desired_status = 'available', schedule_start = NULL,
			schedule_end = NULL, usage_limit = NULL, usage_count = 0,
			notification_targets = '[]', last_used_at = NULL, updated_at = ?
		WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("clearing slot: %w", err)
	}
	return requireRow(result, id)
}

// SetLockState records what the device reported for the slot.
func (r *SQLiteRepository) SetLockState(ctx context.Context, id int, code *string, status *Status) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var statusStr *string
	if status != nil {
		v := string(*status)
		statusStr = &v
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE slots SET lock_code = ?, lock_status = ?, updated_at = ?
		WHERE id = ?`,
		nullableString(code), nullableString(statusStr), now, id,
	)
	if err != nil {
		return fmt.Errorf("updating lock state: %w", err)
	}
	return requireRow(result, id)
}

// SetDesiredStatus changes just the desired status.
func (r *SQLiteRepository) SetDesiredStatus(ctx context.Context, id int, status Status) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		UPDATE slots SET desired_status = ?, updated_at = ?
		WHERE id = ?`,
		string(status), now, id,
	)
	if err != nil {
		return fmt.Errorf("updating desired status: %w", err)
	}
	return requireRow(result, id)
}

// AdoptDeviceCredential records a credential discovered on the device.
func (r *SQLiteRepository) AdoptDeviceCredential(ctx context.Context, id int, ct CredentialType, code string, status Status) error {
	now := time.Now().UTC().Format(time.RFC3339)
	statusStr := string(status)
	result, err := r.db.ExecContext(ctx, `
		UPDATE slots SET
			credential_type = ?, desired_code = ?, desired_status = ?,
			lock_code = ?, lock_status = ?, updated_at = ?
		WHERE id = ?`,
		string(ct), code, statusStr, code, statusStr, now, id,
	)
	if err != nil {
		return fmt.Errorf("adopting device credential: %w", err)
	}
	return requireRow(result, id)
}

// IncrementUsage bumps the usage counter and stamps last_used_at.
func (r *SQLiteRepository) IncrementUsage(ctx context.Context, id int, at time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	atStr := at.UTC().Format(time.RFC3339)
	result, err := tx.ExecContext(ctx, `
		UPDATE slots SET
			usage_count = usage_count + 1, last_used_at = ?, updated_at = ?
		WHERE id = ?`,
		atStr, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return 0, fmt.Errorf("incrementing usage: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return 0, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT usage_count FROM slots WHERE id = ?`, id,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("reading usage count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing usage increment: %w", err)
	}
	return count, nil
}

// EnsureSlots seeds rows 1..n, leaving existing rows untouched.
func (r *SQLiteRepository) EnsureSlots(ctx context.Context, n int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for id := 1; id <= n; id++ {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO slots (id, created_at, updated_at)
			VALUES (?, ?, ?)`,
			id, now, now,
		); err != nil {
			return fmt.Errorf("seeding slot %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing slot seed: %w", err)
	}
	return nil
}

// requireRow converts a zero-rows-affected result into ErrSlotNotFound.
func requireRow(result sql.Result, id int) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: slot %d", ErrSlotNotFound, id)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSlotRow scans a row or rows result into a Slot.
func scanSlotRow(scanner rowScanner) (*Slot, error) {
	var s Slot
	var credentialType, desiredStatus string
	var lockCode, lockStatus sql.NullString
	var scheduleStart, scheduleEnd, lastUsedAt sql.NullString
	var usageLimit sql.NullInt64
	var targetsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Name,
		&credentialType,
		&s.DesiredCode,
		&desiredStatus,
		&lockCode,
		&lockStatus,
		&scheduleStart,
		&scheduleEnd,
		&usageLimit,
		&s.UsageCount,
		&targetsJSON,
		&lastUsedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.CredentialType = CredentialType(credentialType)
	s.DesiredStatus = Status(desiredStatus)

	if lockCode.Valid {
		s.LockCode = &lockCode.String
	}
	if lockStatus.Valid {
		st := Status(lockStatus.String)
		s.LockStatus = &st
	}

	if scheduleStart.Valid || scheduleEnd.Valid {
		sched := &Schedule{}
		if scheduleStart.Valid {
			t, err := time.Parse(time.RFC3339, scheduleStart.String)
			if err != nil {
				return nil, fmt.Errorf("parsing schedule_start: %w", err)
			}
			sched.Start = &t
		}
		if scheduleEnd.Valid {
			t, err := time.Parse(time.RFC3339, scheduleEnd.String)
			if err != nil {
				return nil, fmt.Errorf("parsing schedule_end: %w", err)
			}
			sched.End = &t
		}
		s.Schedule = sched
	}

	if usageLimit.Valid {
		v := int(usageLimit.Int64)
		s.UsageLimit = &v
	}

	if err := json.Unmarshal([]byte(targetsJSON), &s.NotificationTargets); err != nil {
		return nil, fmt.Errorf("unmarshalling notification targets: %w", err)
	}

	if lastUsedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastUsedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}
		s.LastUsedAt = &t
	}

	var parseErr error
	s.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	s.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &s, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullableInt returns a sql.NullInt64 for optional int pointers.
func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// scheduleStart extracts the start time from an optional schedule.
func scheduleStart(sc *Schedule) *time.Time {
	if sc == nil {
		return nil
	}
	return sc.Start
}

// scheduleEnd extracts the end time from an optional schedule.
func scheduleEnd(sc *Schedule) *time.Time {
	if sc == nil {
		return nil
	}
	return sc.End
}
