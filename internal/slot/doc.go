// Package slot provides the access slot table for Gray Latch Core.
//
// A lock exposes a fixed number of numbered slots, each of which can hold
// one credential: a keypad PIN or a proximity card. This package owns the
// persisted view of those slots - the operator's desired configuration and
// the mirror of what the lock last reported - and the validation rules for
// operator input.
//
// # Key Types
//
//   - Slot: one slot with desired and lock-reported state side by side
//   - Patch: a partial update to the desired configuration
//   - Repository: persistence interface, implemented by SQLiteRepository
//   - Status: available / enabled / disabled
//   - CredentialType: pin / proximity_card
//
// # Desired vs mirror
//
// Desired columns change only through operator actions (Save, Clear) or
// device discovery during a pull. Mirror columns (lock_code, lock_status)
// change only through SetLockState from confirmed device responses. The
// reconciler derives a slot's sync state by comparing the two sides; it is
// never stored.
//
// # Usage
//
//	repo := slot.NewSQLiteRepository(db.DB)
//	if err := repo.EnsureSlots(ctx, 20); err != nil {
//	    return err
//	}
//
//	code := "4821"
//	status := slot.StatusEnabled
//	s, err := repo.Save(ctx, 3, &slot.Patch{
//	    Name:   ptr("Cleaner"),
//	    Code:   &code,
//	    Status: &status,
//	})
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use; multi-statement operations
// run in transactions under SQLite's single-writer model.
package slot
