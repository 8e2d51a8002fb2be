package lock

import (
	"context"

	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// ReadResult is what the physical lock reports for a slot.
type ReadResult struct {
	// Code is the credential the device holds. Empty if unoccupied.
	Code string

	// Status is the device-side slot status.
	Status slot.Status
}

// Occupied reports whether the device holds a credential in the slot.
func (r ReadResult) Occupied() bool {
	return r.Code != "" || r.Status != slot.StatusAvailable
}

// Gateway is the device boundary for a single physical lock.
//
// All operations block until the device answers or the request times out.
// Implementations serialize device access internally, so callers may invoke
// operations concurrently; at most one command is in flight on the physical
// link at any time.
type Gateway interface {
	// Read returns the current occupant of a slot as the device reports it.
	Read(ctx context.Context, slotID int) (ReadResult, error)

	// Write programs a code and status into a slot, replacing any occupant.
	Write(ctx context.Context, slotID int, code string, status slot.Status) error

	// Clear erases the slot on the device.
	Clear(ctx context.Context, slotID int) error
}
