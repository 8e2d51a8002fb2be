package slot

import "errors"

// Domain errors for the slot package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, slot.ErrSlotNotFound) {
//	    // handle not found case
//	}
var (
	// ErrSlotNotFound is returned when a slot number does not exist.
	ErrSlotNotFound = errors.New("slot: not found")

	// ErrDuplicateCode is returned when a code is already held by another
	// claimed slot. The wrapping error names the conflicting slot.
	ErrDuplicateCode = errors.New("slot: duplicate code")

	// ErrInvalidSlot is returned when slot validation fails.
	ErrInvalidSlot = errors.New("slot: invalid")

	// ErrInvalidCode is returned when a PIN code fails format validation.
	ErrInvalidCode = errors.New("slot: invalid code")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("slot: invalid status")

	// ErrInvalidCredentialType is returned when a credential type is not recognised.
	ErrInvalidCredentialType = errors.New("slot: invalid credential type")

	// ErrInvalidSchedule is returned when a schedule window is malformed.
	ErrInvalidSchedule = errors.New("slot: invalid schedule")

	// ErrInvalidName is returned when a slot name is too long.
	ErrInvalidName = errors.New("slot: invalid name")
)
