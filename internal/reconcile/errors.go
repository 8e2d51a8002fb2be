package reconcile

import "errors"

// Domain-specific errors for reconciliation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation is returned when a slot's desired state is not
	// pushable (enabled with no code, malformed PIN).
	ErrValidation = errors.New("reconcile: slot not valid for push")

	// ErrSlotProtected is returned when a push would overwrite a device
	// slot occupied by a credential the repository does not manage.
	ErrSlotProtected = errors.New("reconcile: slot occupied by unmanaged credential")

	// ErrVerificationFailed is returned when the device never confirmed
	// the pushed state within the bounded verify retries.
	ErrVerificationFailed = errors.New("reconcile: device did not confirm pushed state")
)
