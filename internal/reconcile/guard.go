package reconcile

import (
	"github.com/nerrad567/gray-latch-core/internal/lock"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// Decision is the outcome of a protection check.
type Decision struct {
	// Allowed reports whether the write may proceed.
	Allowed bool

	// Reason explains the decision, for logs and error messages.
	Reason string
}

// CanWrite decides whether a push may overwrite what the device holds in
// a slot. A write is safe when the device reports the slot empty, or when
// the repository claims the slot (the occupant is ours to replace). A slot
// occupied by a credential the repository knows nothing about is refused
// unless the caller overrides: that credential was programmed at the
// keypad or by another tool, and overwriting it would silently revoke
// someone's access.
func CanWrite(s *slot.Slot, read lock.ReadResult, override bool) Decision {
	if override {
		return Decision{Allowed: true, Reason: "operator override"}
	}
	if !read.Occupied() {
		return Decision{Allowed: true, Reason: "device slot empty"}
	}
	if s.Claimed() {
		return Decision{Allowed: true, Reason: "slot managed by repository"}
	}
	return Decision{Allowed: false, Reason: "device slot holds an unmanaged credential"}
}
