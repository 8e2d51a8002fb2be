package reconcile

import "github.com/nerrad567/gray-latch-core/internal/slot"

// SyncState describes how a slot's desired state relates to what the
// device last reported.
type SyncState string

const (
	// StateSynced means the device mirror matches the desired state.
	StateSynced SyncState = "synced"

	// StatePushRequired means the desired state differs from the mirror.
	StatePushRequired SyncState = "push_required"

	// StateUnknown means the device has never reported this slot, so no
	// comparison is possible.
	StateUnknown SyncState = "unknown"
)

// SyncStatus derives the sync state of a slot. Pure function of the
// record; computed on every read, never stored.
//
// An enabled claim is synced when the device reports it enabled with the
// desired code. A disabled claim or an unclaimed slot is synced when the
// device slot is empty; a never-read mirror counts as empty there, since
// the device cannot hold what was never written. Unknown is reserved for
// unclaimed slots the device has never reported.
//
// Proximity-card slots compare status only: a card's identifier is
// enrolled at the device, never typed in by an operator, so the mirror
// code is authoritative and cannot disagree with a desired code.
func SyncStatus(s *slot.Slot) SyncState {
	if s.Claimed() && s.DesiredStatus != slot.StatusDisabled {
		if s.LockStatus == nil || *s.LockStatus != s.DesiredStatus {
			return StatePushRequired
		}
		if s.CredentialType == slot.CredentialProximityCard {
			return StateSynced
		}
		if s.LockCode != nil && *s.LockCode == s.DesiredCode {
			return StateSynced
		}
		return StatePushRequired
	}

	// Disabled claims and unclaimed slots want an empty device slot.
	if s.LockStatus == nil {
		if !s.Claimed() {
			return StateUnknown
		}
		return StateSynced
	}
	if *s.LockStatus == slot.StatusAvailable {
		return StateSynced
	}
	return StatePushRequired
}
