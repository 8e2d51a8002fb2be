// Package reconcile converges the slot repository and the physical lock.
//
// The repository holds what each slot should contain (desired state) and
// what the device last reported (the mirror). Reconciliation runs in two
// directions:
//
//   - Push: validate the desired state, read the device, check the
//     protection guard, then converge: issue the command (a write for an
//     enabled claim, a clear for a disabled claim or an unclaimed slot)
//     and re-read until the device confirms, re-issuing the command on
//     each retry. Bounded retries with a growing settle interval; on
//     exhaustion the last observation is persisted and
//     ErrVerificationFailed is returned.
//   - Pull: read the device and absorb what it reports. Unknown occupants
//     of unclaimed slots are adopted (discovery); proximity-card claims
//     that turn out to hold PIN-shaped codes are promoted to PIN claims.
//     Pull never writes to the device.
//
// SyncStatus derives a slot's sync state (synced, push_required, unknown)
// from the record alone; it is recomputed on every read and never stored.
//
// Per-slot mutexes serialize operations on the same slot. The lock
// gateway below serializes the physical link across slots.
package reconcile
