// Package usage enforces per-slot usage limits from bridge access events.
//
// The lock bridge publishes an event on graylatch/event/{protocol}/access
// each time a credential is presented. The tracker increments the slot's
// usage counter, appends to the access history, and, when a configured
// limit is crossed, disables the slot and pushes the change to the lock.
// This is the only path that changes a slot's desired status as a side
// effect of normal use.
package usage
