package event

import "time"

// Type identifies a slot lifecycle event.
type Type string

const (
	// TypeScheduleStarted fires when a slot's schedule window opens and
	// the credential has been pushed to the lock.
	TypeScheduleStarted Type = "schedule_started"

	// TypeScheduleEnded fires when a slot's schedule window closes and
	// the credential has been disabled on the lock.
	TypeScheduleEnded Type = "schedule_ended"

	// TypeUsageLimitReached fires when a slot crosses its usage limit
	// and has been disabled on the lock.
	TypeUsageLimitReached Type = "usage_limit_reached"

	// TypePushVerificationFailed fires when a push exhausted its verify
	// retries without the device confirming the desired state.
	TypePushVerificationFailed Type = "push_verification_failed"

	// TypeSlotSaved fires after a slot's desired state is updated.
	TypeSlotSaved Type = "slot_saved"

	// TypeSlotCleared fires after a slot is released.
	TypeSlotCleared Type = "slot_cleared"
)

// Event is a slot lifecycle notification fanned out to MQTT and
// WebSocket subscribers.
type Event struct {
	// Type is the event type.
	Type Type `json:"type"`

	// SlotID is the slot the event concerns.
	SlotID int `json:"slot_id"`

	// Timestamp is when the event occurred (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Data contains event-specific values (attempt counts, usage totals).
	Data map[string]any `json:"data,omitempty"`
}

// New creates an event stamped with the current time.
func New(eventType Type, slotID int, data map[string]any) Event {
	return Event{
		Type:      eventType,
		SlotID:    slotID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
