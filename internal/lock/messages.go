package lock

import "time"

// MQTT message types for communication between Gray Latch Core and the
// lock bridge. The bridge subscribes to request topics and answers each
// request exactly once on the matching response topic.

// Request operations understood by the bridge.
const (
	// OpRead asks the bridge for the current occupant of a slot.
	OpRead = "read"

	// OpWrite programs a code and status into a slot.
	OpWrite = "write"

	// OpClear erases whatever the slot holds.
	OpClear = "clear"
)

// Error codes returned by the bridge in failed responses.
const (
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidSlot       = "INVALID_SLOT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// RequestMessage is sent from Core to the bridge.
// Topic: graylatch/request/{protocol}/{request_id}
type RequestMessage struct {
	// RequestID uniquely identifies this request for correlation.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Operation is the requested operation: "read", "write" or "clear".
	Operation string `json:"operation"`

	// Slot is the physical slot number on the lock.
	Slot int `json:"slot"`

	// Code is the credential to program (write only).
	Code string `json:"code,omitempty"`

	// Status is the slot status to program (write only).
	Status string `json:"status,omitempty"`
}

// ResponseMessage is sent from the bridge to Core for each request.
// Topic: graylatch/response/{protocol}/{request_id}
type ResponseMessage struct {
	// RequestID is the ID from the original request.
	RequestID string `json:"request_id"`

	// Timestamp is when the response was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the operation succeeded on the device.
	Success bool `json:"success"`

	// Code is the credential the device reports for the slot (read only).
	// Empty when the slot is unoccupied.
	Code string `json:"code,omitempty"`

	// Status is the slot status the device reports (read only).
	Status string `json:"status,omitempty"`

	// Error contains details when Success is false.
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	// Code is one of the ErrCode* constants.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// AccessMessage is published by the bridge whenever a credential is used
// at the lock (keypad entry, card tap). Unsolicited.
// Topic: graylatch/event/{protocol}/access
type AccessMessage struct {
	// Slot is the slot whose credential was presented.
	Slot int `json:"slot"`

	// Method is how the credential was presented: "keypad" or "proximity".
	Method string `json:"method"`

	// Timestamp is when the access occurred (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`
}
