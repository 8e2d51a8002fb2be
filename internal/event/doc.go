// Package event defines slot lifecycle events and their fan-out.
//
// Events are advisory notifications: schedule transitions, usage limit
// crossings, verification failures, slot saves and clears. They are
// published to graylatch/core/event/{type} for automations and mirrored
// to the WebSocket hub for UIs. Consumers must not treat them as the
// source of truth; the slots table is.
package event
