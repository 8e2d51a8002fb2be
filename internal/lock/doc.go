// Package lock is the device boundary for the physical lock.
//
// The Gateway interface abstracts the three slot operations a lock
// supports: read the occupant of a slot, write a credential into a slot,
// and clear a slot. BridgeGateway implements it over MQTT against a
// protocol bridge (e.g. the Z-Wave bridge) using a request/response
// topic pair per request:
//
//	graylatch/request/zwave/req-abc123   Core → bridge
//	graylatch/response/zwave/req-abc123  bridge → Core
//
// The gateway serializes device access with a weighted semaphore of size
// one. Battery-powered locks process a single command at a time; issuing
// concurrent commands causes dropped frames on most Z-Wave locks.
//
// Failures surface as ErrTimeout, ErrUnavailable or ErrMalformedResponse
// so callers can distinguish "device said no" from "device never answered".
package lock
