package mqtt

import "fmt"

// Topic prefixes for the Gray Latch MQTT namespace.
//
// Bridge topics use the flat scheme: graylatch/{category}/{protocol}/{suffix}.
// The bridge process (e.g. the Z-Wave bridge) subscribes to request topics and
// answers on the matching response topic; unsolicited traffic (access events,
// health) arrives on event topics.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylatch"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "graylatch/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylatch/system"
)

// Topics provides builders for Gray Latch MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	reqTopic := topics.BridgeRequest("zwave", "req-abc123")
//	// Returns: "graylatch/request/zwave/req-abc123"
type Topics struct{}

// BridgeRequest returns the topic for requests to a bridge.
//
// Example: graylatch/request/zwave/req-abc123
func (Topics) BridgeRequest(protocol, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixBridge, protocol, requestID)
}

// BridgeResponse returns the topic for request responses from a bridge.
//
// Example: graylatch/response/zwave/req-abc123
func (Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefixBridge, protocol, requestID)
}

// BridgeResponses returns a pattern matching all responses for a protocol.
//
// Pattern: graylatch/response/zwave/+
func (Topics) BridgeResponses(protocol string) string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefixBridge, protocol)
}

// BridgeAccessEvent returns the topic for unsolicited access notifications
// from a bridge (keypad entry, card tap).
//
// Example: graylatch/event/zwave/access
func (Topics) BridgeAccessEvent(protocol string) string {
	return fmt.Sprintf("%s/event/%s/access", TopicPrefixBridge, protocol)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylatch/health/zwave
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// CoreEvent returns the topic for core events.
//
// Example: graylatch/core/event/usage_limit_reached
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// CoreSlotState returns the canonical slot state topic.
// Published by Core after any slot change so UIs can track the table.
//
// Example: graylatch/core/slot/3/state
func (Topics) CoreSlotState(slotID int) string {
	return fmt.Sprintf("%s/slot/%d/state", TopicPrefixCore, slotID)
}

// SystemStatus returns the system status topic.
//
// Example: graylatch/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCoreEvents returns a pattern matching all core events.
//
// Pattern: graylatch/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all Gray Latch topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: graylatch/#
func (Topics) AllTopics() string {
	return "graylatch/#"
}
