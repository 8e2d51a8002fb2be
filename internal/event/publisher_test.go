package event

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
)

type capturedPublish struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	mu        sync.Mutex
	published []capturedPublish
}

func (f *fakeMQTT) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, capturedPublish{topic: topic, payload: payload})
	return nil
}

type fakeHub struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (f *fakeHub) Broadcast(channel string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
}

func TestPublisher_Publish(t *testing.T) {
	mqttClient := &fakeMQTT{}
	hub := &fakeHub{}
	pub := NewPublisher(mqttClient, hub, logging.Default())

	e := New(TypeUsageLimitReached, 3, map[string]any{"usage_count": 5})
	pub.Publish(e)

	if len(mqttClient.published) != 1 {
		t.Fatalf("published %d MQTT messages, want 1", len(mqttClient.published))
	}
	wantTopic := "graylatch/core/event/usage_limit_reached"
	if mqttClient.published[0].topic != wantTopic {
		t.Errorf("topic = %q, want %q", mqttClient.published[0].topic, wantTopic)
	}

	var decoded Event
	if err := json.Unmarshal(mqttClient.published[0].payload, &decoded); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if decoded.Type != TypeUsageLimitReached || decoded.SlotID != 3 {
		t.Errorf("decoded = %+v, want type %q slot 3", decoded, TypeUsageLimitReached)
	}

	if len(hub.channels) != 1 || hub.channels[0] != "slot.usage_limit_reached" {
		t.Errorf("hub channels = %v, want [slot.usage_limit_reached]", hub.channels)
	}
}

func TestPublisher_NilSinks(t *testing.T) {
	pub := NewPublisher(nil, nil, logging.Default())

	// Must not panic with no sinks configured.
	pub.Publish(New(TypeSlotSaved, 1, nil))
}
