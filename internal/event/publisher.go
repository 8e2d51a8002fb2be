package event

import (
	"encoding/json"

	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/mqtt"
)

// MQTTPublisher is the subset of the MQTT client used for event fan-out.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Broadcaster pushes events to connected WebSocket clients.
// Satisfied by the API server's hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Publisher fans slot lifecycle events out to MQTT
// (graylatch/core/event/{type}) and the WebSocket hub. Either sink may be
// nil; a missing sink is skipped.
//
// Publishing is best-effort: a broker hiccup is logged, never propagated.
// Events inform UIs and automations; the state they describe is already
// persisted by the time they fire.
type Publisher struct {
	mqtt MQTTPublisher
	hub  Broadcaster
	log  *logging.Logger
}

// NewPublisher creates an event publisher.
func NewPublisher(mqttClient MQTTPublisher, hub Broadcaster, log *logging.Logger) *Publisher {
	return &Publisher{
		mqtt: mqttClient,
		hub:  hub,
		log:  log.With("component", "event"),
	}
}

// Publish fans the event out to all configured sinks.
func (p *Publisher) Publish(e Event) {
	p.log.Info("slot event",
		"type", e.Type,
		"slot", e.SlotID,
	)

	if p.mqtt != nil {
		payload, err := json.Marshal(e)
		if err != nil {
			p.log.Error("marshaling event", "type", e.Type, "error", err)
			return
		}
		topic := mqtt.Topics{}.CoreEvent(string(e.Type))
		if err := p.mqtt.Publish(topic, payload, 1, false); err != nil {
			p.log.Warn("publishing event to mqtt", "type", e.Type, "error", err)
		}
	}

	if p.hub != nil {
		p.hub.Broadcast("slot."+string(e.Type), e)
	}
}
