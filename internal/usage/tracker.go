package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-latch-core/internal/event"
	"github.com/nerrad567/gray-latch-core/internal/history"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-latch-core/internal/lock"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// SlotStore is the slice of the slot repository the tracker needs.
type SlotStore interface {
	Get(ctx context.Context, id int) (*slot.Slot, error)
	SetDesiredStatus(ctx context.Context, id int, status slot.Status) error
	IncrementUsage(ctx context.Context, id int, at time.Time) (int, error)
}

// Pusher issues reconciliation pushes. Satisfied by *reconcile.Reconciler.
type Pusher interface {
	Push(ctx context.Context, slotID int, override bool) error
}

// EventPublisher receives slot lifecycle events.
type EventPublisher interface {
	Publish(e event.Event)
}

// Subscriber is the subset of the MQTT client used to receive access
// events from the bridge.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MetricsWriter mirrors access events into the time series store.
// Satisfied by *influxdb.Client; nil disables metric writes.
type MetricsWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// Tracker consumes access events published by the lock bridge and
// enforces per-slot usage limits.
//
// Every event increments the slot's usage counter and lands in the
// history table (and InfluxDB when configured). Crossing the usage limit
// forces the slot's desired status to disabled, pushes the change to the
// lock, and emits usage_limit_reached. The desired-status check makes the
// disabling push fire exactly once per crossing: once disabled, further
// events only count.
type Tracker struct {
	store   SlotStore
	history history.Repository
	pusher  Pusher
	events  EventPublisher
	metrics MetricsWriter
	log     *logging.Logger

	protocol string
}

// NewTracker creates a usage tracker for the given bridge protocol.
func NewTracker(store SlotStore, hist history.Repository, pusher Pusher, events EventPublisher, metrics MetricsWriter, protocol string, log *logging.Logger) *Tracker {
	return &Tracker{
		store:    store,
		history:  hist,
		pusher:   pusher,
		events:   events,
		metrics:  metrics,
		protocol: protocol,
		log:      log.With("component", "usage"),
	}
}

// Start subscribes to the bridge access event topic.
func (t *Tracker) Start(sub Subscriber) error {
	topic := mqtt.Topics{}.BridgeAccessEvent(t.protocol)
	if err := sub.Subscribe(topic, 1, t.handleAccess); err != nil {
		return fmt.Errorf("subscribing to access events: %w", err)
	}
	return nil
}

// handleAccess is the MQTT handler for bridge access events.
func (t *Tracker) handleAccess(_ string, payload []byte) error {
	var msg lock.AccessMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("unmarshaling access event: %w", err)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	// Handlers run on the MQTT client's goroutine; the work itself is not
	// tied to any request lifecycle.
	return t.Process(context.Background(), msg)
}

// Process records one access event and applies the usage limit.
func (t *Tracker) Process(ctx context.Context, msg lock.AccessMessage) error {
	s, err := t.store.Get(ctx, msg.Slot)
	if err != nil {
		return fmt.Errorf("loading slot %d for access event: %w", msg.Slot, err)
	}

	count, err := t.store.IncrementUsage(ctx, msg.Slot, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("incrementing usage for slot %d: %w", msg.Slot, err)
	}

	t.log.Info("access event",
		"slot", msg.Slot,
		"method", msg.Method,
		"usage_count", count,
	)

	if err := t.history.Record(ctx, &history.AccessEvent{
		SlotID:     msg.Slot,
		Method:     msg.Method,
		UsageCount: count,
		OccurredAt: msg.Timestamp,
	}); err != nil {
		// History is advisory; the counter is already durable.
		t.log.Error("recording access event", "slot", msg.Slot, "error", err)
	}

	if t.metrics != nil {
		t.metrics.WritePointWithTime("access_event",
			map[string]string{
				"slot":   fmt.Sprintf("%d", msg.Slot),
				"method": msg.Method,
			},
			map[string]interface{}{"usage_count": count},
			msg.Timestamp,
		)
	}

	if s.UsageLimit == nil || count < *s.UsageLimit {
		return nil
	}
	if s.DesiredStatus == slot.StatusDisabled || !s.Claimed() {
		return nil
	}

	t.log.Warn("usage limit reached, disabling slot",
		"slot", msg.Slot,
		"limit", *s.UsageLimit,
		"usage_count", count,
	)

	if err := t.store.SetDesiredStatus(ctx, msg.Slot, slot.StatusDisabled); err != nil {
		return fmt.Errorf("disabling slot %d: %w", msg.Slot, err)
	}
	if err := t.pusher.Push(ctx, msg.Slot, false); err != nil {
		// Desired state is already disabled; the schedule monitor or the
		// next manual push converges the device.
		t.log.Error("pushing disabled slot", "slot", msg.Slot, "error", err)
	}

	t.events.Publish(event.New(event.TypeUsageLimitReached, msg.Slot, map[string]any{
		"usage_count": count,
		"limit":       *s.UsageLimit,
	}))
	return nil
}
