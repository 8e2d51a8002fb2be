package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// Transport is the subset of the MQTT client used by the bridge gateway.
// Satisfied by *mqtt.Client; tests substitute a fake.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// BridgeGateway implements Gateway over the MQTT request/response scheme.
//
// Each operation publishes a RequestMessage to
// graylatch/request/{protocol}/{request_id} and waits for the bridge's
// ResponseMessage on the matching response topic. A single subscription to
// graylatch/response/{protocol}/+ routes responses to per-request channels
// by request ID.
//
// A weighted semaphore of size one serializes device access: the physical
// link carries at most one command at a time regardless of which slot the
// command targets.
type BridgeGateway struct {
	transport Transport
	protocol  string
	timeout   time.Duration
	log       *logging.Logger

	sem *semaphore.Weighted

	mu      sync.Mutex
	pending map[string]chan ResponseMessage
}

// NewBridgeGateway creates a gateway for the given bridge protocol.
// Call Start before issuing operations.
func NewBridgeGateway(transport Transport, protocol string, timeout time.Duration, log *logging.Logger) *BridgeGateway {
	return &BridgeGateway{
		transport: transport,
		protocol:  protocol,
		timeout:   timeout,
		log:       log.With("component", "lock.gateway"),
		sem:       semaphore.NewWeighted(1),
		pending:   make(map[string]chan ResponseMessage),
	}
}

// Start subscribes to the bridge response topic. Must be called once after
// the MQTT connection is established.
func (g *BridgeGateway) Start() error {
	topic := mqtt.Topics{}.BridgeResponses(g.protocol)
	if err := g.transport.Subscribe(topic, 1, g.handleResponse); err != nil {
		return fmt.Errorf("subscribing to bridge responses: %w", err)
	}
	return nil
}

// Close unsubscribes from the bridge response topic.
func (g *BridgeGateway) Close() error {
	topic := mqtt.Topics{}.BridgeResponses(g.protocol)
	if err := g.transport.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from bridge responses: %w", err)
	}
	return nil
}

// Read returns the current occupant of a slot as the device reports it.
func (g *BridgeGateway) Read(ctx context.Context, slotID int) (ReadResult, error) {
	resp, err := g.request(ctx, RequestMessage{
		Operation: OpRead,
		Slot:      slotID,
	})
	if err != nil {
		return ReadResult{}, err
	}

	status := slot.StatusAvailable
	if resp.Status != "" {
		status = slot.Status(resp.Status)
		if err := slot.ValidateStatus(status); err != nil {
			return ReadResult{}, fmt.Errorf("%w: status %q", ErrMalformedResponse, resp.Status)
		}
	}

	return ReadResult{Code: resp.Code, Status: status}, nil
}

// Write programs a code and status into a slot.
func (g *BridgeGateway) Write(ctx context.Context, slotID int, code string, status slot.Status) error {
	_, err := g.request(ctx, RequestMessage{
		Operation: OpWrite,
		Slot:      slotID,
		Code:      code,
		Status:    string(status),
	})
	return err
}

// Clear erases the slot on the device.
func (g *BridgeGateway) Clear(ctx context.Context, slotID int) error {
	_, err := g.request(ctx, RequestMessage{
		Operation: OpClear,
		Slot:      slotID,
	})
	return err
}

// request performs one request/response round trip under the link semaphore.
func (g *BridgeGateway) request(ctx context.Context, msg RequestMessage) (ResponseMessage, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return ResponseMessage{}, fmt.Errorf("waiting for device link: %w", err)
	}
	defer g.sem.Release(1)

	msg.RequestID = "req-" + uuid.NewString()
	msg.Timestamp = time.Now().UTC()

	ch := make(chan ResponseMessage, 1)
	g.mu.Lock()
	g.pending[msg.RequestID] = ch
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, msg.RequestID)
		g.mu.Unlock()
	}()

	payload, err := json.Marshal(msg)
	if err != nil {
		return ResponseMessage{}, fmt.Errorf("marshaling bridge request: %w", err)
	}

	topic := mqtt.Topics{}.BridgeRequest(g.protocol, msg.RequestID)
	if err := g.transport.Publish(topic, payload, 1, false); err != nil {
		return ResponseMessage{}, fmt.Errorf("%w: publish failed: %w", ErrUnavailable, err)
	}

	g.log.Debug("bridge request sent",
		"request_id", msg.RequestID,
		"operation", msg.Operation,
		"slot", msg.Slot,
	)

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return g.checkResponse(msg, resp)
	case <-timer.C:
		g.log.Warn("bridge request timed out",
			"request_id", msg.RequestID,
			"operation", msg.Operation,
			"slot", msg.Slot,
			"timeout", g.timeout,
		)
		return ResponseMessage{}, fmt.Errorf("%w: no response after %v", ErrTimeout, g.timeout)
	case <-ctx.Done():
		return ResponseMessage{}, fmt.Errorf("waiting for bridge response: %w", ctx.Err())
	}
}

// checkResponse maps a bridge failure response onto the gateway sentinels.
func (g *BridgeGateway) checkResponse(req RequestMessage, resp ResponseMessage) (ResponseMessage, error) {
	if resp.Success {
		return resp, nil
	}

	code, message := ErrCodeBridgeError, "no error details"
	if resp.Error != nil {
		code, message = resp.Error.Code, resp.Error.Message
	}

	g.log.Warn("bridge request failed",
		"request_id", req.RequestID,
		"operation", req.Operation,
		"slot", req.Slot,
		"code", code,
		"error", message,
	)

	switch code {
	case ErrCodeTimeout:
		return ResponseMessage{}, fmt.Errorf("%w: %s", ErrTimeout, message)
	case ErrCodeDeviceUnreachable, ErrCodeBridgeError:
		return ResponseMessage{}, fmt.Errorf("%w: %s", ErrUnavailable, message)
	default:
		return ResponseMessage{}, fmt.Errorf("lock: bridge error %s: %s", code, message)
	}
}

// handleResponse routes a bridge response to the waiting request, keyed by
// the request ID in the final topic segment. Responses for unknown IDs
// (late arrivals after timeout) are dropped.
func (g *BridgeGateway) handleResponse(topic string, payload []byte) error {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 || idx == len(topic)-1 {
		return fmt.Errorf("%w: topic %q", ErrMalformedResponse, topic)
	}
	requestID := topic[idx+1:]

	var resp ResponseMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	g.mu.Lock()
	ch, ok := g.pending[requestID]
	g.mu.Unlock()
	if !ok {
		g.log.Debug("dropping response for unknown request", "request_id", requestID)
		return nil
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}
