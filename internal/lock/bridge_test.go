package lock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// fakeTransport routes published requests straight back through the
// subscribed response handler, using the respond callback to script the
// bridge's behaviour. A nil response from the callback swallows the
// request (simulates a dead bridge).
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	requests []RequestMessage
	respond  func(req RequestMessage) *ResponseMessage
}

func newFakeTransport(respond func(req RequestMessage) *ResponseMessage) *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]mqtt.MessageHandler),
		respond:  respond,
	}
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, _ byte, _ bool) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler := f.handlers[mqtt.Topics{}.BridgeResponses("zwave")]
	f.mu.Unlock()

	resp := f.respond(req)
	if resp == nil || handler == nil {
		return nil
	}
	resp.RequestID = req.RequestID

	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	respTopic := mqtt.Topics{}.BridgeResponse("zwave", req.RequestID)
	return handler(respTopic, body)
}

func (f *fakeTransport) sentRequests() []RequestMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RequestMessage(nil), f.requests...)
}

func newTestGateway(t *testing.T, transport *fakeTransport, timeout time.Duration) *BridgeGateway {
	t.Helper()
	gw := NewBridgeGateway(transport, "zwave", timeout, logging.Default())
	if err := gw.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := gw.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return gw
}

func TestBridgeGateway_Read(t *testing.T) {
	transport := newFakeTransport(func(req RequestMessage) *ResponseMessage {
		if req.Operation != OpRead {
			t.Errorf("operation = %q, want %q", req.Operation, OpRead)
		}
		return &ResponseMessage{
			Success: true,
			Code:    "1234",
			Status:  "enabled",
		}
	})
	gw := newTestGateway(t, transport, time.Second)

	result, err := gw.Read(context.Background(), 3)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if result.Code != "1234" {
		t.Errorf("Code = %q, want %q", result.Code, "1234")
	}
	if result.Status != slot.StatusEnabled {
		t.Errorf("Status = %q, want %q", result.Status, slot.StatusEnabled)
	}
	if !result.Occupied() {
		t.Error("Occupied() = false, want true")
	}

	reqs := transport.sentRequests()
	if len(reqs) != 1 {
		t.Fatalf("sent %d requests, want 1", len(reqs))
	}
	if reqs[0].Slot != 3 {
		t.Errorf("Slot = %d, want 3", reqs[0].Slot)
	}
	if !strings.HasPrefix(reqs[0].RequestID, "req-") {
		t.Errorf("RequestID = %q, want req- prefix", reqs[0].RequestID)
	}
}

func TestBridgeGateway_Read_EmptySlot(t *testing.T) {
	transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
		return &ResponseMessage{Success: true}
	})
	gw := newTestGateway(t, transport, time.Second)

	result, err := gw.Read(context.Background(), 1)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if result.Occupied() {
		t.Errorf("Occupied() = true for empty slot, result %+v", result)
	}
	if result.Status != slot.StatusAvailable {
		t.Errorf("Status = %q, want %q", result.Status, slot.StatusAvailable)
	}
}

func TestBridgeGateway_Read_MalformedStatus(t *testing.T) {
	transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
		return &ResponseMessage{Success: true, Status: "jammed"}
	})
	gw := newTestGateway(t, transport, time.Second)

	_, err := gw.Read(context.Background(), 1)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Read() error = %v, want ErrMalformedResponse", err)
	}
}

func TestBridgeGateway_Write(t *testing.T) {
	transport := newFakeTransport(func(req RequestMessage) *ResponseMessage {
		if req.Operation != OpWrite {
			t.Errorf("operation = %q, want %q", req.Operation, OpWrite)
		}
		if req.Code != "5678" || req.Status != "enabled" {
			t.Errorf("request = %+v, want code 5678 status enabled", req)
		}
		return &ResponseMessage{Success: true}
	})
	gw := newTestGateway(t, transport, time.Second)

	if err := gw.Write(context.Background(), 2, "5678", slot.StatusEnabled); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestBridgeGateway_Clear(t *testing.T) {
	transport := newFakeTransport(func(req RequestMessage) *ResponseMessage {
		if req.Operation != OpClear {
			t.Errorf("operation = %q, want %q", req.Operation, OpClear)
		}
		return &ResponseMessage{Success: true}
	})
	gw := newTestGateway(t, transport, time.Second)

	if err := gw.Clear(context.Background(), 4); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
}

func TestBridgeGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		respErr *ResponseError
		wantErr error
	}{
		{"device timeout", &ResponseError{Code: ErrCodeTimeout, Message: "no ack"}, ErrTimeout},
		{"device unreachable", &ResponseError{Code: ErrCodeDeviceUnreachable, Message: "node dead"}, ErrUnavailable},
		{"bridge error", &ResponseError{Code: ErrCodeBridgeError, Message: "internal"}, ErrUnavailable},
		{"no error details", nil, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
				return &ResponseMessage{Success: false, Error: tt.respErr}
			})
			gw := newTestGateway(t, transport, time.Second)

			_, err := gw.Read(context.Background(), 1)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Read() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBridgeGateway_Timeout(t *testing.T) {
	transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
		return nil // bridge never answers
	})
	gw := newTestGateway(t, transport, 50*time.Millisecond)

	_, err := gw.Read(context.Background(), 1)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Read() error = %v, want ErrTimeout", err)
	}
}

func TestBridgeGateway_ContextCancelled(t *testing.T) {
	transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
		return nil
	})
	gw := newTestGateway(t, transport, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Read(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}

func TestBridgeGateway_LateResponseDropped(t *testing.T) {
	transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
		return nil
	})
	gw := newTestGateway(t, transport, 50*time.Millisecond)

	_, err := gw.Read(context.Background(), 1)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Read() error = %v, want ErrTimeout", err)
	}

	// Deliver a response for the now-abandoned request; must not panic
	// and must report no error (dropped silently).
	reqs := transport.sentRequests()
	body, _ := json.Marshal(ResponseMessage{RequestID: reqs[0].RequestID, Success: true})
	topic := mqtt.Topics{}.BridgeResponse("zwave", reqs[0].RequestID)

	transport.mu.Lock()
	handler := transport.handlers[mqtt.Topics{}.BridgeResponses("zwave")]
	transport.mu.Unlock()

	if err := handler(topic, body); err != nil {
		t.Errorf("handler() error = %v for late response", err)
	}
}

func TestBridgeGateway_MalformedPayload(t *testing.T) {
	transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
		return nil
	})
	newTestGateway(t, transport, 50*time.Millisecond)

	transport.mu.Lock()
	handler := transport.handlers[mqtt.Topics{}.BridgeResponses("zwave")]
	transport.mu.Unlock()

	err := handler(mqtt.Topics{}.BridgeResponse("zwave", "req-x"), []byte("{not json"))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("handler() error = %v, want ErrMalformedResponse", err)
	}
}

func TestBridgeGateway_SerializesRequests(t *testing.T) {
	var inFlight, maxInFlight int
	var mu sync.Mutex

	transport := newFakeTransport(func(_ RequestMessage) *ResponseMessage {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &ResponseMessage{Success: true}
	})
	gw := newTestGateway(t, transport, time.Second)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(slotID int) {
			defer wg.Done()
			if _, err := gw.Read(context.Background(), slotID); err != nil {
				t.Errorf("Read(%d) error = %v", slotID, err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Errorf("max in-flight requests = %d, want 1", maxInFlight)
	}
}
