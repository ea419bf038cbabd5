package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// FrameBroadcaster fans out encoded JPEG frames to stream clients.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	stopped bool
}

// NewFrameBroadcaster creates an empty frame broadcaster.
func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{clients: make(map[int]chan []byte)}
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	fb.clients[id] = ch

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
	}
}

// ClientCount returns the number of connected clients.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Publish fans out a frame to every client. Slow clients miss frames
// rather than stalling the pipeline.
func (fb *FrameBroadcaster) Publish(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.stopped {
		return
	}
	for _, ch := range fb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}

// Stop closes all client channels and rejects further publishes.
func (fb *FrameBroadcaster) Stop() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.stopped {
		return
	}
	fb.stopped = true
	for id, ch := range fb.clients {
		close(ch)
		delete(fb.clients, id)
	}
}

// SerializedEvent holds an alert event pre-serialized in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	Event        types.AlertEvent
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // Pre-serialized Protobuf (base64 encoded for SSE)
}

// EventBroadcaster fans out alert events to SSE, websocket and WebRTC clients.
type EventBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	stopped bool
}

// NewEventBroadcaster creates an empty event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{clients: make(map[int]chan *SerializedEvent)}
}

// Subscribe adds a new client and returns a channel for receiving events.
func (eb *EventBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextID
	eb.nextID++
	ch := make(chan *SerializedEvent, 2)
	eb.clients[id] = ch

	logger.Debug("EventBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(eb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (eb *EventBroadcaster) Unsubscribe(id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if ch, ok := eb.clients[id]; ok {
		close(ch)
		delete(eb.clients, id)
		logger.Debug("EventBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(eb.clients))
	}
}

// ClientCount returns the number of connected clients.
func (eb *EventBroadcaster) ClientCount() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.clients)
}

// Publish serializes the event once and fans it out to every client.
func (eb *EventBroadcaster) Publish(event types.AlertEvent) {
	se, err := SerializeEvent(event)
	if err != nil {
		logger.Error("EventBroadcaster", "Event serialization error: %v", err)
		return
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.stopped {
		return
	}
	for _, ch := range eb.clients {
		select {
		case ch <- se:
		default:
			// Client too slow, skip this event for this client
		}
	}
}

// Stop closes all client channels and rejects further publishes.
func (eb *EventBroadcaster) Stop() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.stopped {
		return
	}
	eb.stopped = true
	for id, ch := range eb.clients {
		close(ch)
		delete(eb.clients, id)
	}
}

// SerializeEvent pre-serializes an alert event to JSON and to
// base64-encoded protobuf for SSE transport.
func SerializeEvent(event types.AlertEvent) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	pbStruct, err := structpb.NewStruct(map[string]any{
		"frame_number": float64(event.FrameNumber),
		"timestamp":    event.Timestamp,
		"alert":        event.Alert,
		"mean_ear":     event.MeanEAR,
		"low_frames":   float64(event.LowFrames),
		"faces":        float64(event.Faces),
	})
	if err != nil {
		return nil, err
	}
	pbData, err := proto.Marshal(pbStruct)
	if err != nil {
		return nil, err
	}

	return &SerializedEvent{
		Event:        event,
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}
