package scanner

import "sync"

// EventType names the engine lifecycle events.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventDisconnected    EventType = "disconnected"
	EventCaptureStart    EventType = "captureStart"
	EventFingerDetected  EventType = "fingerDetected"
	EventCaptureComplete EventType = "captureComplete"
	EventCaptureError    EventType = "captureError"
)

// Event carries the payload relevant to its type. Delivery is at most once
// per occurrence: subscribers that are not draining their channel miss
// events rather than stall the engine, and there is no replay.
type Event struct {
	Type      EventType      `json:"type"`
	Device    *DeviceInfo    `json:"device,omitempty"`
	Result    *CaptureResult `json:"result,omitempty"`
	ErrorKind Kind           `json:"errorKind,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[int]chan Event)}
}

// subscribe returns a buffered event channel and its cancel function. The
// channel is closed on cancel.
func (s *subscribers) subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan Event, 8)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// emit delivers without blocking; a full subscriber buffer drops the event.
func (s *subscribers) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
