package engine

import (
	"sync"
	"time"
)

// EventType identifies an engine event.
type EventType int

const (
	// EventSpeechStart and EventSpeechEnd mirror the detector's confirmed
	// activity transitions.
	EventSpeechStart EventType = iota
	EventSpeechEnd
	// EventDuckStart and EventDuckEnd mark the mixer entering and leaving
	// the ducked state, for UI indication.
	EventDuckStart
	EventDuckEnd
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventSpeechStart:
		return "SpeechStart"
	case EventSpeechEnd:
		return "SpeechEnd"
	case EventDuckStart:
		return "DuckStart"
	case EventDuckEnd:
		return "DuckEnd"
	default:
		return "Unknown"
	}
}

// Event is a session event delivered to subscribers.
type Event struct {
	Type      EventType
	SessionID string
	Timestamp time.Time
}

// Bus is the pub/sub surface for engine events.
type Bus interface {
	Subscribe(eventType EventType, ch chan<- Event)
	Unsubscribe(eventType EventType, ch chan<- Event)
	Publish(evt Event) bool
}

// NewEventBus creates an in-process event bus. Publish never blocks: events
// for subscribers with full channels are dropped.
func NewEventBus() Bus {
	return &eventBus{
		subscribers: make(map[EventType][]chan<- Event),
	}
}

type eventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan<- Event
}

func (b *eventBus) Subscribe(eventType EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
}

func (b *eventBus) Unsubscribe(eventType EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chans := b.subscribers[eventType]
	for i, c := range chans {
		if c == ch {
			chans = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	b.subscribers[eventType] = chans
}

func (b *eventBus) Publish(evt Event) bool {
	b.mu.RLock()
	chans := b.subscribers[evt.Type]
	b.mu.RUnlock()

	delivered := false
	for _, ch := range chans {
		select {
		case ch <- evt:
			delivered = true
		default:
		}
	}
	return delivered
}
