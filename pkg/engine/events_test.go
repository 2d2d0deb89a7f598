package engine

import (
	"testing"
	"time"
)

func TestEventBusBasicPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)

	bus.Subscribe(EventDuckStart, ch)

	evt := Event{
		Type:      EventDuckStart,
		SessionID: "s1",
		Timestamp: time.Now(),
	}
	if !bus.Publish(evt) {
		t.Fatal("expected delivery to subscriber")
	}

	received := <-ch
	if received.Type != EventDuckStart {
		t.Errorf("Expected event type %v, got %v", EventDuckStart, received.Type)
	}
	if received.SessionID != "s1" {
		t.Errorf("Expected session s1, got %s", received.SessionID)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)

	bus.Subscribe(EventSpeechEnd, ch)
	bus.Unsubscribe(EventSpeechEnd, ch)

	bus.Publish(Event{Type: EventSpeechEnd, Timestamp: time.Now()})

	select {
	case <-ch:
		t.Error("Should not receive event after unsubscribe")
	default:
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch1 := make(chan Event, 1)
	ch2 := make(chan Event, 1)

	bus.Subscribe(EventSpeechStart, ch1)
	bus.Subscribe(EventSpeechStart, ch2)

	bus.Publish(Event{Type: EventSpeechStart, Timestamp: time.Now()})

	if len(ch1) != 1 || len(ch2) != 1 {
		t.Errorf("Expected both subscribers to receive the event, got %d and %d", len(ch1), len(ch2))
	}
}

func TestEventBusFullChannelDoesNotBlock(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event) // unbuffered, nobody reading

	bus.Subscribe(EventDuckEnd, ch)

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: EventDuckEnd, Timestamp: time.Now()})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestEventTypeString(t *testing.T) {
	cases := map[EventType]string{
		EventSpeechStart: "SpeechStart",
		EventSpeechEnd:   "SpeechEnd",
		EventDuckStart:   "DuckStart",
		EventDuckEnd:     "DuckEnd",
		EventType(99):    "Unknown",
	}
	for et, want := range cases {
		if et.String() != want {
			t.Errorf("Expected %q, got %q", want, et.String())
		}
	}
}
