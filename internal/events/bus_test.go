package events

import (
	"testing"
	"time"
)

func TestEmitSyncDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []string
	bus.Subscribe(EventMessageReceived, SubscriberFunc(func(ev Event) {
		got = append(got, ev.Type)
	}))
	bus.Subscribe("*", SubscriberFunc(func(ev Event) {
		got = append(got, "wildcard:"+ev.Type)
	}))

	bus.EmitSync(Event{Type: EventMessageReceived, Timestamp: time.Now(), Source: EventSourceIRC})
	bus.EmitSync(Event{Type: EventConnectionState, Timestamp: time.Now(), Source: EventSourceIRC})

	want := []string{
		EventMessageReceived,
		"wildcard:" + EventMessageReceived,
		"wildcard:" + EventConnectionState,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

type countingSubscriber struct{ count int }

func (s *countingSubscriber) OnEvent(Event) { s.count++ }

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()

	sub := &countingSubscriber{}
	bus.Subscribe(EventError, sub)
	bus.EmitSync(Event{Type: EventError})
	bus.Unsubscribe(EventError, sub)
	bus.EmitSync(Event{Type: EventError})

	if sub.count != 1 {
		t.Errorf("delivered %d times, want 1", sub.count)
	}
}
