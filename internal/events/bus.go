package events

import (
	"sync"
	"time"
)

// EventSource identifies which side of the client produced an event.
type EventSource string

const (
	EventSourceIRC    EventSource = "irc"
	EventSourceUI     EventSource = "ui"
	EventSourceSystem EventSource = "system"
)

// Event types emitted by the protocol core for UI/scripting collaborators.
const (
	EventMessageReceived     = "message.received"
	EventConnectionState     = "connection.state"
	EventChannelListChanged  = "channel.list.changed"
	EventMemberListChanged   = "member.list.changed"
	EventTopicChanged        = "channel.topic"
	EventHistorySynchronized = "history.synchronized"
	EventNotificationRequest = "notification.request"
	EventNetworkAdded        = "network.added"
	EventNetworkRemoved      = "network.removed"
	EventError               = "error"
)

// Event is a structured change notification.
type Event struct {
	Type      string
	Data      map[string]interface{}
	Timestamp time.Time
	Source    EventSource
}

// Subscriber receives events from the bus.
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(event Event)

func (f SubscriberFunc) OnEvent(event Event) { f(event) }

// EventBus routes events to subscribers. Subscribing to "*" receives
// every event.
type EventBus struct {
	subscribers map[string][]Subscriber
	mu          sync.RWMutex
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type.
func (eb *EventBus) Subscribe(eventType string, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// Unsubscribe removes a subscriber from an event type. The subscriber is
// matched by interface equality, so only comparable subscriber types
// (not SubscriberFunc) can be removed.
func (eb *EventBus) Unsubscribe(eventType string, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if sub == subscriber {
			eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Emit delivers an event to all subscribers asynchronously.
func (eb *EventBus) Emit(event Event) {
	for _, sub := range eb.snapshot(event.Type) {
		go sub.OnEvent(event)
	}
}

// EmitSync delivers an event to all subscribers on the calling goroutine,
// for cases where ordering matters (and for tests).
func (eb *EventBus) EmitSync(event Event) {
	for _, sub := range eb.snapshot(event.Type) {
		sub.OnEvent(event)
	}
}

func (eb *EventBus) snapshot(eventType string) []Subscriber {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	subs := make([]Subscriber, 0, len(eb.subscribers[eventType])+len(eb.subscribers["*"]))
	subs = append(subs, eb.subscribers[eventType]...)
	if eventType != "*" {
		subs = append(subs, eb.subscribers["*"]...)
	}
	return subs
}
