package notify

import (
	"github.com/gen2brain/beeep"

	"github.com/nettle-irc/nettle/internal/events"
	"github.com/nettle-irc/nettle/internal/logger"
)

// Notifier turns notification request events into desktop notifications.
// It is a plain bus subscriber; the engine itself never talks to the
// desktop directly.
type Notifier struct {
	bus *events.EventBus
}

// New creates a Notifier and subscribes it to notification requests.
func New(bus *events.EventBus) *Notifier {
	n := &Notifier{bus: bus}
	bus.Subscribe(events.EventNotificationRequest, n)
	return n
}

// Close detaches the notifier from the bus.
func (n *Notifier) Close() {
	n.bus.Unsubscribe(events.EventNotificationRequest, n)
}

// OnEvent implements events.Subscriber.
func (n *Notifier) OnEvent(event events.Event) {
	title, _ := event.Data["title"].(string)
	body, _ := event.Data["body"].(string)
	if title == "" {
		title = "nettle"
	}
	if err := beeep.Notify(title, body, ""); err != nil {
		logger.Log.Warn().Err(err).Msg("failed to send desktop notification")
	}
}
