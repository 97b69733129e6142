package events

import (
	"github.com/asaskevich/EventBus"
)

// Bus is a multi-subscriber publish/subscribe surface. Subscribers on one
// channel are invoked synchronously, in registration order; every handler
// registered for a channel sees every publish, and any of them can be
// removed independently.
type Bus struct {
	bus EventBus.Bus
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

// Subscribe registers fn on channel. fn's signature must match the payload
// published on that channel.
func (b *Bus) Subscribe(channel string, fn interface{}) error {
	return b.bus.Subscribe(channel, fn)
}

// SubscribeOnce registers fn on channel for a single delivery.
func (b *Bus) SubscribeOnce(channel string, fn interface{}) error {
	return b.bus.SubscribeOnce(channel, fn)
}

// Unsubscribe removes a previously registered handler from channel.
func (b *Bus) Unsubscribe(channel string, fn interface{}) error {
	return b.bus.Unsubscribe(channel, fn)
}

// Publish delivers args to every handler subscribed on channel.
func (b *Bus) Publish(channel string, args ...interface{}) {
	b.bus.Publish(channel, args...)
}

// HasSubscribers reports whether any handler is registered on channel.
func (b *Bus) HasSubscribers(channel string) bool {
	return b.bus.HasCallback(channel)
}
