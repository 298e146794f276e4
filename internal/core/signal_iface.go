package core

import "context"

// Gateway abstracts the host's signaling event bus. Delivery is
// at-least-once with no ordering guarantee across distinct event names.
// Owned by the adapter; the adapter must Close() it.
type Gateway interface {
	Publish(ctx context.Context, ev OutboundEvent) error
	Close()
}

// InboundHandler receives translated inbound signaling events.
type InboundHandler func(ev InboundEvent)
