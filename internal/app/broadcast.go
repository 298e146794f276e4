package app

import (
	"sync"

	"github.com/google/uuid"
)

// Update reasons passed to subscribers so presentation layers can apply
// side effects selectively (open a dialog on call boundaries, ignore ticks).
const (
	ReasonIncomingCall     = "incoming_call"
	ReasonOutgoingCall     = "outgoing_call"
	ReasonCallStarted      = "call_started"
	ReasonCallEnded        = "call_ended"
	ReasonTimerUpdate      = "timer_update"
	ReasonDeviceChange     = "device_change"
	ReasonNegotiationState = "negotiation_state"
	ReasonCallFailed       = "call_failed"
	ReasonDeliveryWarning  = "delivery_warning"
)

// Broadcaster is the process-wide publish point for state updates. All
// current subscribers are invoked synchronously in registration order.
type Broadcaster struct {
	mu    sync.Mutex
	order []string
	subs  map[string]func(reason string)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]func(reason string))}
}

// Subscribe registers fn and returns a token for Unsubscribe.
func (b *Broadcaster) Subscribe(fn func(reason string)) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.order = append(b.order, token)
	b.subs[token] = fn
	return token
}

// Unsubscribe removes the subscriber. Idempotent and safe to call from
// inside a notification.
func (b *Broadcaster) Unsubscribe(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[token]; !ok {
		return
	}
	delete(b.subs, token)
	for i, t := range b.order {
		if t == token {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Notify invokes every current subscriber with the reason. The subscriber
// set is snapshotted first, so a subscriber removing itself (or another)
// mid-broadcast does not corrupt the iteration; removed subscribers are
// skipped if the removal lands before their turn.
func (b *Broadcaster) Notify(reason string) {
	b.mu.Lock()
	tokens := make([]string, len(b.order))
	copy(tokens, b.order)
	b.mu.Unlock()

	for _, token := range tokens {
		b.mu.Lock()
		fn := b.subs[token]
		b.mu.Unlock()
		if fn != nil {
			fn(reason)
		}
	}
}
