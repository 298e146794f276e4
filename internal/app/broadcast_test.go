package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterNotifyOrder(t *testing.T) {
	b := NewBroadcaster()

	var got []string
	b.Subscribe(func(reason string) { got = append(got, "first:"+reason) })
	b.Subscribe(func(reason string) { got = append(got, "second:"+reason) })

	b.Notify(ReasonTimerUpdate)

	require.Equal(t, []string{"first:timer_update", "second:timer_update"}, got,
		"subscribers must run synchronously in registration order")
}

func TestBroadcasterUnsubscribeIdempotent(t *testing.T) {
	b := NewBroadcaster()

	calls := 0
	token := b.Subscribe(func(string) { calls++ })

	b.Unsubscribe(token)
	b.Unsubscribe(token)
	b.Notify(ReasonCallEnded)

	assert.Zero(t, calls)
}

func TestBroadcasterSelfUnsubscribeDuringNotify(t *testing.T) {
	b := NewBroadcaster()

	var got []string
	var token string
	token = b.Subscribe(func(reason string) {
		got = append(got, "self")
		b.Unsubscribe(token)
	})
	b.Subscribe(func(reason string) { got = append(got, "other") })

	b.Notify(ReasonCallEnded)
	b.Notify(ReasonCallEnded)

	assert.Equal(t, []string{"self", "other", "other"}, got,
		"self-unsubscribing observer must fire once and not break the broadcast")
}

func TestBroadcasterUnsubscribeAheadDuringNotify(t *testing.T) {
	b := NewBroadcaster()

	var secondToken string
	firstCalls, secondCalls := 0, 0
	b.Subscribe(func(string) {
		firstCalls++
		b.Unsubscribe(secondToken)
	})
	secondToken = b.Subscribe(func(string) { secondCalls++ })

	b.Notify(ReasonCallEnded)

	assert.Equal(t, 1, firstCalls)
	assert.Zero(t, secondCalls, "subscriber removed mid-broadcast before its turn must be skipped")
}
