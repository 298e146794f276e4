// Package domain contains entity without logic, just meta-data.
package domain

import (
	"fmt"
	"time"
)

// CallState is the lifecycle state of the single call session.
type CallState int

const (
	// CallIdle means no call exists; this is both the initial and the
	// call-ended resting state.
	CallIdle CallState = iota
	// CallIncoming means a remote offer has been applied and the call is
	// waiting for a local answer or deny.
	CallIncoming
	// CallOutgoing means a local offer has been published and the call is
	// waiting for the remote answer and transport connection.
	CallOutgoing
	// CallConnected means the transport reported connected and media flows.
	CallConnected
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallIncoming:
		return "incoming"
	case CallOutgoing:
		return "outgoing"
	case CallConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Active reports whether a call session currently exists.
func (s CallState) Active() bool { return s != CallIdle }

// DefaultEndReason is published with end_call when no other reason is given.
const DefaultEndReason = "user ended call"

// Call is a read-only snapshot of the call session handed to observers.
type Call struct {
	ID      string        `json:"call_id"`
	State   CallState     `json:"-"`
	Caller  string        `json:"caller"`
	Callee  string        `json:"callee"`
	Elapsed time.Duration `json:"-"`
}

// Timer renders Elapsed as MM:SS for presentation layers.
func (c Call) Timer() string {
	total := int(c.Elapsed / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
