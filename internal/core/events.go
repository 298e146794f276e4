package core

// Closed variant types for the signaling contract. The gateway adapter is
// responsible for translating the host's raw named events into these at the
// boundary; everything above it dispatches on concrete types.

// InboundEvent is a signaling message consumed by the call engine.
type InboundEvent interface{ isInbound() }

// IncomingCall announces a new call offered to this client.
type IncomingCall struct {
	CallID string
	Caller string
	Callee string
	SDP    string // remote offer
}

// OutgoingAccepted carries the remote answer for a call this client started.
type OutgoingAccepted struct {
	CallID string
	SDP    string // remote answer
}

// CallEnded closes whichever call is active. The wire payload is empty, so
// there is no call id to discriminate on.
type CallEnded struct{}

func (IncomingCall) isInbound()     {}
func (OutgoingAccepted) isInbound() {}
func (CallEnded) isInbound()        {}

// OutboundEvent is a signaling message published by the call engine.
type OutboundEvent interface{ isOutbound() }

// StartCall publishes a local offer to open a call towards Callee.
type StartCall struct {
	SDP    string
	Caller string
	Callee string
}

// AnswerCall publishes a local answer for the incoming call.
type AnswerCall struct {
	CallID string
	SDP    string
}

// DenyCall rejects the incoming call without touching the local session.
type DenyCall struct {
	CallID string
	Caller string
	Callee string
}

// EndCall asks the signaling side to tear the active call down.
type EndCall struct {
	CallID string
	Caller string
	Callee string
	Reason string
}

// SeekCall is the startup reconciliation query: the signaling side replays
// state for a call that was already in progress for Number.
type SeekCall struct {
	Number string
}

func (StartCall) isOutbound()  {}
func (AnswerCall) isOutbound() {}
func (DenyCall) isOutbound()   {}
func (EndCall) isOutbound()    {}
func (SeekCall) isOutbound()   {}
