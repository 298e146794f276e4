package signal

import (
	"encoding/json"
	"fmt"

	"github.com/krailo/intercom/internal/core"
)

// Wire names of the call events on the host bus.
const (
	evIncomingCall = "sipclient_incoming_call_event"
	evOutgoingCall = "sipclient_outgoing_call_event"
	evCallEnded    = "sipclient_call_ended_event"
	evStartCall    = "sipclient_start_call_event"
	evAnswerCall   = "sipclient_answer_call_event"
	evDenyCall     = "sipclient_deny_call_event"
	evEndCall      = "sipclient_end_call_event"
	evSeekCall     = "sipclient_seek_call_event"
)

// subscribedEvents lists the inbound event names the client listens for.
func subscribedEvents() []string {
	return []string{evIncomingCall, evOutgoingCall, evCallEnded}
}

type incomingCallPayload struct {
	CallID string `json:"call_id"`
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	SDP    string `json:"sdp"`
}

type outgoingCallPayload struct {
	CallID string `json:"call_id"`
	SDP    string `json:"sdp"`
}

type startCallPayload struct {
	SDP    string `json:"sdp"`
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

type answerCallPayload struct {
	CallID string `json:"call_id"`
	SDP    string `json:"sdp"`
}

type denyCallPayload struct {
	CallID string `json:"call_id"`
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

type endCallPayload struct {
	CallID string `json:"call_id"`
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	Reason string `json:"reason"`
}

type seekCallPayload struct {
	Number string `json:"number"`
}

// decodeInbound translates a raw named bus event into the closed variant
// consumed by the call engine.
func decodeInbound(eventType string, data json.RawMessage) (core.InboundEvent, error) {
	switch eventType {
	case evIncomingCall:
		var p incomingCallPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("bad %s payload: %w", eventType, err)
		}
		return core.IncomingCall{CallID: p.CallID, Caller: p.Caller, Callee: p.Callee, SDP: p.SDP}, nil
	case evOutgoingCall:
		var p outgoingCallPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("bad %s payload: %w", eventType, err)
		}
		return core.OutgoingAccepted{CallID: p.CallID, SDP: p.SDP}, nil
	case evCallEnded:
		return core.CallEnded{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

// encodeOutbound maps an outbound variant to its wire name and payload.
func encodeOutbound(ev core.OutboundEvent) (string, any, error) {
	switch e := ev.(type) {
	case core.StartCall:
		return evStartCall, startCallPayload{SDP: e.SDP, Caller: e.Caller, Callee: e.Callee}, nil
	case core.AnswerCall:
		return evAnswerCall, answerCallPayload{CallID: e.CallID, SDP: e.SDP}, nil
	case core.DenyCall:
		return evDenyCall, denyCallPayload{CallID: e.CallID, Caller: e.Caller, Callee: e.Callee}, nil
	case core.EndCall:
		return evEndCall, endCallPayload{CallID: e.CallID, Caller: e.Caller, Callee: e.Callee, Reason: e.Reason}, nil
	case core.SeekCall:
		return evSeekCall, seekCallPayload{Number: e.Number}, nil
	default:
		return "", nil, fmt.Errorf("unknown outbound event %T", ev)
	}
}
