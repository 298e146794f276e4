package core

import "errors"

var (
	// ErrCallActive rejects StartCall/AnswerCall while a call already exists.
	ErrCallActive = errors.New("a call is already active")
	// ErrNoCall rejects operations that need an active call.
	ErrNoCall = errors.New("no active call")
	// ErrInvalidState rejects an operation in the wrong call state.
	ErrInvalidState = errors.New("operation not valid in current call state")
	// ErrMediaDenied signals capture permission refusal or no usable device.
	ErrMediaDenied = errors.New("media acquisition denied")
	// ErrNegotiationFailed signals a description rejected by the transport.
	ErrNegotiationFailed = errors.New("negotiation failed")
	// ErrDeliveryFailed signals an outbound publish the gateway could not take.
	ErrDeliveryFailed = errors.New("signaling delivery failed")
	// ErrCallTornDown signals that call_ended arrived mid-negotiation.
	ErrCallTornDown = errors.New("call ended during negotiation")
)
