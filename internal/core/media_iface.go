package core

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
)

// MediaSession is the negotiation surface of one real-time session. Created
// fresh for every call attempt, exclusively owned by the call engine and
// never reused across calls.
type MediaSession interface {
	// Start installs the registered callbacks on the underlying session.
	// Callbacks must be set before Start.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources. Idempotent.
	Close()
	IsClosed() bool

	// OnConnectionStateChange forwards transport state to the call engine.
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	// OnICEGatheringStateChange is forwarded to observers for diagnostics.
	OnICEGatheringStateChange(func(webrtc.ICEGatheringState))
	// OnRemoteTrack fires when the far end's audio track arrives.
	OnRemoteTrack(func(*webrtc.TrackRemote))

	// AttachLocalAudio captures the given input device and attaches it,
	// replacing a previously attached track in place (no renegotiation).
	AttachLocalAudio(deviceID string) error

	// ApplyRemoteOffer / ApplyRemoteAnswer validate and apply the far end's
	// session description.
	ApplyRemoteOffer(sdp string) error
	ApplyRemoteAnswer(sdp string) error

	// CreateOfferAndGatherICE / CreateAnswerAndGatherICE produce a local
	// description, apply it, and return once ICE gathering completes or
	// timeout elapses, whichever first. On timeout the candidate set
	// gathered so far is returned as-is.
	CreateOfferAndGatherICE(ctx context.Context, timeout time.Duration) (string, error)
	CreateAnswerAndGatherICE(ctx context.Context, timeout time.Duration) (string, error)

	// ICEGatheringState exposes the current gathering state for diagnostics.
	ICEGatheringState() webrtc.ICEGatheringState
	// ConnectionState exposes the current transport state for diagnostics.
	ConnectionState() webrtc.PeerConnectionState
}

// MediaFactory allocates a new MediaSession per call attempt.
type MediaFactory interface {
	NewSession() (MediaSession, error)
}
