// Package rtc drives the real-time session lifecycle on top of pion.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/krailo/intercom/internal/core"
)

// Session wraps one PeerConnection. One Session serves exactly one call
// attempt; it is closed on call end and never reused.
type Session struct {
	pc     *webrtc.PeerConnection
	source core.DeviceSource
	cancel context.CancelFunc

	mu     sync.Mutex
	sender *webrtc.RTPSender
	closed bool

	onConnState func(webrtc.PeerConnectionState)
	onGathering func(webrtc.ICEGatheringState)
	onTrack     func(*webrtc.TrackRemote)
}

func newSession(cfg webrtc.Configuration, source core.DeviceSource) (*Session, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return &Session{pc: pc, source: source}, nil
}

func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("ice_state", st.String()).Msg("ICE state")
	})

	s.pc.OnICEGatheringStateChange(func(st webrtc.ICEGatheringState) {
		log.Debug().Str("module", "rtc").Str("gathering_state", st.String()).Msg("gathering state")
		if s.onGathering != nil {
			s.onGathering(st)
		}
	})

	s.pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_connection_state", st.String()).Msg("peer state")
		if s.onConnState != nil {
			s.onConnState(st)
		}
	})

	s.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		if s.onTrack != nil {
			s.onTrack(track)
		}
	})

	return nil
}

func (s *Session) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	s.onConnState = fn
}

func (s *Session) OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState)) {
	s.onGathering = fn
}

func (s *Session) OnRemoteTrack(fn func(*webrtc.TrackRemote)) {
	s.onTrack = fn
}

// AttachLocalAudio captures the selected input and attaches it to the
// session. When a sender already exists its track is replaced, so switching
// devices mid-call takes effect without another offer/answer round.
func (s *Session) AttachLocalAudio(deviceID string) error {
	track, err := s.source.CaptureTrack(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrMediaDenied, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrCallTornDown
	}
	if s.sender != nil {
		if err := s.sender.ReplaceTrack(track); err != nil {
			return fmt.Errorf("%w: replace track: %v", core.ErrNegotiationFailed, err)
		}
		log.Info().Str("module", "rtc").Str("device_id", deviceID).Msg("local audio replaced")
		return nil
	}
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("%w: add track: %v", core.ErrNegotiationFailed, err)
	}
	s.sender = sender
	log.Info().Str("module", "rtc").Str("device_id", deviceID).Msg("local audio attached")
	return nil
}

func (s *Session) ApplyRemoteOffer(sdpText string) error {
	return s.applyRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdpText})
}

func (s *Session) ApplyRemoteAnswer(sdpText string) error {
	return s.applyRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdpText})
}

func (s *Session) applyRemote(desc webrtc.SessionDescription) error {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return fmt.Errorf("%w: malformed remote %s: %v", core.ErrNegotiationFailed, desc.Type, err)
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("%w: apply remote %s: %v", core.ErrNegotiationFailed, desc.Type, err)
	}
	return nil
}

// CreateOfferAndGatherICE produces a local offer, applies it, and waits for
// ICE gathering to complete, bounded by timeout. Some networks never signal
// completion; the bound guarantees the caller does not hang, and on timeout
// the candidates gathered so far are used as-is.
func (s *Session) CreateOfferAndGatherICE(ctx context.Context, timeout time.Duration) (string, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create offer: %v", core.ErrNegotiationFailed, err)
	}
	return s.applyLocalAndGather(ctx, offer, timeout)
}

// CreateAnswerAndGatherICE is the answering-side counterpart.
func (s *Session) CreateAnswerAndGatherICE(ctx context.Context, timeout time.Duration) (string, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create answer: %v", core.ErrNegotiationFailed, err)
	}
	return s.applyLocalAndGather(ctx, answer, timeout)
}

func (s *Session) applyLocalAndGather(ctx context.Context, desc webrtc.SessionDescription, timeout time.Duration) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("%w: set local %s: %v", core.ErrNegotiationFailed, desc.Type, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
	case <-timer.C:
		log.Warn().Str("module", "rtc").Dur("timeout", timeout).Msg("ICE gathering timed out, using partial candidate set")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	local := s.pc.LocalDescription()
	if local == nil {
		return "", fmt.Errorf("%w: no local description after gathering", core.ErrNegotiationFailed)
	}
	return local.SDP, nil
}

func (s *Session) ICEGatheringState() webrtc.ICEGatheringState {
	return s.pc.ICEGatheringState()
}

func (s *Session) ConnectionState() webrtc.PeerConnectionState {
	return s.pc.ConnectionState()
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the PeerConnection down. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if err := s.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Msg("session closed")
	}
}
