package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krailo/intercom/internal/core"
	"github.com/krailo/intercom/internal/domain"
)

// staticSource hands out silent opus tracks instead of touching hardware.
type staticSource struct{}

func (staticSource) Enumerate(domain.DeviceKind) ([]domain.Device, error) {
	return []domain.Device{{ID: "fake-mic", Label: "Fake Mic", Kind: domain.AudioInput}}, nil
}

func (staticSource) CaptureTrack(string) (webrtc.TrackLocal, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "intercom",
	)
}

func newTestSession(t *testing.T) core.MediaSession {
	t.Helper()
	// No STUN servers: host candidates only, so gathering finishes offline.
	f := NewFactory(nil, staticSource{})
	s, err := f.NewSession()
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func TestOfferGatherIsBounded(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.AttachLocalAudio("fake-mic"))

	const timeout = 3 * time.Second
	start := time.Now()
	sdp, err := s.CreateOfferAndGatherICE(context.Background(), timeout)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Contains(t, sdp, "m=audio")
	assert.Less(t, elapsed, timeout+time.Second, "gather wait must resolve within timeout plus epsilon")
}

func TestOfferAnswerHandshake(t *testing.T) {
	caller := newTestSession(t)
	callee := newTestSession(t)

	require.NoError(t, caller.AttachLocalAudio("fake-mic"))
	offer, err := caller.CreateOfferAndGatherICE(context.Background(), 3*time.Second)
	require.NoError(t, err)

	require.NoError(t, callee.ApplyRemoteOffer(offer))
	require.NoError(t, callee.AttachLocalAudio("fake-mic"))
	answer, err := callee.CreateAnswerAndGatherICE(context.Background(), 3*time.Second)
	require.NoError(t, err)

	require.NoError(t, caller.ApplyRemoteAnswer(answer))
}

func TestApplyRemoteRejectsMalformedSDP(t *testing.T) {
	s := newTestSession(t)

	err := s.ApplyRemoteOffer("this is not sdp")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNegotiationFailed)
}

func TestAttachLocalAudioSwapsInPlace(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.AttachLocalAudio("fake-mic"))
	// A second attach must replace the first track, not stack a new sender.
	require.NoError(t, s.AttachLocalAudio("another-mic"))

	offer, err := s.CreateOfferAndGatherICE(context.Background(), 3*time.Second)
	require.NoError(t, err)
	assert.Contains(t, offer, "m=audio")
}

func TestAttachLocalAudioSwapsMidCall(t *testing.T) {
	caller := newTestSession(t)
	callee := newTestSession(t)

	require.NoError(t, caller.AttachLocalAudio("fake-mic"))
	offer, err := caller.CreateOfferAndGatherICE(context.Background(), 3*time.Second)
	require.NoError(t, err)
	require.NoError(t, callee.ApplyRemoteOffer(offer))
	require.NoError(t, callee.AttachLocalAudio("fake-mic"))
	answer, err := callee.CreateAnswerAndGatherICE(context.Background(), 3*time.Second)
	require.NoError(t, err)
	require.NoError(t, caller.ApplyRemoteAnswer(answer))

	// After the handshake a device switch must reuse the negotiated sender;
	// a new sender would carry no media until another offer/answer round.
	sess := caller.(*Session)
	before := sess.sender
	require.NotNil(t, before)

	renegotiate := make(chan struct{}, 1)
	sess.pc.OnNegotiationNeeded(func() {
		select {
		case renegotiate <- struct{}{}:
		default:
		}
	})

	require.NoError(t, caller.AttachLocalAudio("another-mic"))
	assert.Same(t, before, sess.sender, "switch must keep the negotiated sender")

	select {
	case <-renegotiate:
		t.Fatal("device switch must not require renegotiation")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestSession(t)
	s.Close()
	s.Close()
	assert.True(t, s.IsClosed())

	err := s.AttachLocalAudio("fake-mic")
	assert.ErrorIs(t, err, core.ErrCallTornDown)
}
