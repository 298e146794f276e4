// Package app holds the call session state machine, the single source of
// truth for call state.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/krailo/intercom/internal/core"
	"github.com/krailo/intercom/internal/devices"
	"github.com/krailo/intercom/internal/domain"
	"github.com/krailo/intercom/internal/metrics"
)

// FSM event names.
const (
	evRing      = "ring"
	evDial      = "dial"
	evEstablish = "establish"
	evHangup    = "hangup"
)

// Engine consumes signaling events and local user actions, drives the
// negotiation engine, and owns the single CallSession. All transitions are
// serialized on one mutex; negotiation suspension points run outside it and
// re-validate the call epoch before acting on their result.
type Engine struct {
	localNumber string
	iceTimeout  time.Duration

	factory  core.MediaFactory
	gw       core.Gateway
	registry *devices.Registry
	bcast    *Broadcaster
	mtr      *metrics.Collector

	mu          sync.Mutex
	fsm         *fsm.FSM
	epoch       uint64
	callID      string
	caller      string
	callee      string
	media       core.MediaSession
	remoteTrack *webrtc.TrackRemote
	connectedAt time.Time
	elapsed     time.Duration
	tickerStop  chan struct{}
	ctx         context.Context
}

func NewEngine(
	localNumber string,
	iceTimeout time.Duration,
	factory core.MediaFactory,
	gw core.Gateway,
	registry *devices.Registry,
	bcast *Broadcaster,
	mtr *metrics.Collector,
) *Engine {
	e := &Engine{
		localNumber: localNumber,
		iceTimeout:  iceTimeout,
		factory:     factory,
		gw:          gw,
		registry:    registry,
		bcast:       bcast,
		mtr:         mtr,
		ctx:         context.Background(),
	}
	e.fsm = fsm.NewFSM(
		domain.CallIdle.String(),
		fsm.Events{
			{Name: evRing, Src: []string{domain.CallIdle.String()}, Dst: domain.CallIncoming.String()},
			{Name: evDial, Src: []string{domain.CallIdle.String()}, Dst: domain.CallOutgoing.String()},
			{Name: evEstablish, Src: []string{domain.CallIncoming.String(), domain.CallOutgoing.String()}, Dst: domain.CallConnected.String()},
			{Name: evHangup, Src: []string{domain.CallIncoming.String(), domain.CallOutgoing.String(), domain.CallConnected.String()}, Dst: domain.CallIdle.String()},
		},
		nil,
	)
	return e
}

// Start binds the engine lifetime to ctx and publishes the startup
// reconciliation query, letting the signaling side replay a call that was
// already in progress before this client instance existed.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	log.Info().Str("module", "app").Str("number", e.localNumber).Msg("seeking existing call")
	e.publish(ctx, core.SeekCall{Number: e.localNumber})
}

// Subscribe registers an observer for state updates.
func (e *Engine) Subscribe(fn func(reason string)) string { return e.bcast.Subscribe(fn) }

// Unsubscribe removes an observer. Idempotent.
func (e *Engine) Unsubscribe(token string) { e.bcast.Unsubscribe(token) }

// Snapshot returns the current call session fields.
func (e *Engine) Snapshot() domain.Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Call{
		ID:      e.callID,
		State:   e.stateLocked(),
		Caller:  e.caller,
		Callee:  e.callee,
		Elapsed: e.elapsed,
	}
}

// RemoteStreamID exposes the far end's stream for presentation layers;
// empty while no remote track has arrived.
func (e *Engine) RemoteStreamID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remoteTrack == nil {
		return ""
	}
	return e.remoteTrack.StreamID()
}

func (e *Engine) stateLocked() domain.CallState {
	switch e.fsm.Current() {
	case domain.CallIncoming.String():
		return domain.CallIncoming
	case domain.CallOutgoing.String():
		return domain.CallOutgoing
	case domain.CallConnected.String():
		return domain.CallConnected
	default:
		return domain.CallIdle
	}
}

// HandleInbound dispatches a translated signaling event. Events may arrive
// out of order or duplicated; each handler tolerates both.
func (e *Engine) HandleInbound(ev core.InboundEvent) {
	switch ev := ev.(type) {
	case core.IncomingCall:
		e.handleIncoming(ev)
	case core.OutgoingAccepted:
		e.handleAccepted(ev)
	case core.CallEnded:
		e.handleEnded()
	default:
		log.Warn().Str("module", "app").Msgf("unhandled inbound event %T", ev)
	}
}

func (e *Engine) handleIncoming(ev core.IncomingCall) {
	e.mu.Lock()
	if e.stateLocked().Active() {
		dup := ev.CallID == e.callID
		e.mu.Unlock()
		if dup {
			log.Debug().Str("module", "app").Str("call_id", ev.CallID).Msg("duplicate incoming_call")
		} else {
			log.Warn().Str("module", "app").Str("call_id", ev.CallID).Msg("incoming_call while busy, ignored")
		}
		return
	}

	sess, ep, err := e.newSessionLocked()
	if err != nil {
		e.mu.Unlock()
		log.Error().Err(err).Str("module", "app").Msg("create media session")
		e.bcast.Notify(ReasonCallFailed)
		return
	}
	if err := sess.ApplyRemoteOffer(ev.SDP); err != nil {
		e.media = nil
		e.mu.Unlock()
		sess.Close()
		e.mtr.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "app").Str("call_id", ev.CallID).Msg("apply remote offer")
		e.bcast.Notify(ReasonCallFailed)
		return
	}

	e.callID = ev.CallID
	e.caller = ev.Caller
	e.callee = ev.Callee
	_ = e.fsm.Event(context.Background(), evRing)
	e.mtr.CallState.Set(float64(domain.CallIncoming))
	log.Info().Str("module", "app").Str("call_id", ev.CallID).Str("caller", ev.Caller).Uint64("epoch", ep).Msg("incoming call")
	e.mu.Unlock()

	e.bcast.Notify(ReasonIncomingCall)
}

func (e *Engine) handleAccepted(ev core.OutgoingAccepted) {
	e.mu.Lock()
	if e.stateLocked() != domain.CallOutgoing {
		e.mu.Unlock()
		log.Warn().Str("module", "app").Str("call_id", ev.CallID).Msg("outgoing_call answer without outgoing call, ignored")
		return
	}
	if e.callID == "" {
		// The signaling side assigns the id with its answer.
		e.callID = ev.CallID
	} else if e.callID != ev.CallID {
		e.mu.Unlock()
		log.Warn().Str("module", "app").Str("call_id", ev.CallID).Msg("answer for a different call, ignored")
		return
	}

	if err := e.media.ApplyRemoteAnswer(ev.SDP); err != nil {
		e.teardownLocked()
		e.mu.Unlock()
		e.mtr.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "app").Str("call_id", ev.CallID).Msg("apply remote answer")
		e.bcast.Notify(ReasonCallFailed)
		return
	}
	log.Info().Str("module", "app").Str("call_id", ev.CallID).Msg("remote answer applied")
	e.mu.Unlock()

	e.bcast.Notify(ReasonOutgoingCall)
}

func (e *Engine) handleEnded() {
	e.mu.Lock()
	if !e.stateLocked().Active() {
		e.mu.Unlock()
		log.Debug().Str("module", "app").Msg("call_ended while idle, no-op")
		return
	}
	e.teardownLocked()
	e.mu.Unlock()

	e.bcast.Notify(ReasonCallEnded)
}

// newSessionLocked allocates a fresh media session under a new epoch and
// wires its callbacks. Caller holds e.mu.
func (e *Engine) newSessionLocked() (core.MediaSession, uint64, error) {
	sess, err := e.factory.NewSession()
	if err != nil {
		return nil, 0, err
	}
	e.epoch++
	ep := e.epoch

	sess.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		e.onTransportState(ep, st)
	})
	sess.OnICEGatheringStateChange(func(st webrtc.ICEGatheringState) {
		log.Debug().Str("module", "app").Str("gathering_state", st.String()).Msg("ICE gathering")
		e.bcast.Notify(ReasonNegotiationState)
	})
	sess.OnRemoteTrack(func(track *webrtc.TrackRemote) {
		e.onRemoteTrack(ep, track)
	})
	if err := sess.Start(e.ctx); err != nil {
		sess.Close()
		return nil, 0, err
	}
	e.media = sess
	return sess, ep, nil
}

func (e *Engine) onRemoteTrack(ep uint64, track *webrtc.TrackRemote) {
	e.mu.Lock()
	if ep != e.epoch {
		e.mu.Unlock()
		return
	}
	e.remoteTrack = track
	e.mu.Unlock()
	e.bcast.Notify(ReasonNegotiationState)
}

// onTransportState folds the transport's own state machine into the call
// lifecycle. Callbacks from sessions of an earlier epoch are stale and
// dropped.
func (e *Engine) onTransportState(ep uint64, st webrtc.PeerConnectionState) {
	e.mu.Lock()
	if ep != e.epoch {
		e.mu.Unlock()
		return
	}
	state := e.stateLocked()

	switch st {
	case webrtc.PeerConnectionStateConnected:
		if state == domain.CallOutgoing || state == domain.CallIncoming {
			_ = e.fsm.Event(context.Background(), evEstablish)
			e.connectedAt = time.Now()
			e.elapsed = 0
			e.startTickerLocked()
			e.mtr.CallState.Set(float64(domain.CallConnected))
			log.Info().Str("module", "app").Str("call_id", e.callID).Msg("call connected")
			e.mu.Unlock()
			e.bcast.Notify(ReasonCallStarted)
			return
		}
	case webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed:
		if state.Active() {
			log.Info().Str("module", "app").Str("call_id", e.callID).Str("transport_state", st.String()).Msg("transport lost, ending call")
			e.teardownLocked()
			e.mu.Unlock()
			e.bcast.Notify(ReasonCallEnded)
			return
		}
	case webrtc.PeerConnectionStateNew, webrtc.PeerConnectionStateConnecting:
		// Transitional; nothing to fold in.
	default:
		// Unrecognized value: log and stay put rather than guess.
		log.Error().Str("module", "app").Str("transport_state", st.String()).Msg("unknown transport state")
	}
	e.mu.Unlock()
}

// teardownLocked closes and discards the media session and resets the call
// session to idle. Caller holds e.mu. Idempotent by construction: called
// only while a call is active.
func (e *Engine) teardownLocked() {
	e.stopTickerLocked()
	if media := e.media; media != nil {
		// Close on a fresh goroutine: teardown may run inside a transport
		// callback delivered by the session being closed.
		go media.Close()
	}
	e.media = nil
	e.remoteTrack = nil
	e.callID = ""
	e.caller = ""
	e.callee = ""
	e.elapsed = 0
	e.epoch++
	_ = e.fsm.Event(context.Background(), evHangup)
	e.mtr.CallsEnded.Inc()
	e.mtr.CallState.Set(float64(domain.CallIdle))
	log.Info().Str("module", "app").Msg("call session reset")
}

func (e *Engine) startTickerLocked() {
	if e.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	e.tickerStop = stop
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				e.tick()
			}
		}
	}()
}

func (e *Engine) stopTickerLocked() {
	if e.tickerStop != nil {
		close(e.tickerStop)
		e.tickerStop = nil
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	if e.stateLocked() != domain.CallConnected {
		e.mu.Unlock()
		return
	}
	e.elapsed = time.Since(e.connectedAt)
	e.mu.Unlock()
	e.bcast.Notify(ReasonTimerUpdate)
}

// publish fires an outbound event with at most one retry. A final failure
// is a warning, not an abort: the far end may still have received the
// retried message, so the call proceeds optimistically.
func (e *Engine) publish(ctx context.Context, ev core.OutboundEvent) {
	if err := e.gw.Publish(ctx, ev); err != nil {
		e.mtr.SignalingRetries.Inc()
		log.Warn().Err(err).Str("module", "app").Msgf("publish %T failed, retrying once", ev)
		if err := e.gw.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("module", "app").Msgf("publish %T retry failed, proceeding", ev)
			e.bcast.Notify(ReasonDeliveryWarning)
		}
	}
}
