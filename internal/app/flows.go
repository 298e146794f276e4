package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/krailo/intercom/internal/core"
	"github.com/krailo/intercom/internal/domain"
)

// StartCall opens an outgoing call towards target: fresh media session,
// local capture, offer with bounded ICE gathering, then the start_call
// publish. The whole flow is linear; a call_ended arriving mid-way moves
// the epoch and the flow abandons its result.
func (e *Engine) StartCall(ctx context.Context, target string) error {
	e.mu.Lock()
	if e.stateLocked().Active() {
		e.mu.Unlock()
		return core.ErrCallActive
	}
	sess, ep, err := e.newSessionLocked()
	if err != nil {
		e.mu.Unlock()
		e.bcast.Notify(ReasonCallFailed)
		return fmt.Errorf("%w: %v", core.ErrNegotiationFailed, err)
	}
	e.caller = e.localNumber
	e.callee = target
	e.callID = "" // assigned by the signaling side
	_ = e.fsm.Event(context.Background(), evDial)
	e.mtr.CallsStarted.Inc()
	e.mtr.CallState.Set(float64(domain.CallOutgoing))
	log.Info().Str("module", "app").Str("callee", target).Msg("starting call")
	e.mu.Unlock()

	e.bcast.Notify(ReasonOutgoingCall)

	offer, err := e.negotiateLocal(ctx, ep, sess, sess.CreateOfferAndGatherICE)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if ep != e.epoch || e.stateLocked() != domain.CallOutgoing {
		e.mu.Unlock()
		return core.ErrCallTornDown
	}
	caller, callee := e.caller, e.callee
	e.mu.Unlock()

	e.publish(ctx, core.StartCall{SDP: offer, Caller: caller, Callee: callee})
	return nil
}

// AnswerCall accepts the incoming call: local capture, answer with bounded
// ICE gathering, then the answer_call publish. State stays INCOMING until
// the transport reports connected.
func (e *Engine) AnswerCall(ctx context.Context) error {
	e.mu.Lock()
	state := e.stateLocked()
	if state == domain.CallIdle {
		e.mu.Unlock()
		return core.ErrNoCall
	}
	if state != domain.CallIncoming {
		e.mu.Unlock()
		return core.ErrInvalidState
	}
	ep := e.epoch
	sess := e.media
	e.mu.Unlock()

	answer, err := e.negotiateLocal(ctx, ep, sess, sess.CreateAnswerAndGatherICE)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if ep != e.epoch || e.stateLocked() != domain.CallIncoming {
		e.mu.Unlock()
		return core.ErrCallTornDown
	}
	callID := e.callID
	e.mu.Unlock()

	e.mtr.CallsAnswered.Inc()
	e.publish(ctx, core.AnswerCall{CallID: callID, SDP: answer})
	return nil
}

// negotiateLocal runs the suspension points shared by both directions:
// attach the selected input, then create-and-gather via produce. Any
// failure aborts the attempt back to idle.
func (e *Engine) negotiateLocal(
	ctx context.Context,
	ep uint64,
	sess core.MediaSession,
	produce func(context.Context, time.Duration) (string, error),
) (string, error) {
	inputID, err := e.registry.Input()
	if err != nil {
		e.abort(ep, err)
		return "", err
	}
	if err := sess.AttachLocalAudio(inputID); err != nil {
		e.abort(ep, err)
		return "", err
	}
	sdp, err := produce(ctx, e.iceTimeout)
	if err != nil {
		e.abort(ep, err)
		return "", err
	}
	return sdp, nil
}

// abort tears the attempt at epoch ep down, unless the session already
// moved on (in which case the failure belongs to a dead call).
func (e *Engine) abort(ep uint64, cause error) {
	e.mtr.NegotiationFailures.Inc()
	e.mu.Lock()
	if ep != e.epoch || !e.stateLocked().Active() {
		e.mu.Unlock()
		log.Debug().Err(cause).Str("module", "app").Msg("negotiation failure for a torn-down call")
		return
	}
	log.Error().Err(cause).Str("module", "app").Msg("call attempt aborted")
	e.teardownLocked()
	e.mu.Unlock()
	e.bcast.Notify(ReasonCallFailed)
}

// DenyCall rejects the incoming call. Per the signaling contract this only
// publishes; local teardown waits for the external call_ended.
func (e *Engine) DenyCall(ctx context.Context) error {
	e.mu.Lock()
	state := e.stateLocked()
	if state == domain.CallIdle {
		e.mu.Unlock()
		return core.ErrNoCall
	}
	if state != domain.CallIncoming {
		e.mu.Unlock()
		return core.ErrInvalidState
	}
	ev := core.DenyCall{CallID: e.callID, Caller: e.caller, Callee: e.callee}
	e.mu.Unlock()

	log.Info().Str("module", "app").Str("call_id", ev.CallID).Msg("denying call")
	e.publish(ctx, ev)
	return nil
}

// EndCall asks the signaling side to tear the connected call down. Local
// state stays CONNECTED until the external call_ended arrives.
func (e *Engine) EndCall(ctx context.Context) error {
	e.mu.Lock()
	state := e.stateLocked()
	if state == domain.CallIdle {
		e.mu.Unlock()
		return core.ErrNoCall
	}
	if state != domain.CallConnected {
		e.mu.Unlock()
		return core.ErrInvalidState
	}
	ev := core.EndCall{CallID: e.callID, Caller: e.caller, Callee: e.callee, Reason: domain.DefaultEndReason}
	e.mu.Unlock()

	log.Info().Str("module", "app").Str("call_id", ev.CallID).Msg("ending call")
	e.publish(ctx, ev)
	return nil
}

// SetAudioInput persists the input selection and, when a call is active,
// swaps the capture track in place without renegotiating.
func (e *Engine) SetAudioInput(deviceID string) error {
	if err := e.registry.SelectInput(deviceID); err != nil {
		return err
	}
	e.mu.Lock()
	sess := e.media
	active := e.stateLocked().Active()
	e.mu.Unlock()

	if active && sess != nil {
		if err := sess.AttachLocalAudio(deviceID); err != nil {
			return err
		}
	}
	e.bcast.Notify(ReasonDeviceChange)
	return nil
}

// SetAudioOutput persists the output selection and retargets live playback.
func (e *Engine) SetAudioOutput(deviceID string) error {
	if err := e.registry.SelectOutput(deviceID); err != nil {
		return err
	}
	e.bcast.Notify(ReasonDeviceChange)
	return nil
}

// ListAudioDevices enumerates audio endpoints of the requested kind.
func (e *Engine) ListAudioDevices(kind domain.DeviceKind) ([]domain.Device, error) {
	return e.registry.List(kind)
}
