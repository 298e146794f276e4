// Package devices resolves and persists the audio endpoint selection.
package devices

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/krailo/intercom/internal/core"
	"github.com/krailo/intercom/internal/domain"
)

// Preference store keys for the persisted selection.
const (
	KeyInput  = "audio.input"
	KeyOutput = "audio.output"
)

// Registry owns the input/output device selection. Selections survive
// across calls and process restarts via the preference store.
type Registry struct {
	store  core.PrefStore
	source core.DeviceSource
	sink   core.AudioSink

	mu       sync.Mutex
	inputID  string
	outputID string
}

func NewRegistry(store core.PrefStore, source core.DeviceSource, sink core.AudioSink) *Registry {
	return &Registry{store: store, source: source, sink: sink}
}

// List enumerates audio devices of the requested kind.
func (r *Registry) List(kind domain.DeviceKind) ([]domain.Device, error) {
	return r.source.Enumerate(kind)
}

// Input returns the selected input device id, resolving it on first use:
// persisted preference if one exists, otherwise the first enumerated input,
// which is then persisted.
func (r *Registry) Input() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(&r.inputID, KeyInput, domain.AudioInput)
}

// Output returns the selected output device id, same policy as Input.
func (r *Registry) Output() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(&r.outputID, KeyOutput, domain.AudioOutput)
}

func (r *Registry) resolve(cached *string, key string, kind domain.DeviceKind) (string, error) {
	if *cached != "" {
		return *cached, nil
	}
	if v, ok, err := r.store.Get(key); err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	} else if ok {
		*cached = v
		return v, nil
	}

	devs, err := r.source.Enumerate(kind)
	if err != nil {
		return "", fmt.Errorf("%w: enumerate %s: %v", core.ErrMediaDenied, kind, err)
	}
	if len(devs) == 0 {
		return "", fmt.Errorf("%w: no %s device available", core.ErrMediaDenied, kind)
	}
	*cached = devs[0].ID
	if err := r.store.Set(key, *cached); err != nil {
		return "", fmt.Errorf("persist default %s: %w", key, err)
	}
	log.Info().Str("module", "devices").Str("kind", kind.String()).Str("device_id", *cached).Msg("defaulted to first enumerated device")
	return *cached, nil
}

// SelectInput persists the input choice. The caller swaps the live capture
// track if a call is active.
func (r *Registry) SelectInput(deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Set(KeyInput, deviceID); err != nil {
		return fmt.Errorf("persist input: %w", err)
	}
	r.inputID = deviceID
	log.Info().Str("module", "devices").Str("device_id", deviceID).Msg("input selected")
	return nil
}

// SelectOutput persists the output choice and retargets the currently
// playing remote audio, if any, to the new sink immediately.
func (r *Registry) SelectOutput(deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Set(KeyOutput, deviceID); err != nil {
		return fmt.Errorf("persist output: %w", err)
	}
	r.outputID = deviceID
	if r.sink != nil {
		if err := r.sink.SetDevice(deviceID); err != nil {
			log.Warn().Err(err).Str("module", "devices").Str("device_id", deviceID).Msg("retarget output sink")
		}
	}
	log.Info().Str("module", "devices").Str("device_id", deviceID).Msg("output selected")
	return nil
}
