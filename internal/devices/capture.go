package devices

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/krailo/intercom/internal/core"
	"github.com/krailo/intercom/internal/domain"
)

// CaptureSource enumerates the host's audio hardware and opens Opus-encoded
// capture tracks via pion/mediadevices.
type CaptureSource struct {
	selector *mediadevices.CodecSelector
}

func NewCaptureSource() (*CaptureSource, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	return &CaptureSource{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

func (s *CaptureSource) Enumerate(kind domain.DeviceKind) ([]domain.Device, error) {
	var out []domain.Device
	for _, info := range mediadevices.EnumerateDevices() {
		k, ok := mapKind(info.Kind)
		if !ok {
			continue
		}
		if kind != domain.AnyDevice && kind != k {
			continue
		}
		out = append(out, domain.Device{ID: info.DeviceID, Label: info.Label, Kind: k})
	}
	return out, nil
}

func mapKind(k mediadevices.MediaDeviceType) (domain.DeviceKind, bool) {
	switch k {
	case mediadevices.AudioInput:
		return domain.AudioInput, true
	case mediadevices.AudioOutput:
		return domain.AudioOutput, true
	default:
		return domain.AnyDevice, false
	}
}

// CaptureTrack opens the given microphone. Opening capture is also the
// permission grant that makes device labels visible on later enumerations.
func (s *CaptureSource) CaptureTrack(deviceID string) (webrtc.TrackLocal, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			if deviceID != "" {
				c.DeviceID = prop.String(deviceID)
			}
		},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMediaDenied, err)
	}
	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: capture returned no audio track", core.ErrMediaDenied)
	}
	return tracks[0], nil
}
