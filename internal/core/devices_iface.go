package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/krailo/intercom/internal/domain"
)

// DeviceSource enumerates audio endpoints and opens capture tracks.
// Enumeration may require a capture permission grant first, because device
// labels are otherwise withheld by the platform.
type DeviceSource interface {
	Enumerate(kind domain.DeviceKind) ([]domain.Device, error)
	CaptureTrack(deviceID string) (webrtc.TrackLocal, error)
}

// AudioSink is the playback endpoint for the remote audio stream. The
// platform supplies the actual playback; the core only retargets it when
// the output selection changes.
type AudioSink interface {
	SetDevice(deviceID string) error
}
