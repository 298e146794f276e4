package domain

// DeviceKind selects which audio endpoints to enumerate.
type DeviceKind int

const (
	AnyDevice DeviceKind = iota
	AudioInput
	AudioOutput
)

func (k DeviceKind) String() string {
	switch k {
	case AudioInput:
		return "audioinput"
	case AudioOutput:
		return "audiooutput"
	default:
		return "any"
	}
}

// Device describes one enumerated audio endpoint.
type Device struct {
	ID    string     `json:"device_id"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"-"`
}
