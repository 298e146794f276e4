package devices

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// RoutingSink records the output routing choice for the platform's player.
// Actual playback is owned by the host's audio element; the core only tells
// it where the remote stream should go next.
type RoutingSink struct {
	mu       sync.Mutex
	deviceID string
}

func NewRoutingSink() *RoutingSink { return &RoutingSink{} }

func (s *RoutingSink) SetDevice(deviceID string) error {
	s.mu.Lock()
	s.deviceID = deviceID
	s.mu.Unlock()
	log.Info().Str("module", "devices").Str("device_id", deviceID).Msg("output retargeted")
	return nil
}

// Device returns the current routing target.
func (s *RoutingSink) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}
