package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/krailo/intercom/internal/core"
)

// Factory allocates one Session per call attempt, configured with the
// NAT-traversal servers from config.
type Factory struct {
	cfg    webrtc.Configuration
	source core.DeviceSource
}

func NewFactory(stunURLs []string, source core.DeviceSource) *Factory {
	cfg := webrtc.Configuration{}
	if len(stunURLs) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stunURLs}}
	}
	return &Factory{cfg: cfg, source: source}
}

// DefaultSTUNServers matches the servers the client shipped with.
func DefaultSTUNServers() []string {
	return []string{"stun:stun.l.google.com:19302"}
}

func (f *Factory) NewSession() (core.MediaSession, error) {
	return newSession(f.cfg, f.source)
}
