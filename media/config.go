// Package media is the entry point of media negotiation for a call.
package media

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DefaultICEServer is used when no ICE server is configured.
const DefaultICEServer = "stun:stun.l.google.com:19302"

// Config defines the configuration for media negotiation.
type Config struct {
	ICEServers []string `env:"ICE_SERVERS" envSeparator:","`
	MinUDPPort uint16   `env:"MIN_UDP_PORT"` // Minimum UDP port for WebRTC
	MaxUDPPort uint16   `env:"MAX_UDP_PORT"` // Maximum UDP port for WebRTC
}

// SetPortRange sets the ephemeral UDP port range for WebRTC. A zero range
// leaves the setting engine untouched.
func (c *Config) SetPortRange(s *webrtc.SettingEngine) error {
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}

	// Check if the range is valid
	if c.MinUDPPort > c.MaxUDPPort {
		return fmt.Errorf("invalid port range: MinUDPPort (%d) > MaxUDPPort (%d)", c.MinUDPPort, c.MaxUDPPort)
	}

	if err := s.SetEphemeralUDPPortRange(c.MinUDPPort, c.MaxUDPPort); err != nil {
		return fmt.Errorf("failed to set ephemeral UDP port range: %w", err)
	}
	return nil
}

// Configuration returns the peer connection configuration.
func (c *Config) Configuration() webrtc.Configuration {
	if len(c.ICEServers) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: c.ICEServers,
			},
		},
	}
}
