package agent

import (
	"errors"
	"fmt"
	"net/url"

	"callnotify/capability"
	"callnotify/media"
	"callnotify/notification"
)

// Default values for the agent.
const (
	DefaultRelayURL = "ws://localhost:7070/ws"
	DefaultTopic    = "webrtc"
)

// Below is the Error message for the agent configuration.
var (
	ErrInvalidRelayURL = errors.New("invalid relay url")
	ErrInvalidUserID   = errors.New("invalid user id")
)

// Config is the configuration of a local endpoint.
type Config struct {
	RelayURL string `env:"RELAY_URL" envDefault:"ws://localhost:7070/ws"`
	UserID   string `env:"USER_ID"`
	Topic    string `env:"RELAY_TOPIC" envDefault:"webrtc"`

	Notification notification.Config
	Capability   capability.Config
	Media        media.Config
}

// Validate checks the relay address, the user id and the ring timeout.
func (c Config) Validate() error {
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return fmt.Errorf("%s: %w", c.RelayURL, ErrInvalidRelayURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, given %q: %w", u.Scheme, ErrInvalidRelayURL)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %s: %w", c.RelayURL, ErrInvalidRelayURL)
	}

	if c.UserID == "" {
		return fmt.Errorf("user id must not be empty: %w", ErrInvalidUserID)
	}

	if c.Notification.RingTimeout <= 0 {
		return fmt.Errorf("ring timeout must be positive, given %s: %w",
			c.Notification.RingTimeout, notification.ErrInvalidTimeout)
	}
	return c.Notification.Validate()
}
