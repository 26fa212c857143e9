package notification

import (
	"errors"
	"fmt"
	"time"
)

// Default values for the controller. If the values are not set, these values are used.
const (
	DefaultRingTimeout = 30 * time.Second
	DefaultSendTimeout = 5 * time.Second
)

// ErrInvalidTimeout is returned by Validate for a negative timeout.
var ErrInvalidTimeout = errors.New("invalid timeout")

// Config contains the configuration for the controller.
type Config struct {
	RingTimeout time.Duration `env:"RING_TIMEOUT" envDefault:"30s"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"5s"`
}

// Validate rejects negative timeouts. Zero values fall back to the defaults.
func (c Config) Validate() error {
	if c.RingTimeout < 0 {
		return fmt.Errorf("ring timeout %s: %w", c.RingTimeout, ErrInvalidTimeout)
	}
	if c.SendTimeout < 0 {
		return fmt.Errorf("send timeout %s: %w", c.SendTimeout, ErrInvalidTimeout)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.RingTimeout == 0 {
		c.RingTimeout = DefaultRingTimeout
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	return c
}
