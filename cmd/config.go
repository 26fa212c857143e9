package cmd

import (
	"errors"
	"fmt"

	"callnotify/agent"
	"callnotify/metric"
	"callnotify/signal"
)

// Modes the binary runs in.
const (
	ModeRelay = "relay"
	ModeAgent = "agent"
)

// ErrInvalidMode is returned for a mode other than relay or agent.
var ErrInvalidMode = errors.New("invalid mode")

// Config is the configuration of the whole application.
type Config struct {
	Mode  string `env:"MODE" envDefault:"relay"`
	Debug bool   `env:"DEBUG"`

	Signal signal.Config
	Agent  agent.Config
	Metric metric.Config
}

// Validate validates the configuration of the selected mode.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeRelay:
		return c.Signal.Validate()
	case ModeAgent:
		return c.Agent.Validate()
	default:
		return fmt.Errorf("must be %s or %s, given %q: %w", ModeRelay, ModeAgent, c.Mode, ErrInvalidMode)
	}
}
