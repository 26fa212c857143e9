// Package capability reports whether the local runtime can acquire call media.
package capability

import (
	"fmt"
	"os"

	"callnotify/pkg/log"

	"github.com/pion/webrtc/v4"
)

// Config selects what a probe checks.
type Config struct {
	// Disabled makes every probe report no media.
	Disabled bool `env:"MEDIA_DISABLED" envDefault:"false"`
	// Devices are capture device paths that must exist, e.g. /dev/video0.
	Devices []string `env:"MEDIA_DEVICES" envSeparator:","`
	// Video also requires a negotiable video transceiver.
	Video bool `env:"MEDIA_VIDEO" envDefault:"true"`
}

// Probe checks capture devices and codec support on every call, since device
// state may change between invites.
type Probe struct {
	config Config
	stat   func(string) (os.FileInfo, error)
}

// New creates a Probe.
func New(c Config) *Probe {
	return &Probe{
		config: c,
		stat:   os.Stat,
	}
}

// HasCallMedia reports whether a call could acquire media right now.
func (p *Probe) HasCallMedia() bool {
	if p.config.Disabled {
		return false
	}
	for _, dev := range p.config.Devices {
		if _, err := p.stat(dev); err != nil {
			log.Debugf("capture device %s unavailable: %v", dev, err)
			return false
		}
	}
	if err := p.negotiable(); err != nil {
		log.Debugf("media engine unavailable: %v", err)
		return false
	}
	return true
}

// negotiable builds a throwaway peer connection with the default codecs and
// the transceivers a call needs.
func (p *Probe) negotiable() error {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return fmt.Errorf("failed to register codecs: %w", err)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}
	defer func() {
		if err := pc.Close(); err != nil {
			log.Debugf("failed to close probe peer connection: %v", err)
		}
	}()

	kinds := []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio}
	if p.config.Video {
		kinds = append(kinds, webrtc.RTPCodecTypeVideo)
	}
	for _, kind := range kinds {
		if _, err := pc.AddTransceiverFromKind(kind); err != nil {
			return fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}
	return nil
}

// Static is a probe with a fixed answer.
type Static bool

// HasCallMedia returns the fixed answer.
func (s Static) HasCallMedia() bool {
	return bool(s)
}
