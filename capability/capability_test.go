package capability

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCallMedia(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		missing map[string]bool
		want    bool
	}{
		{
			name:   "given disabled config when probed then report no media",
			config: Config{Disabled: true},
			want:   false,
		},
		{
			name:    "given missing device when probed then report no media",
			config:  Config{Devices: []string{"/dev/video0"}},
			missing: map[string]bool{"/dev/video0": true},
			want:    false,
		},
		{
			name:   "given present devices when probed then report media",
			config: Config{Devices: []string{"/dev/snd"}, Video: true},
			want:   true,
		},
		{
			name:   "given audio only when probed then report media",
			config: Config{},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.config)
			p.stat = func(name string) (os.FileInfo, error) {
				if tt.missing[name] {
					return nil, os.ErrNotExist
				}
				return nil, nil
			}
			assert.Equal(t, tt.want, p.HasCallMedia())
		})
	}
}

func TestHasCallMediaReevaluates(t *testing.T) {
	p := New(Config{Devices: []string{"/dev/video0"}})
	present := true
	p.stat = func(string) (os.FileInfo, error) {
		if present {
			return nil, nil
		}
		return nil, errors.New("unplugged")
	}

	assert.True(t, p.HasCallMedia())
	present = false
	assert.False(t, p.HasCallMedia())
}

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).HasCallMedia())
	assert.False(t, Static(false).HasCallMedia())
}
