package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"callnotify/agent"
	"callnotify/cmd"
	"callnotify/notification"
	"callnotify/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseArgs checks that the command line is parsed into the relay configuration.
// It returns an error if the arguments are invalid.
func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    signal.Config
		wantErr bool
	}{
		{
			name: "given valid args when parsed then return config",
			args: []string{"--port=8080", "--key=/path/to/key.pem", "--cert=/path/to/cert.pem"},
			want: signal.Config{Port: 8080, KeyFile: "/path/to/key.pem", CertFile: "/path/to/cert.pem", Topic: signal.DefaultTopic},
		},
		{
			name: "given missing port when parsed then return config with default port",
			args: []string{"--key=/path/to/key.pem", "--cert=/path/to/cert.pem"},
			want: signal.Config{Port: signal.DefaultPort, KeyFile: "/path/to/key.pem", CertFile: "/path/to/cert.pem", Topic: signal.DefaultTopic},
		},
		{
			name: "given topic when parsed then return config with topic",
			args: []string{"--topic=lobby"},
			want: signal.Config{Port: signal.DefaultPort, Topic: "lobby"},
		},
		{
			name: "given no args when parsed then return config",
			args: []string{},
			want: signal.Config{Port: signal.DefaultPort, KeyFile: "", CertFile: "", Topic: signal.DefaultTopic},
		},
		{
			name:    "given extra args when parsed then return error",
			args:    []string{"--port=8080", "--key=/path/to/key.pem", "--cert=/path/to/cert.pem", "extra"},
			wantErr: true,
		},
		{
			name:    "given invalid flag format when parsed then return error",
			args:    []string{"--extra"},
			wantErr: true,
		},
		{
			name:    "given invalid non-flag args when parsed then return error",
			args:    []string{"port"},
			wantErr: true,
		},
		{
			name:    "given port flag without value when parsed then return error",
			args:    []string{"--port"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			got, err := cmd.Parse(&output, tt.args)
			if tt.wantErr {
				assert.Errorf(t, err, "parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Truef(t, got.Signal.IsSame(tt.want), "parse() = %v, want %v", got.Signal, tt.want)
		})
	}
}

func TestParseAgentArgs(t *testing.T) {
	t.Run("given agent flags when parsed then return agent config", func(t *testing.T) {
		got, err := cmd.Parse(&bytes.Buffer{}, []string{
			"--mode=agent",
			"--relay=ws://relay:7070/ws",
			"--user=u1",
			"--topic=lobby",
			"--ring-timeout=45s",
			"--stun=stun:a:3478,stun:b:3478",
			"--devices=/dev/video0",
			"--no-media",
			"--metrics-port=9191",
			"--debug",
		})
		require.NoError(t, err)

		assert.Equal(t, cmd.ModeAgent, got.Mode)
		assert.True(t, got.Debug)
		assert.Equal(t, "ws://relay:7070/ws", got.Agent.RelayURL)
		assert.Equal(t, "u1", got.Agent.UserID)
		assert.Equal(t, "lobby", got.Agent.Topic)
		assert.Equal(t, 45*time.Second, got.Agent.Notification.RingTimeout)
		assert.Equal(t, notification.DefaultSendTimeout, got.Agent.Notification.SendTimeout)
		assert.Equal(t, []string{"stun:a:3478", "stun:b:3478"}, got.Agent.Media.ICEServers)
		assert.Equal(t, []string{"/dev/video0"}, got.Agent.Capability.Devices)
		assert.True(t, got.Agent.Capability.Disabled)
		assert.Equal(t, 9191, got.Metric.Port)
	})

	t.Run("given no agent flags when parsed then return defaults", func(t *testing.T) {
		got, err := cmd.Parse(&bytes.Buffer{}, []string{"--mode=agent"})
		require.NoError(t, err)

		assert.Equal(t, agent.DefaultRelayURL, got.Agent.RelayURL)
		assert.Equal(t, agent.DefaultTopic, got.Agent.Topic)
		assert.Equal(t, notification.DefaultRingTimeout, got.Agent.Notification.RingTimeout)
		assert.True(t, got.Agent.Capability.Video)
	})

	t.Run("given env file when parsed then flags override it", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), ".env.agent")
		require.NoError(t, os.WriteFile(file, []byte("USER_ID=u7\nRING_TIMEOUT=10s\n"), 0o600))
		t.Setenv("ENV_FILE", file)
		t.Cleanup(func() {
			_ = os.Unsetenv("USER_ID")
			_ = os.Unsetenv("RING_TIMEOUT")
		})

		got, err := cmd.Parse(&bytes.Buffer{}, []string{"--ring-timeout=20s"})
		require.NoError(t, err)

		assert.Equal(t, "u7", got.Agent.UserID)
		assert.Equal(t, 20*time.Second, got.Agent.Notification.RingTimeout)
	})
}

// Helper function to create a temporary file and return its path
func createTempFile() (string, error) {
	tmpFile, err := os.CreateTemp("", "testfile")
	if err != nil {
		return "", err
	}
	if closeErr := tmpFile.Close(); closeErr != nil {
		return "", closeErr
	}
	return tmpFile.Name(), nil
}

// TestSetupConfig tests the SetupConfig function, including handling errors from parse and Config.Validate.
func TestSetupConfig(t *testing.T) {
	keyFile, err := createTempFile()
	require.NoError(t, err)
	certFile, err := createTempFile()
	require.NoError(t, err)

	// Clean up temporary files after the test
	defer func() {
		_ = os.Remove(keyFile)
		_ = os.Remove(certFile)
	}()

	tests := []struct {
		name      string
		args      []string
		expected  signal.Config
		expectErr bool
	}{
		{
			name: "given valid args when setup config then return valid config",
			args: []string{"--port=8080", "--key=" + keyFile, "--cert=" + certFile},
			expected: signal.Config{
				Port:     8080,
				KeyFile:  keyFile,
				CertFile: certFile,
				Topic:    signal.DefaultTopic,
			},
		},
		{
			name: "given no args when setup config then return default config",
			args: []string{},
			expected: signal.Config{
				Port:  signal.DefaultPort,
				Topic: signal.DefaultTopic,
			},
		},
		{
			name:      "given invalid port value when setup config then return error",
			args:      []string{"--port=70000"},
			expectErr: true,
		},
		{
			name:      "given non-existent cert file when setup config then return error",
			args:      []string{"--port=8080", "--key=" + keyFile, "--cert=/non/existent/cert.pem"},
			expectErr: true,
		},
		{
			name:      "given non-existent key file when setup config then return error",
			args:      []string{"--port=8080", "--cert=" + certFile, "--key=/non/existent/key.pem"},
			expectErr: true,
		},
		{
			name:      "given invalid flag format when setup config then return error",
			args:      []string{"--extra"},
			expectErr: true,
		},
		{
			name:      "given empty key file and non-empty cert file when setup config then return error",
			args:      []string{"--port=8080", "--cert=" + certFile},
			expectErr: true,
		},
		{
			name:      "given unknown mode when setup config then return error",
			args:      []string{"--mode=proxy"},
			expectErr: true,
		},
		{
			name:      "given agent mode without user when setup config then return error",
			args:      []string{"--mode=agent"},
			expectErr: true,
		},
		{
			name:      "given agent mode with zero ring timeout when setup config then return error",
			args:      []string{"--mode=agent", "--user=u1", "--ring-timeout=0s"},
			expectErr: true,
		},
		{
			name:     "given agent mode with user when setup config then return valid config",
			args:     []string{"--mode=agent", "--user=u1"},
			expected: signal.Config{Port: signal.DefaultPort, Topic: signal.DefaultTopic},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bytes.NewBuffer(make([]byte, 1024))

			config, err := cmd.SetupConfig(buf, tt.args)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Truef(t, config.Signal.IsSame(tt.expected), "SetupConfig() = %v, expected %v", config.Signal, tt.expected)
		})
	}
}
