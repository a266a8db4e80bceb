package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mled-io/mled-go/pkg/wire"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mled.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 90*time.Millisecond, cfg.ThrottleInterval)
	assert.Equal(t, wire.ProtocolLED, cfg.WireProtocol())
	assert.Equal(t, "", cfg.ControllerURL())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
controller: 192.168.4.1
protocol: fieldbus
throttle_interval: 150ms
protocol_log: captures/session.mlog
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://192.168.4.1/ws", cfg.ControllerURL())
	assert.Equal(t, wire.ProtocolFieldbus, cfg.WireProtocol())
	assert.Equal(t, 150*time.Millisecond, cfg.ThrottleInterval)
	assert.Equal(t, time.Second, cfg.ReconnectDelay, "unset keys keep defaults")
	assert.Equal(t, "captures/session.mlog", cfg.ProtocolLog)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad protocol", "protocol: dmx\n"},
		{"bad level", "log_level: loud\n"},
		{"zero delay", "reconnect_delay: 0s\n"},
		{"negative throttle", "throttle_interval: -1s\n"},
		{"bad yaml", "controller: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeConfig(t, "protocol: dmx\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"":                       "",
		"192.168.4.1":            "ws://192.168.4.1/ws",
		"led.local:8080":         "ws://led.local:8080/ws",
		"led.local/":             "ws://led.local/ws",
		"http://192.168.4.1/":    "ws://192.168.4.1/ws",
		"ws://10.0.0.5/ws":       "ws://10.0.0.5/ws",
		"wss://example.org/ctrl": "wss://example.org/ctrl",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}
