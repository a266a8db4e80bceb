// Package config loads mled-ctl settings from a YAML file. Command-line
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mled-io/mled-go/pkg/connection"
	"github.com/mled-io/mled-go/pkg/throttle"
	"github.com/mled-io/mled-go/pkg/transport"
	"github.com/mled-io/mled-go/pkg/wire"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config holds client settings.
type Config struct {
	// Controller is a host[:port] or a full ws:// URL. Empty means
	// discover or use the last controller from the state file.
	Controller string `yaml:"controller"`

	// Protocol is "led" or "fieldbus".
	Protocol string `yaml:"protocol"`

	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	ThrottleInterval time.Duration `yaml:"throttle_interval"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`

	// ProtocolLog is a .mlog capture file path (optional).
	ProtocolLog string `yaml:"protocol_log"`

	// ProtocolDB is a SQLite capture database path (optional).
	ProtocolDB string `yaml:"protocol_db"`

	// StateDir holds the client state file (optional).
	StateDir string `yaml:"state_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Protocol:         wire.ProtocolLED.String(),
		ReconnectDelay:   connection.ReconnectDelay,
		ThrottleInterval: throttle.DefaultInterval,
		DiscoveryTimeout: 3 * time.Second,
		PingInterval:     transport.DefaultPingInterval,
		LogLevel:         "info",
	}
}

// Load reads path over Default. A missing path is an error; an empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := wire.ParseProtocol(c.Protocol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: reconnect_delay must be positive", ErrInvalid)
	}
	if c.ThrottleInterval <= 0 {
		return fmt.Errorf("%w: throttle_interval must be positive", ErrInvalid)
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("%w: discovery_timeout must be positive", ErrInvalid)
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("%w: ping_interval must not be negative", ErrInvalid)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q (use: debug, info, warn, error)", ErrInvalid, c.LogLevel)
	}
	return nil
}

// WireProtocol returns the parsed protocol. Call Validate first.
func (c Config) WireProtocol() wire.Protocol {
	p, _ := wire.ParseProtocol(c.Protocol)
	return p
}

// ControllerURL returns the websocket URL for Controller, or "" if unset.
func (c Config) ControllerURL() string {
	return NormalizeURL(c.Controller)
}

// NormalizeURL turns a host[:port] into a controller websocket URL and
// passes ws:// and wss:// URLs through.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "ws://"), strings.HasPrefix(s, "wss://"):
		return s
	case strings.HasPrefix(s, "http://"):
		return "ws://" + strings.TrimSuffix(strings.TrimPrefix(s, "http://"), "/") + transport.DefaultPath
	default:
		return transport.ControllerURL(strings.TrimSuffix(s, "/"))
	}
}
