package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mled-io/mled-go/pkg/wire"
)

// fileConfig is the YAML layout of a simulator configuration file.
type fileConfig struct {
	Protocol string        `yaml:"protocol"`
	Strips   []StripConfig `yaml:"strips"`
	Slots    []SlotConfig  `yaml:"slots"`
}

// LoadConfig reads a simulator configuration file. Sections missing from
// the file keep the DefaultConfig values of its protocol.
//
//	protocol: led
//	strips:
//	  - pixels: 144
//	    order: GRB
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read simulator config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML simulator configuration.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse simulator config: %w", err)
	}

	p, err := wire.ParseProtocol(fc.Protocol)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig(p)
	if len(fc.Strips) > 0 {
		cfg.Strips = fc.Strips
	}
	if len(fc.Slots) > 0 {
		if len(fc.Slots) > DefaultDeviceSlots {
			return Config{}, fmt.Errorf("simulator config: %d slots, at most %d", len(fc.Slots), DefaultDeviceSlots)
		}
		cfg.Slots = fc.Slots
	}
	return cfg, nil
}
