package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mled-io/mled-go/pkg/model"
	"github.com/mled-io/mled-go/pkg/wire"
)

// DefaultDeviceSlots is the number of fieldbus slots reported by a
// simulator.
const DefaultDeviceSlots = 8

// ErrIgnored is returned for a well-formed command that addresses a strip,
// zone or slot the simulator does not have.
var ErrIgnored = errors.New("command ignored")

// StripConfig is the initial configuration of one simulated strip.
type StripConfig struct {
	PixelCount   uint32 `yaml:"pixels"`
	ChannelOrder string `yaml:"order"`
}

// SlotConfig is the initial configuration of one simulated fieldbus slot.
type SlotConfig struct {
	Present bool  `yaml:"present"`
	Address uint8 `yaml:"address"`
	Coils   uint8 `yaml:"coils"`
	Inputs  uint8 `yaml:"inputs"`
}

// Config configures a Simulator.
type Config struct {
	// Protocol selects the wire variant.
	Protocol wire.Protocol

	// Strips is the initial strip configuration (LED variant).
	Strips []StripConfig

	// Slots is the initial slot configuration (fieldbus variant). Missing
	// slots up to DefaultDeviceSlots are empty.
	Slots []SlotConfig

	// Logger for operational logging (optional).
	Logger *slog.Logger
}

// DefaultConfig returns a configuration with two strips, or three present
// fieldbus devices, depending on the protocol.
func DefaultConfig(p wire.Protocol) Config {
	return Config{
		Protocol: p,
		Strips: []StripConfig{
			{PixelCount: 144, ChannelOrder: "GRB"},
			{PixelCount: 60, ChannelOrder: "RGB"},
		},
		Slots: []SlotConfig{
			{Present: true, Address: 0x01},
			{Present: true, Address: 0x02, Inputs: 0x03},
			{},
			{Present: true, Address: 0x0A, Coils: 0x81},
		},
	}
}

// Simulator holds the simulated controller state. It is safe for
// concurrent use.
type Simulator struct {
	protocol wire.Protocol
	logger   *slog.Logger

	mu   sync.Mutex
	reg  *model.Registry
	tick uint
}

// New creates a simulator from config.
func New(config Config) *Simulator {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Simulator{
		protocol: config.Protocol,
		logger:   logger,
		reg:      model.NewRegistry(),
	}

	for _, sc := range config.Strips {
		st := s.reg.AddStrip(sc.PixelCount, sc.ChannelOrder)
		st.State = model.Confirmed
	}

	slots := len(config.Slots)
	if slots < DefaultDeviceSlots {
		slots = DefaultDeviceSlots
	}
	for i := 0; i < slots; i++ {
		d := s.reg.PutDevice(i)
		if i < len(config.Slots) {
			sc := config.Slots[i]
			d.Present = sc.Present
			d.Address = sc.Address
			d.Coils = sc.Coils
			d.Inputs = sc.Inputs
		}
	}

	return s
}

// Protocol returns the simulated wire variant.
func (s *Simulator) Protocol() wire.Protocol {
	return s.protocol
}

// Snapshot encodes the full configuration for the simulated variant.
func (s *Simulator) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Simulator) snapshotLocked() []byte {
	if s.protocol == wire.ProtocolFieldbus {
		snap := &wire.DeviceSnapshot{Devices: make([]wire.DeviceRecord, 0, s.reg.DeviceSlots())}
		for _, d := range s.reg.Devices() {
			snap.Devices = append(snap.Devices, wire.DeviceRecord{
				Present: d.Present,
				Address: d.Address,
				Coils:   d.Coils,
				Inputs:  d.Inputs,
			})
		}
		return wire.EncodeDeviceSnapshot(snap)
	}

	snap := &wire.StripSnapshot{Strips: make([]wire.StripRecord, 0, s.reg.StripCount())}
	for _, st := range s.reg.Strips() {
		snap.Strips = append(snap.Strips, wire.StripRecord{
			PixelCount:   st.PixelCount,
			ChannelOrder: wire.OrderBytes(st.ChannelOrder),
		})
	}
	return wire.EncodeStripSnapshot(snap)
}

// Apply decodes and applies one client frame. It returns the snapshot to
// broadcast, which is nil when the frame was rejected.
func (s *Simulator) Apply(data []byte) ([]byte, error) {
	cmd, err := wire.DecodeCommand(s.protocol, data)
	if err != nil {
		s.logger.Warn("rejected frame", "size", len(data), "error", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyLocked(cmd); err != nil {
		s.logger.Warn("rejected command", "command", fmt.Sprintf("%+v", cmd), "error", err)
		return nil, err
	}
	s.logger.Debug("applied command", "command", fmt.Sprintf("%+v", cmd))
	return s.snapshotLocked(), nil
}

func (s *Simulator) applyLocked(cmd wire.Command) error {
	switch c := cmd.(type) {
	case wire.SetStripConfig:
		st := s.reg.Strip(int(c.Strip))
		if st == nil {
			return fmt.Errorf("%w: strip %d", ErrIgnored, c.Strip)
		}
		st.PixelCount = c.PixelCount
		st.SetChannelOrder(string(c.ChannelOrder[:]))
		st.TrimToFit()
		return nil

	case wire.SetZoneSize:
		return s.setZoneSize(c)

	case wire.SetZoneEffect:
		st := s.reg.Strip(int(c.Strip))
		if st == nil || st.Zone(int(c.Zone)) == nil {
			return fmt.Errorf("%w: zone %d.%d", ErrIgnored, c.Strip, c.Zone)
		}
		st.Zone(int(c.Zone)).Effect = model.Effect{Mode: c.Mode, Color: c.Color}
		return nil

	case wire.SetCoil:
		d := s.presentDevice(c.Device)
		if d == nil {
			return fmt.Errorf("%w: device %d", ErrIgnored, c.Device)
		}
		if int(c.Coil) >= model.NumCoils {
			return fmt.Errorf("%w: coil %d", ErrIgnored, c.Coil)
		}
		d.SetCoil(int(c.Coil), c.On)
		return nil

	case wire.SetDeviceAddress:
		d := s.presentDevice(c.Device)
		if d == nil {
			return fmt.Errorf("%w: device %d", ErrIgnored, c.Device)
		}
		d.Address = c.Address
		return nil

	case wire.DeleteDevice:
		d := s.presentDevice(c.Device)
		if d == nil {
			return fmt.Errorf("%w: device %d", ErrIgnored, c.Device)
		}
		*d = model.FieldDevice{ID: d.ID}
		return nil

	default:
		return fmt.Errorf("%w: %T", ErrIgnored, cmd)
	}
}

// setZoneSize resizes, appends or (with size 0) removes a zone. Only the
// next free index can be appended and only the last zone removed.
func (s *Simulator) setZoneSize(c wire.SetZoneSize) error {
	st := s.reg.Strip(int(c.Strip))
	if st == nil {
		return fmt.Errorf("%w: strip %d", ErrIgnored, c.Strip)
	}
	idx := int(c.Zone)

	if c.PixelCount == 0 {
		if idx != len(st.Zones)-1 {
			return fmt.Errorf("%w: delete of zone %d.%d", ErrIgnored, c.Strip, c.Zone)
		}
		st.DeleteLastZone()
		return nil
	}

	z := st.Zone(idx)
	if z == nil {
		if idx != len(st.Zones) || !st.CanCreateZone() {
			return fmt.Errorf("%w: create of zone %d.%d", ErrIgnored, c.Strip, c.Zone)
		}
		z = st.CreateZone()
	}
	z.SetPixelCount(model.ClampZoneSize(st, z, c.PixelCount))
	z.State = model.Confirmed
	return nil
}

func (s *Simulator) presentDevice(id uint8) *model.FieldDevice {
	d := s.reg.Device(int(id))
	if d == nil || !d.Present {
		return nil
	}
	return d
}

// Zones returns the zone sizes of strip id, or nil for an unknown strip.
func (s *Simulator) Zones(id int) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.reg.Strip(id)
	if st == nil {
		return nil
	}
	sizes := make([]uint32, len(st.Zones))
	for i, z := range st.Zones {
		sizes[i] = z.PixelCount
	}
	return sizes
}

// ZoneEffect returns the effect of zone (strip, zone).
func (s *Simulator) ZoneEffect(strip, zone int) (model.Effect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.reg.Strip(strip)
	if st == nil || st.Zone(zone) == nil {
		return model.Effect{}, false
	}
	return st.Zone(zone).Effect, true
}

// Device returns a copy of fieldbus slot id.
func (s *Simulator) Device(id int) (model.FieldDevice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.reg.Device(id)
	if d == nil {
		return model.FieldDevice{}, false
	}
	return *d, true
}

// Step advances the simulation by one tick. In the fieldbus variant it
// toggles one input of the next present device, walking slots and inputs
// round-robin, and returns the new snapshot. The LED variant has no sensed
// state; Step returns nil.
func (s *Simulator) Step() []byte {
	if s.protocol != wire.ProtocolFieldbus {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots := s.reg.DeviceSlots()
	for i := 0; i < slots; i++ {
		t := s.tick
		s.tick++
		d := s.reg.Device(int(t/model.NumCoils) % slots)
		if d == nil || !d.Present {
			s.tick += model.NumCoils - 1 - t%model.NumCoils
			continue
		}
		d.Inputs ^= 1 << (t % model.NumCoils)
		return s.snapshotLocked()
	}
	return nil
}
