package model

import (
	"fmt"

	"github.com/mled-io/mled-go/pkg/wire"
)

// MaxZones is the number of zones addressable by the one-byte zone index.
const MaxZones = 256

// Effect is a zone's effect mode and its mode-specific configuration.
type Effect struct {
	Mode wire.EffectMode

	// Color is the configuration of wire.EffectSingleColor.
	Color wire.HSL
}

// DefaultEffect returns the effect of a freshly created zone.
func DefaultEffect() Effect {
	return Effect{
		Mode:  wire.EffectSingleColor,
		Color: wire.HSL{Hue: 0, Saturation: 1, Luminance: 0.2},
	}
}

// Strip is one addressable LED strip and its zone allocation.
type Strip struct {
	// ID is the strip's ordinal position in the device snapshot.
	ID int

	// PixelCount is the total number of addressable pixels.
	PixelCount uint32

	// ChannelOrder is the colour channel permutation, e.g. "GRB".
	ChannelOrder string

	// UsedPixels is the sum of all zone pixel counts.
	UsedPixels uint32

	// Zones in index order.
	Zones []*Zone

	State SyncState
}

// NewStrip creates a strip without zones. An invalid channel order is
// replaced by DefaultChannelOrder.
func NewStrip(id int, pixelCount uint32, channelOrder string) *Strip {
	return &Strip{
		ID:           id,
		PixelCount:   pixelCount,
		ChannelOrder: NormalizeChannelOrder(channelOrder),
	}
}

// Remaining returns the number of pixels not allocated to any zone.
func (s *Strip) Remaining() uint32 {
	return s.PixelCount - s.UsedPixels
}

// CanCreateZone reports whether the create affordance should be shown. It is
// hidden while the budget is exhausted or the tail zone awaits removal.
func (s *Strip) CanCreateZone() bool {
	if last := s.LastZone(); last != nil && last.State == PendingDelete {
		return false
	}
	return s.Remaining() > 0 && len(s.Zones) < MaxZones
}

// CanDeleteZone reports whether the zone at index may be deleted. Only the
// last zone can be deleted, and only once.
func (s *Strip) CanDeleteZone(index int) bool {
	z := s.Zone(index)
	return z != nil && index == len(s.Zones)-1 && z.State != PendingDelete
}

// Zone returns the zone at index, or nil.
func (s *Strip) Zone(index int) *Zone {
	if index < 0 || index >= len(s.Zones) {
		return nil
	}
	return s.Zones[index]
}

// LastZone returns the tail zone, or nil if the strip has no zones.
func (s *Strip) LastZone() *Zone {
	return s.Zone(len(s.Zones) - 1)
}

// CreateZone appends a one-pixel zone with the default effect.
//
// Calling CreateZone when CanCreateZone is false violates the caller
// contract and panics.
func (s *Strip) CreateZone() *Zone {
	if !s.CanCreateZone() {
		panic(fmt.Sprintf("model: CreateZone on strip %d with %d pixels remaining and %d zones",
			s.ID, s.Remaining(), len(s.Zones)))
	}

	z := &Zone{
		ID:         len(s.Zones),
		StripID:    s.ID,
		PixelCount: 1,
		Effect:     DefaultEffect(),
		strip:      s,
	}
	s.Zones = append(s.Zones, z)
	s.UsedPixels++
	return z
}

// DeleteLastZone removes the tail zone and returns its pixels to the budget.
// Returns the removed zone, or nil if there was none.
func (s *Strip) DeleteLastZone() *Zone {
	z := s.LastZone()
	if z == nil {
		return nil
	}

	s.Zones = s.Zones[:len(s.Zones)-1]
	s.UsedPixels -= z.PixelCount
	z.strip = nil
	return z
}

// SetPixelCount sets the strip size, clamped so it never falls below the
// pixels already allocated to zones. Returns the stored value.
func (s *Strip) SetPixelCount(n uint32) uint32 {
	if n < s.UsedPixels {
		n = s.UsedPixels
	}
	s.PixelCount = n
	return n
}

// SetChannelOrder stores the channel order, substituting DefaultChannelOrder
// for anything that is not a permutation of R, G and B. Returns the stored
// value.
func (s *Strip) SetChannelOrder(order string) string {
	s.ChannelOrder = NormalizeChannelOrder(order)
	return s.ChannelOrder
}

// MaxZoneSize returns the largest legal pixel count for z.
func (s *Strip) MaxZoneSize(z *Zone) uint32 {
	return s.PixelCount - s.UsedPixels + z.PixelCount
}

// TrimToFit removes pixels from the tail until UsedPixels fits PixelCount.
// The last zone is shrunk first; zones that would fall below one pixel are
// dropped. Returns the dropped zones in removal order.
//
// Used when a device snapshot shrinks a strip below its local allocation.
func (s *Strip) TrimToFit() []*Zone {
	var dropped []*Zone
	for s.UsedPixels > s.PixelCount {
		z := s.LastZone()
		excess := s.UsedPixels - s.PixelCount
		if z.PixelCount > excess {
			z.SetPixelCount(z.PixelCount - excess)
			break
		}
		dropped = append(dropped, s.DeleteLastZone())
	}
	return dropped
}

// Confirm marks the strip and all zones not pending deletion as confirmed.
func (s *Strip) Confirm() {
	s.State = Confirmed
	for _, z := range s.Zones {
		if z.State != PendingDelete {
			z.State = Confirmed
		}
	}
}

// Zone is a contiguous sub-allocation of a strip.
type Zone struct {
	// ID is the zone's index within its strip.
	ID int

	StripID    int
	PixelCount uint32
	Effect     Effect
	State      SyncState

	strip *Strip
}

// Strip returns the parent strip, or nil once the zone has been removed.
func (z *Zone) Strip() *Strip {
	return z.strip
}

// SetPixelCount sets the zone size and adjusts the parent's UsedPixels by the
// delta. It does not clamp; see ClampZoneSize.
func (z *Zone) SetPixelCount(n uint32) {
	if z.strip != nil {
		z.strip.UsedPixels = z.strip.UsedPixels - z.PixelCount + n
	}
	z.PixelCount = n
}

// ClampZoneSize clamps a requested zone size to [1, s.MaxZoneSize(z)].
func ClampZoneSize(s *Strip, z *Zone, n uint32) uint32 {
	if n < 1 {
		return 1
	}
	if limit := s.MaxZoneSize(z); n > limit {
		return limit
	}
	return n
}
