package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkBudget(t *testing.T, s *Strip) {
	t.Helper()
	var sum uint32
	for i, z := range s.Zones {
		assert.Equal(t, i, z.ID, "zone ids must be dense")
		sum += z.PixelCount
	}
	assert.Equal(t, sum, s.UsedPixels, "UsedPixels must equal sum of zones")
	assert.LessOrEqual(t, s.UsedPixels, s.PixelCount, "UsedPixels must fit PixelCount")
}

func TestCreateZone(t *testing.T) {
	s := NewStrip(0, 3, "GRB")

	z := s.CreateZone()
	assert.Equal(t, 0, z.ID)
	assert.Equal(t, uint32(1), z.PixelCount)
	assert.Equal(t, s, z.Strip())
	assert.Equal(t, uint32(2), s.Remaining())
	checkBudget(t, s)

	s.CreateZone()
	s.CreateZone()
	assert.Equal(t, uint32(0), s.Remaining())
	assert.False(t, s.CanCreateZone())
	checkBudget(t, s)

	assert.Panics(t, func() { s.CreateZone() })
}

func TestDeleteLastZone(t *testing.T) {
	s := NewStrip(0, 10, "RGB")
	s.CreateZone().SetPixelCount(4)
	s.CreateZone().SetPixelCount(3)

	z := s.DeleteLastZone()
	require.NotNil(t, z)
	assert.Equal(t, 1, z.ID)
	assert.Nil(t, z.Strip())
	assert.Equal(t, uint32(4), s.UsedPixels)
	checkBudget(t, s)

	s.DeleteLastZone()
	assert.Nil(t, s.DeleteLastZone())
	assert.Equal(t, uint32(0), s.UsedPixels)
}

func TestDeleteAffordance(t *testing.T) {
	s := NewStrip(0, 10, "RGB")
	assert.False(t, s.CanDeleteZone(0))

	s.CreateZone()
	s.CreateZone()
	assert.False(t, s.CanDeleteZone(0))
	assert.True(t, s.CanDeleteZone(1))
	assert.False(t, s.CanDeleteZone(2))

	s.Zones[1].State = PendingDelete
	assert.False(t, s.CanDeleteZone(1))
	assert.False(t, s.CanCreateZone(), "create hidden while tail awaits removal")
}

func TestStripSetPixelCountClampsToUsed(t *testing.T) {
	s := NewStrip(0, 100, "RGB")
	s.CreateZone().SetPixelCount(30)
	s.CreateZone().SetPixelCount(20)

	assert.Equal(t, uint32(50), s.SetPixelCount(10))
	assert.Equal(t, uint32(50), s.PixelCount)
	assert.Equal(t, uint32(80), s.SetPixelCount(80))
	checkBudget(t, s)
}

func TestClampZoneSize(t *testing.T) {
	// pixelCount 10, zones using 7, target zone currently 2
	s := NewStrip(0, 10, "RGB")
	s.CreateZone().SetPixelCount(5)
	target := s.CreateZone()
	target.SetPixelCount(2)
	require.Equal(t, uint32(7), s.UsedPixels)

	assert.Equal(t, uint32(5), ClampZoneSize(s, target, 20))
	assert.Equal(t, uint32(1), ClampZoneSize(s, target, 0))
	assert.Equal(t, uint32(4), ClampZoneSize(s, target, 4))
	assert.Equal(t, uint32(5), s.MaxZoneSize(target))
}

func TestBudgetInvariantRandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewStrip(0, 64, "RGB")

	for i := 0; i < 2000; i++ {
		switch rng.Intn(4) {
		case 0:
			if s.CanCreateZone() {
				s.CreateZone()
			}
		case 1:
			s.DeleteLastZone()
		case 2:
			if z := s.Zone(rng.Intn(len(s.Zones) + 1)); z != nil {
				z.SetPixelCount(ClampZoneSize(s, z, uint32(rng.Intn(80))))
			}
		case 3:
			s.SetPixelCount(uint32(rng.Intn(128)))
		}
		checkBudget(t, s)
	}
}

func TestTrimToFit(t *testing.T) {
	t.Run("shrinks last zone", func(t *testing.T) {
		s := NewStrip(0, 20, "RGB")
		s.CreateZone().SetPixelCount(10)
		s.CreateZone().SetPixelCount(8)

		s.PixelCount = 15
		dropped := s.TrimToFit()
		assert.Empty(t, dropped)
		assert.Equal(t, uint32(5), s.Zones[1].PixelCount)
		checkBudget(t, s)
	})

	t.Run("drops tail zones", func(t *testing.T) {
		s := NewStrip(0, 20, "RGB")
		s.CreateZone().SetPixelCount(10)
		s.CreateZone().SetPixelCount(4)
		s.CreateZone().SetPixelCount(4)

		s.PixelCount = 9
		dropped := s.TrimToFit()
		require.Len(t, dropped, 2)
		assert.Equal(t, 2, dropped[0].ID)
		assert.Equal(t, 1, dropped[1].ID)
		require.Len(t, s.Zones, 1)
		assert.Equal(t, uint32(9), s.Zones[0].PixelCount)
		checkBudget(t, s)
	})

	t.Run("drops everything", func(t *testing.T) {
		s := NewStrip(0, 5, "RGB")
		s.CreateZone().SetPixelCount(5)

		s.PixelCount = 0
		assert.Len(t, s.TrimToFit(), 1)
		assert.Empty(t, s.Zones)
		checkBudget(t, s)
	})
}

func TestChannelOrder(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GBR", "GBR"},
		{"RGB", "RGB"},
		{"BRG", "BRG"},
		{"RRB", "RGB"},
		{"rgb", "RGB"},
		{"RG", "RGB"},
		{"RGBW", "RGB"},
		{"", "RGB"},
		{"R B", "RGB"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s := NewStrip(0, 1, "RGB")
			assert.Equal(t, tt.want, s.SetChannelOrder(tt.in))
			assert.True(t, ValidChannelOrder(s.ChannelOrder))
		})
	}
}

func TestSanitizers(t *testing.T) {
	assert.Equal(t, "GBR", SanitizeChannelOrder("g-b-r-x"))
	assert.Equal(t, "RRB", SanitizeChannelOrder("rrbg"))
	assert.Equal(t, "", SanitizeChannelOrder("xyz"))

	assert.Equal(t, "144", SanitizeDigits("144"))
	assert.Equal(t, "123", SanitizeDigits("1a2b3c4"))
	assert.Equal(t, "", SanitizeDigits("-"))
}

func TestConfirm(t *testing.T) {
	s := NewStrip(0, 10, "RGB")
	s.State = Pending
	a := s.CreateZone()
	a.State = Pending
	b := s.CreateZone()
	b.State = PendingDelete

	s.Confirm()
	assert.Equal(t, Confirmed, s.State)
	assert.Equal(t, Confirmed, a.State)
	assert.Equal(t, PendingDelete, b.State)
}

func TestFieldDeviceCoils(t *testing.T) {
	d := &FieldDevice{Coils: 0x05, Inputs: 0x80, Address: 0x0A}

	assert.True(t, d.Coil(0))
	assert.False(t, d.Coil(1))
	assert.True(t, d.Coil(2))
	assert.False(t, d.Coil(8))
	assert.True(t, d.Input(7))
	assert.False(t, d.Input(-1))

	d.SetCoil(1, true)
	d.SetCoil(0, false)
	d.SetCoil(9, true)
	assert.Equal(t, uint8(0x06), d.Coils)

	assert.Equal(t, "0A", d.AddressHex())
	d.Address = 0xFF
	assert.Equal(t, "FF", d.AddressHex())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	s0 := r.AddStrip(10, "GRB")
	s1 := r.AddStrip(20, "bad")
	assert.Equal(t, 0, s0.ID)
	assert.Equal(t, 1, s1.ID)
	assert.Equal(t, "RGB", s1.ChannelOrder)
	assert.Equal(t, 2, r.StripCount())
	assert.Same(t, s1, r.Strip(1))
	assert.Nil(t, r.Strip(2))

	d := r.PutDevice(2)
	assert.Equal(t, 3, r.DeviceSlots())
	assert.Nil(t, r.Device(0))
	assert.Same(t, d, r.Device(2))

	assert.True(t, r.RemoveDevice(2))
	assert.False(t, r.RemoveDevice(2))
	assert.Nil(t, r.Device(2))
	assert.Equal(t, 3, r.DeviceSlots())

	r.Reset()
	assert.Equal(t, 0, r.StripCount())
	assert.Equal(t, 0, r.DeviceSlots())
}

func TestSyncStateString(t *testing.T) {
	assert.Equal(t, "CONFIRMED", Confirmed.String())
	assert.Equal(t, "PENDING", Pending.String())
	assert.Equal(t, "PENDING_DELETE", PendingDelete.String())
	assert.Equal(t, "UNKNOWN", SyncState(9).String())
}
