package wire

// Command is a client-to-device record that can be encoded into one frame.
type Command interface {
	// Protocol returns the variant the command belongs to.
	Protocol() Protocol

	// MarshalBinary encodes the command including its leading id byte.
	MarshalBinary() ([]byte, error)
}

// Message is a decoded device-to-client frame.
type Message interface {
	// Protocol returns the variant the message belongs to.
	Protocol() Protocol
}

// Record sizes.
const (
	// ChannelOrderLen is the length of the ASCII channel order field.
	ChannelOrderLen = 3

	// StripRecordLen is the size of one strip snapshot record.
	StripRecordLen = 4 + ChannelOrderLen

	// HSLPayloadLen is the size of a single-colour effect payload.
	HSLPayloadLen = 3 * 4
)

// SetStripConfig sets the pixel count and channel order of a strip.
type SetStripConfig struct {
	Strip        uint8
	PixelCount   uint32
	ChannelOrder [ChannelOrderLen]byte
}

// Protocol implements Command.
func (SetStripConfig) Protocol() Protocol { return ProtocolLED }

// SetZoneSize sets the pixel count of a zone.
type SetZoneSize struct {
	Strip      uint8
	Zone       uint8
	PixelCount uint32
}

// Protocol implements Command.
func (SetZoneSize) Protocol() Protocol { return ProtocolLED }

// HSL is a colour in hue (radians), saturation and luminance.
type HSL struct {
	Hue        float32
	Saturation float32
	Luminance  float32
}

// SetZoneEffect sets the effect of a zone. Only the payload matching Mode is
// encoded.
type SetZoneEffect struct {
	Strip uint8
	Zone  uint8
	Mode  EffectMode

	// Color is the payload of EffectSingleColor.
	Color HSL
}

// Protocol implements Command.
func (SetZoneEffect) Protocol() Protocol { return ProtocolLED }

// SetCoil switches one coil of a fieldbus device. On selects between the
// CoilOn and CoilOff command ids.
type SetCoil struct {
	Device uint8
	Coil   uint8
	On     bool
}

// Protocol implements Command.
func (SetCoil) Protocol() Protocol { return ProtocolFieldbus }

// SetDeviceAddress changes the bus address of a fieldbus device.
type SetDeviceAddress struct {
	Device  uint8
	Address uint8
}

// Protocol implements Command.
func (SetDeviceAddress) Protocol() Protocol { return ProtocolFieldbus }

// DeleteDevice removes a fieldbus device slot.
type DeleteDevice struct {
	Device uint8
}

// Protocol implements Command.
func (DeleteDevice) Protocol() Protocol { return ProtocolFieldbus }

// StripRecord is one strip entry of a strip snapshot.
type StripRecord struct {
	PixelCount   uint32
	ChannelOrder [ChannelOrderLen]byte
}

// StripSnapshot is the full strip configuration of a device, one record per
// strip in ordinal order.
type StripSnapshot struct {
	Strips []StripRecord
}

// Protocol implements Message.
func (*StripSnapshot) Protocol() Protocol { return ProtocolLED }

// DeviceRecord is one slot of a fieldbus device snapshot. Address is only
// meaningful when Present is set.
type DeviceRecord struct {
	Present bool
	Address uint8
	Coils   uint8
	Inputs  uint8
}

// DeviceSnapshot is the status of every fieldbus device slot in ordinal order.
type DeviceSnapshot struct {
	Devices []DeviceRecord
}

// Protocol implements Message.
func (*DeviceSnapshot) Protocol() Protocol { return ProtocolFieldbus }

// OrderBytes converts a channel order string into its wire field. Shorter
// strings are padded with spaces, longer ones truncated; validation is the
// caller's job.
func OrderBytes(s string) [ChannelOrderLen]byte {
	var b [ChannelOrderLen]byte
	for i := range b {
		if i < len(s) {
			b[i] = s[i]
		} else {
			b[i] = ' '
		}
	}
	return b
}
