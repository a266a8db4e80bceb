package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Codec errors.
var (
	// ErrEmptyMessage is returned for a frame without a leading id byte.
	ErrEmptyMessage = errors.New("empty message")

	// ErrUnknownMessage is returned for a leading id the variant does not
	// define. The frame is discarded; the next snapshot resynchronizes.
	ErrUnknownMessage = errors.New("unknown message id")

	// ErrUnimplementedMessage is returned for ids the variant reserves but no
	// client revision implements. Receiving one indicates a protocol version
	// mismatch and must be reported loudly.
	ErrUnimplementedMessage = errors.New("unimplemented message id")

	// ErrTruncated is returned when a frame ends inside a fixed-size record.
	ErrTruncated = errors.New("truncated record")

	// ErrUnsupportedEffect is returned when encoding an effect mode without a
	// defined payload layout. This is a programmer error.
	ErrUnsupportedEffect = errors.New("unsupported effect mode")

	// ErrUnknownProtocol is returned for a Protocol value outside the known
	// variants.
	ErrUnknownProtocol = errors.New("unknown protocol")

	// ErrInvalidLength is returned when a command frame does not have the
	// exact length of its layout.
	ErrInvalidLength = errors.New("invalid command length")
)

// Encode encodes a command into a single frame.
func Encode(cmd Command) ([]byte, error) {
	return cmd.MarshalBinary()
}

// MarshalBinary implements Command.
func (c SetStripConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2+4+ChannelOrderLen)
	buf[0] = byte(CmdSetStripConfig)
	buf[1] = c.Strip
	binary.BigEndian.PutUint32(buf[2:6], c.PixelCount)
	copy(buf[6:], c.ChannelOrder[:])
	return buf, nil
}

// MarshalBinary implements Command.
func (c SetZoneSize) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 3+4)
	buf[0] = byte(CmdSetZoneSize)
	buf[1] = c.Strip
	buf[2] = c.Zone
	binary.BigEndian.PutUint32(buf[3:7], c.PixelCount)
	return buf, nil
}

// MarshalBinary implements Command.
// Only EffectSingleColor has a payload layout; any other mode returns
// ErrUnsupportedEffect.
func (c SetZoneEffect) MarshalBinary() ([]byte, error) {
	switch c.Mode {
	case EffectSingleColor:
		buf := make([]byte, 4+HSLPayloadLen)
		buf[0] = byte(CmdSetZoneEffect)
		buf[1] = c.Strip
		buf[2] = c.Zone
		buf[3] = byte(c.Mode)
		putFloat32(buf[4:8], c.Color.Hue)
		putFloat32(buf[8:12], c.Color.Saturation)
		putFloat32(buf[12:16], c.Color.Luminance)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEffect, c.Mode)
	}
}

// MarshalBinary implements Command.
func (c SetCoil) MarshalBinary() ([]byte, error) {
	id := BusCmdCoilOff
	if c.On {
		id = BusCmdCoilOn
	}
	return []byte{byte(id), c.Device, c.Coil}, nil
}

// MarshalBinary implements Command.
func (c SetDeviceAddress) MarshalBinary() ([]byte, error) {
	return []byte{byte(BusCmdSetAddress), c.Device, c.Address}, nil
}

// MarshalBinary implements Command.
func (c DeleteDevice) MarshalBinary() ([]byte, error) {
	return []byte{byte(BusCmdDeleteDevice), c.Device}, nil
}

// Decode decodes a device-to-client frame of the given protocol variant.
func Decode(p Protocol, data []byte) (Message, error) {
	switch p {
	case ProtocolLED:
		return DecodeLED(data)
	case ProtocolFieldbus:
		return DecodeFieldbus(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownProtocol, p)
	}
}

// DecodeLED decodes a device-to-client LED frame.
func DecodeLED(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	id := MessageID(data[0])
	switch id {
	case MsgStripSnapshot:
		return decodeStripSnapshot(data[1:])
	case MsgZoneSnapshot, MsgEffectSnapshot:
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrUnimplementedMessage, id, len(data)-1)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, data[0])
	}
}

// DecodeFieldbus decodes a device-to-client fieldbus frame.
func DecodeFieldbus(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	if BusMessageID(data[0]) != BusMsgDeviceSnapshot {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, data[0])
	}
	return decodeDeviceSnapshot(data[1:])
}

func decodeStripSnapshot(payload []byte) (*StripSnapshot, error) {
	if len(payload)%StripRecordLen != 0 {
		return nil, fmt.Errorf("%w: strip snapshot has %d trailing bytes",
			ErrTruncated, len(payload)%StripRecordLen)
	}

	snap := &StripSnapshot{Strips: make([]StripRecord, 0, len(payload)/StripRecordLen)}
	for off := 0; off < len(payload); off += StripRecordLen {
		var rec StripRecord
		rec.PixelCount = binary.BigEndian.Uint32(payload[off : off+4])
		copy(rec.ChannelOrder[:], payload[off+4:off+StripRecordLen])
		snap.Strips = append(snap.Strips, rec)
	}
	return snap, nil
}

func decodeDeviceSnapshot(payload []byte) (*DeviceSnapshot, error) {
	snap := &DeviceSnapshot{}
	off := 0
	for off < len(payload) {
		var rec DeviceRecord
		rec.Present = payload[off] != 0

		need := 3
		if rec.Present {
			need = 4
		}
		if off+need > len(payload) {
			return nil, fmt.Errorf("%w: device slot %d needs %d bytes, %d left",
				ErrTruncated, len(snap.Devices), need, len(payload)-off)
		}

		p := off + 1
		if rec.Present {
			rec.Address = payload[p]
			p++
		}
		rec.Coils = payload[p]
		rec.Inputs = payload[p+1]

		snap.Devices = append(snap.Devices, rec)
		off += need
	}
	return snap, nil
}

// EncodeStripSnapshot encodes a strip snapshot frame (device side).
func EncodeStripSnapshot(snap *StripSnapshot) []byte {
	buf := make([]byte, 1, 1+len(snap.Strips)*StripRecordLen)
	buf[0] = byte(MsgStripSnapshot)
	for _, rec := range snap.Strips {
		buf = binary.BigEndian.AppendUint32(buf, rec.PixelCount)
		buf = append(buf, rec.ChannelOrder[:]...)
	}
	return buf
}

// EncodeDeviceSnapshot encodes a fieldbus device snapshot frame (device side).
func EncodeDeviceSnapshot(snap *DeviceSnapshot) []byte {
	buf := make([]byte, 1, 1+len(snap.Devices)*4)
	buf[0] = byte(BusMsgDeviceSnapshot)
	for _, rec := range snap.Devices {
		if rec.Present {
			buf = append(buf, 1, rec.Address)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, rec.Coils, rec.Inputs)
	}
	return buf
}

// DecodeCommand decodes a client-to-device frame (device side).
func DecodeCommand(p Protocol, data []byte) (Command, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	switch p {
	case ProtocolLED:
		return decodeLEDCommand(data)
	case ProtocolFieldbus:
		return decodeBusCommand(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownProtocol, p)
	}
}

func decodeLEDCommand(data []byte) (Command, error) {
	id := CommandID(data[0])
	switch id {
	case CmdSetStripConfig:
		if err := expectLen(id.String(), data, 2+4+ChannelOrderLen); err != nil {
			return nil, err
		}
		c := SetStripConfig{
			Strip:      data[1],
			PixelCount: binary.BigEndian.Uint32(data[2:6]),
		}
		copy(c.ChannelOrder[:], data[6:9])
		return c, nil

	case CmdSetZoneSize:
		if err := expectLen(id.String(), data, 3+4); err != nil {
			return nil, err
		}
		return SetZoneSize{
			Strip:      data[1],
			Zone:       data[2],
			PixelCount: binary.BigEndian.Uint32(data[3:7]),
		}, nil

	case CmdSetZoneEffect:
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: %s header", ErrTruncated, id)
		}
		c := SetZoneEffect{Strip: data[1], Zone: data[2], Mode: EffectMode(data[3])}
		if c.Mode != EffectSingleColor {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEffect, c.Mode)
		}
		if err := expectLen(id.String(), data, 4+HSLPayloadLen); err != nil {
			return nil, err
		}
		c.Color = HSL{
			Hue:        getFloat32(data[4:8]),
			Saturation: getFloat32(data[8:12]),
			Luminance:  getFloat32(data[12:16]),
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%w: command %d", ErrUnknownMessage, data[0])
	}
}

func decodeBusCommand(data []byte) (Command, error) {
	id := BusCommandID(data[0])
	switch id {
	case BusCmdCoilOn, BusCmdCoilOff:
		if err := expectLen(id.String(), data, 3); err != nil {
			return nil, err
		}
		return SetCoil{Device: data[1], Coil: data[2], On: id == BusCmdCoilOn}, nil

	case BusCmdSetAddress:
		if err := expectLen(id.String(), data, 3); err != nil {
			return nil, err
		}
		return SetDeviceAddress{Device: data[1], Address: data[2]}, nil

	case BusCmdDeleteDevice:
		if err := expectLen(id.String(), data, 2); err != nil {
			return nil, err
		}
		return DeleteDevice{Device: data[1]}, nil

	default:
		return nil, fmt.Errorf("%w: command %d", ErrUnknownMessage, data[0])
	}
}

func expectLen(name string, data []byte, n int) error {
	if len(data) != n {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrInvalidLength, name, len(data), n)
	}
	return nil
}

func putFloat32(b []byte, f float32) {
	binary.BigEndian.PutUint32(b, math.Float32bits(f))
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}
