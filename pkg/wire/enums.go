package wire

import (
	"fmt"
	"strings"
)

// Protocol selects which wire variant a frame belongs to.
type Protocol uint8

const (
	// ProtocolLED is the addressable LED strip variant.
	ProtocolLED Protocol = iota

	// ProtocolFieldbus is the fieldbus coil/input variant.
	ProtocolFieldbus
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolLED:
		return "led"
	case ProtocolFieldbus:
		return "fieldbus"
	default:
		return "unknown"
	}
}

// ParseProtocol parses a protocol name as accepted on the command line.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "led", "":
		return ProtocolLED, nil
	case "fieldbus", "bus":
		return ProtocolFieldbus, nil
	default:
		return 0, fmt.Errorf("unknown protocol: %s (use: led, fieldbus)", s)
	}
}

// CommandID is the leading byte of a client-to-device LED command.
type CommandID uint8

const (
	CmdSetStripConfig CommandID = 0
	CmdSetZoneSize    CommandID = 1
	CmdSetZoneEffect  CommandID = 2
)

// String returns the command name.
func (c CommandID) String() string {
	switch c {
	case CmdSetStripConfig:
		return "SET_STRIP_CONFIG"
	case CmdSetZoneSize:
		return "SET_ZONE_SIZE"
	case CmdSetZoneEffect:
		return "SET_ZONE_EFFECT"
	default:
		return fmt.Sprintf("COMMAND(%d)", uint8(c))
	}
}

// BusCommandID is the leading byte of a client-to-device fieldbus command.
type BusCommandID uint8

const (
	BusCmdCoilOn       BusCommandID = 0
	BusCmdCoilOff      BusCommandID = 1
	BusCmdSetAddress   BusCommandID = 2
	BusCmdDeleteDevice BusCommandID = 3
)

// String returns the command name.
func (c BusCommandID) String() string {
	switch c {
	case BusCmdCoilOn:
		return "COIL_ON"
	case BusCmdCoilOff:
		return "COIL_OFF"
	case BusCmdSetAddress:
		return "SET_ADDRESS"
	case BusCmdDeleteDevice:
		return "DELETE_DEVICE"
	default:
		return fmt.Sprintf("BUS_COMMAND(%d)", uint8(c))
	}
}

// MessageID is the leading byte of a device-to-client LED message.
type MessageID uint8

const (
	MsgStripSnapshot  MessageID = 0
	MsgZoneSnapshot   MessageID = 1
	MsgEffectSnapshot MessageID = 2
)

// String returns the message name.
func (m MessageID) String() string {
	switch m {
	case MsgStripSnapshot:
		return "STRIP_SNAPSHOT"
	case MsgZoneSnapshot:
		return "ZONE_SNAPSHOT"
	case MsgEffectSnapshot:
		return "EFFECT_SNAPSHOT"
	default:
		return fmt.Sprintf("MESSAGE(%d)", uint8(m))
	}
}

// BusMessageID is the leading byte of a device-to-client fieldbus message.
type BusMessageID uint8

// BusMsgDeviceSnapshot carries the status of every device slot.
const BusMsgDeviceSnapshot BusMessageID = 0

// String returns the message name.
func (m BusMessageID) String() string {
	if m == BusMsgDeviceSnapshot {
		return "DEVICE_SNAPSHOT"
	}
	return fmt.Sprintf("BUS_MESSAGE(%d)", uint8(m))
}

// EffectMode selects the visual effect of a zone and the layout of its
// effect payload.
type EffectMode uint8

const (
	EffectSingleColor EffectMode = 0
	EffectRepeat      EffectMode = 1
	EffectFade        EffectMode = 2
	EffectSpectrum    EffectMode = 3
)

// String returns the effect name.
func (e EffectMode) String() string {
	switch e {
	case EffectSingleColor:
		return "SINGLE"
	case EffectRepeat:
		return "REPEAT"
	case EffectFade:
		return "FADE"
	case EffectSpectrum:
		return "SPECTRUM"
	default:
		return fmt.Sprintf("EFFECT(%d)", uint8(e))
	}
}

// ParseEffectMode parses an effect name (case-insensitive).
func ParseEffectMode(s string) (EffectMode, error) {
	switch strings.ToLower(s) {
	case "single", "color", "colour":
		return EffectSingleColor, nil
	case "repeat":
		return EffectRepeat, nil
	case "fade":
		return EffectFade, nil
	case "spectrum", "fft":
		return EffectSpectrum, nil
	default:
		return 0, fmt.Errorf("unknown effect: %s (use: single, repeat, fade, spectrum)", s)
	}
}
