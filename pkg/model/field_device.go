package model

import "fmt"

// NumCoils is the width of the coil and input bit vectors.
const NumCoils = 8

// FieldDevice is one slot of the fieldbus variant.
type FieldDevice struct {
	// ID is the slot's ordinal position in the device snapshot.
	ID int

	Present bool
	Address uint8

	// Coils is the output state, bit i is coil i.
	Coils uint8

	// Inputs is the sensed state, bit i is input i. Read-only.
	Inputs uint8

	State SyncState
}

// Coil reports whether coil i is on. Out-of-range indexes report false.
func (d *FieldDevice) Coil(i int) bool {
	if i < 0 || i >= NumCoils {
		return false
	}
	return d.Coils&(1<<uint(i)) != 0
}

// SetCoil switches coil i. Out-of-range indexes are ignored.
func (d *FieldDevice) SetCoil(i int, on bool) {
	if i < 0 || i >= NumCoils {
		return
	}
	if on {
		d.Coils |= 1 << uint(i)
	} else {
		d.Coils &^= 1 << uint(i)
	}
}

// Input reports whether input i is set.
func (d *FieldDevice) Input(i int) bool {
	if i < 0 || i >= NumCoils {
		return false
	}
	return d.Inputs&(1<<uint(i)) != 0
}

// AddressHex returns the bus address as two uppercase hex digits.
func (d *FieldDevice) AddressHex() string {
	return fmt.Sprintf("%02X", d.Address)
}
