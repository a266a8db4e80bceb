// Package wire defines the binary wire format spoken between an mled client
// and an LED or fieldbus controller.
//
// Every message is carried in exactly one transport frame. There is no length
// prefix and no partial-message buffering: the first byte selects the message
// type and the rest of the frame is a fixed layout payload.
//
// # Encoding Rules
//
//   - Multi-byte integers are big-endian.
//   - Floats are IEEE-754 float32, big-endian.
//   - Text fields are fixed-length ASCII without a terminator.
//
// # Protocol Variants
//
// Two incompatible variants share the leading-byte scheme and reuse the same
// id numbers, so a frame can only be interpreted once the [Protocol] is known.
//
// LED variant (client to device):
//
//	0 SetStripConfig  [0][strip][pixels u32][order 3B]          9 bytes
//	1 SetZoneSize     [1][strip][zone][pixels u32]              7 bytes
//	2 SetZoneEffect   [2][strip][zone][mode][payload]           16 bytes for single colour
//
// LED variant (device to client):
//
//	0 strip snapshot  [0] { [pixels u32][order 3B] } per strip
//	1 zone snapshot   not implemented by any known client revision
//	2 effect snapshot not implemented by any known client revision
//
// Fieldbus variant (client to device):
//
//	0 CoilOn          [0][device][coil]
//	1 CoilOff         [1][device][coil]
//	2 SetAddress      [2][device][address]
//	3 DeleteDevice    [3][device]
//
// Fieldbus variant (device to client):
//
//	0 device snapshot [0] { [present] ([address] if present) [coils][inputs] } per slot
//
// The device side of both variants (command decoding, snapshot encoding) is
// also provided so simulators and tests can speak the protocol end to end.
package wire
