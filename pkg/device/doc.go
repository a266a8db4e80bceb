// Package device simulates a controller for development and tests.
//
// The simulator behaves like the firmware's websocket endpoint: every new
// client receives the full configuration, every accepted command changes
// the simulated state, and the whole configuration is broadcast again after
// each change. Zone allocation is kept on the device side as well so that
// size commands are clamped the same way a real controller clamps them.
//
// A simulator speaks exactly one protocol variant, selected by
// Config.Protocol.
package device
