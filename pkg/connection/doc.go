// Package connection manages the lifecycle of the controller connection.
//
// This package handles:
//   - The fixed reconnection delay
//   - Connection state tracking
//   - Automatic, unlimited reconnection on connection loss
//
// # Reconnection Strategy
//
// When the connection is lost, the manager waits a fixed delay and dials
// again, forever:
//
//  1. Delay: 1 second
//  2. Dial; on failure go back to 1
//  3. On success report connected
//
// A successful connection ends the retry loop and resets the attempt
// counter; there is no retry ceiling.
package connection
