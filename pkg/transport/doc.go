// Package transport carries binary protocol messages over WebSocket.
//
// Every websocket binary frame holds exactly one wire message; there is no
// further framing. Controllers serve the endpoint at DefaultPath and the
// client dials it:
//
//	┌────────────────────────────────┐
//	│   LED / fieldbus wire message  │
//	├────────────────────────────────┤
//	│   WebSocket binary frame       │
//	├────────────────────────────────┤
//	│   HTTP upgrade on /ws          │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Keep-Alive
//
// Liveness uses websocket ping/pong control frames carrying a 4-byte
// sequence number. KeepAlive sends a ping every interval and reports a
// timeout after MaxMissedPongs unanswered pings.
//
// All frames and control messages are reported to an optional log.Logger.
package transport
