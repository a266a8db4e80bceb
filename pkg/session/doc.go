// Package session runs one client session against a controller.
//
// A Session owns the reconciler and its model. All of its state is touched
// from a single event-loop goroutine: the transport read loop, the
// connection manager, throttle timers and callers of Do post closures into
// the loop. Inbound frames are therefore applied in delivery order and
// commands leave in intent order, without locks around the model.
//
// Lost connections are retried forever with a fixed delay. The renderer
// shows the session offline from the moment the transport drops until the
// first message of the next connection is decoded.
package session
