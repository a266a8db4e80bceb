// Package throttle implements a trailing-edge throttle for high-rate UI
// updates such as colour drags.
//
// # State Machine
//
// A Throttle is either Idle or Waiting with a pending value:
//
//	Idle    --Push(v)-->  Waiting(v)   timer armed
//	Waiting --Push(v)-->  Waiting(v)   pending value replaced
//	Waiting --timer-->    Idle         pending value emitted
//
// Exactly one value is emitted per window and it is always the most recent
// one pushed. Intermediate values are dropped.
//
// # Clock
//
// Timers come from a Scheduler so the window can be driven by a
// ManualScheduler in tests, or by a scheduler that posts the timer callback
// into an event loop.
package throttle
