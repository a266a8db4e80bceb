package throttle

import (
	"sync"
	"time"
)

// DefaultInterval is the colour update window.
const DefaultInterval = 90 * time.Millisecond

// State is the throttle state.
type State uint8

const (
	// Idle has no pending value and no armed timer.
	Idle State = iota

	// Waiting holds a pending value until the timer fires.
	Waiting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Waiting:
		return "WAITING"
	default:
		return "UNKNOWN"
	}
}

// Throttle delivers at most one value per interval to its emit function,
// always the last value pushed during the window.
type Throttle[T any] struct {
	mu sync.Mutex

	interval time.Duration
	sched    Scheduler
	emit     func(T)

	state   State
	pending T
	timer   Timer
	gen     uint64
}

// New creates an idle throttle. A nil scheduler uses RealScheduler and a
// non-positive interval uses DefaultInterval.
func New[T any](interval time.Duration, sched Scheduler, emit func(T)) *Throttle[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if sched == nil {
		sched = RealScheduler{}
	}
	return &Throttle[T]{
		interval: interval,
		sched:    sched,
		emit:     emit,
	}
}

// Push offers a value. In Idle the value is held and the window starts; in
// Waiting it replaces the held value.
func (t *Throttle[T]) Push(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = v
	if t.state == Idle {
		t.state = Waiting
		t.gen++
		gen := t.gen
		t.timer = t.sched.AfterFunc(t.interval, func() { t.fire(gen) })
	}
}

// State returns the current state.
func (t *Throttle[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop drops any pending value without emitting it.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	var zero T
	t.pending = zero
	t.state = Idle
	t.gen++
}

func (t *Throttle[T]) fire(gen uint64) {
	t.mu.Lock()
	if t.state != Waiting || gen != t.gen {
		t.mu.Unlock()
		return
	}
	v := t.pending
	var zero T
	t.pending = zero
	t.state = Idle
	t.timer = nil
	emit := t.emit
	t.mu.Unlock()

	// Call outside the lock so emit may Push again.
	if emit != nil {
		emit(v)
	}
}
