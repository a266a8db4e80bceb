package throttle

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. Returns false if it already ran or was
	// stopped.
	Stop() bool
}

// Scheduler runs a callback after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(d time.Duration, f func()) Timer

// AfterFunc implements Scheduler.
func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) Timer {
	return fn(d, f)
}

// RealScheduler uses time.AfterFunc. Callbacks run on their own goroutine.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualScheduler is a Scheduler driven by Advance. Callbacks run
// synchronously inside Advance, in due order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	at      time.Duration
	seq     int
	f       func()
	stopped bool
}

// NewManualScheduler creates a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Now returns the time elapsed since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of armed timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Advance moves the clock forward by d and runs every timer that falls due,
// including timers armed by callbacks during the advance.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		sort.SliceStable(s.timers, func(i, j int) bool {
			if s.timers[i].at != s.timers[j].at {
				return s.timers[i].at < s.timers[j].at
			}
			return s.timers[i].seq < s.timers[j].seq
		})
		if len(s.timers) == 0 || s.timers[0].at > target {
			s.now = target
			s.mu.Unlock()
			return
		}
		t := s.timers[0]
		s.timers = s.timers[1:]
		s.now = t.at
		s.mu.Unlock()

		t.f()
	}
}

func (t *manualTimer) Stop() bool {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.stopped {
		return false
	}
	for i, other := range s.timers {
		if other == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}
