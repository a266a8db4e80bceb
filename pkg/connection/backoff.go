package connection

import (
	"sync"
	"time"
)

// ReconnectDelay is the fixed delay between reconnection attempts.
const ReconnectDelay = 1 * time.Second

// Backoff hands out the delay before each reconnection attempt and counts
// the attempts since the last successful connection.
type Backoff struct {
	mu       sync.Mutex
	delay    time.Duration
	attempts int
}

// NewBackoff creates a backoff with a fixed delay. A non-positive delay
// selects ReconnectDelay.
func NewBackoff(delay time.Duration) *Backoff {
	if delay <= 0 {
		delay = ReconnectDelay
	}
	return &Backoff{delay: delay}
}

// Next returns the delay and counts an attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	return b.delay
}

// Reset clears the attempt counter.
// Call this after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns the number of delays handed out since last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
