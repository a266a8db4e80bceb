package transport

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultPingInterval is the interval between pings.
	DefaultPingInterval = 10 * time.Second

	// DefaultPongTimeout is how long a ping may stay unanswered before it
	// counts as missed.
	DefaultPongTimeout = 5 * time.Second

	// DefaultMaxMissedPongs is the number of missed pongs before the
	// connection is considered lost.
	DefaultMaxMissedPongs = 2
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay is the longest time a dead peer goes unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return CalculateDetectionDelay(c.PingInterval, c.PongTimeout, c.MaxMissedPongs)
}

// CalculateDetectionDelay returns pingInterval*maxMissedPongs + pongTimeout.
func CalculateDetectionDelay(pingInterval, pongTimeout time.Duration, maxMissedPongs int) time.Duration {
	return pingInterval*time.Duration(maxMissedPongs) + pongTimeout
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastPingTime time.Time
	LastPongTime time.Time
	MissedPongs  int
	CurrentSeq   uint32
}

// KeepAlive pings a peer periodically and reports when it stops answering.
// After a timeout the monitor stops itself.
type KeepAlive struct {
	config    KeepAliveConfig
	sendPing  func(seq uint32) error
	onTimeout func()

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	onPong   func(seq uint32, latency time.Duration)
	seq      uint32
	pending  bool
	missed   int
	lastPing time.Time
	lastPong time.Time

	pongCh chan uint32
}

// NewKeepAlive creates a monitor. sendPing writes one ping; onTimeout is
// called once when MaxMissedPongs pings went unanswered.
func NewKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	def := DefaultKeepAliveConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = def.PongTimeout
	}
	if config.MaxMissedPongs <= 0 {
		config.MaxMissedPongs = def.MaxMissedPongs
	}

	return &KeepAlive{
		config:    config,
		sendPing:  sendPing,
		onTimeout: onTimeout,
		pongCh:    make(chan uint32, 1),
	}
}

// KeepAlive creates a monitor pinging this connection. Pongs read by
// Receive are fed to it automatically.
func (c *Conn) KeepAlive(config KeepAliveConfig, onTimeout func()) *KeepAlive {
	ka := NewKeepAlive(config, c.SendPing, onTimeout)
	c.SetPongHandler(ka.PongReceived)
	return ka
}

// SetPongReceivedCallback sets a callback for matching pongs. It is called
// on its own goroutine.
func (ka *KeepAlive) SetPongReceivedCallback(cb func(seq uint32, latency time.Duration)) {
	ka.mu.Lock()
	ka.onPong = cb
	ka.mu.Unlock()
}

// Start begins monitoring. It is a no-op while running.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if ka.running {
		return
	}
	ka.running = true
	ka.stopCh = make(chan struct{})
	go ka.loop(ctx, ka.stopCh)
}

// Stop ends monitoring. It is safe to call multiple times.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.stopLocked()
}

func (ka *KeepAlive) stopLocked() {
	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
}

// PongReceived records a pong for seq.
func (ka *KeepAlive) PongReceived(seq uint32) {
	select {
	case ka.pongCh <- seq:
	default:
	}
}

// IsRunning reports whether monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		LastPingTime: ka.lastPing,
		LastPongTime: ka.lastPong,
		MissedPongs:  ka.missed,
		CurrentSeq:   ka.seq,
	}
}

func (ka *KeepAlive) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	ka.ping()
	for {
		select {
		case <-ctx.Done():
			ka.Stop()
			return
		case <-stop:
			return
		case seq := <-ka.pongCh:
			ka.pong(seq)
		case <-ticker.C:
			if ka.expired() {
				if ka.onTimeout != nil {
					ka.onTimeout()
				}
				return
			}
			ka.ping()
		}
	}
}

// expired counts an overdue ping as missed and reports whether the limit
// was reached, stopping the monitor if so.
func (ka *KeepAlive) expired() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if !ka.pending || time.Since(ka.lastPing) < ka.config.PongTimeout {
		return false
	}
	ka.pending = false
	ka.missed++
	if ka.missed < ka.config.MaxMissedPongs {
		return false
	}
	ka.stopLocked()
	return true
}

func (ka *KeepAlive) ping() {
	ka.mu.Lock()
	ka.seq++
	seq := ka.seq
	ka.lastPing = time.Now()
	ka.pending = true
	ka.mu.Unlock()

	// A failed write leaves the ping pending; the pong timeout covers it.
	_ = ka.sendPing(seq)
}

func (ka *KeepAlive) pong(seq uint32) {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	now := time.Now()
	ka.lastPong = now

	// Late pongs for earlier pings are ignored.
	if !ka.pending || seq != ka.seq {
		return
	}
	ka.pending = false
	ka.missed = 0
	if cb := ka.onPong; cb != nil {
		latency := now.Sub(ka.lastPing)
		go cb(seq, latency)
	}
}
