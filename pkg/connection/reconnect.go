package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the connection manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DefaultDialTimeout bounds a single connection attempt.
const DefaultDialTimeout = 10 * time.Second

// ConnectFunc is called to establish a connection.
// It should return nil on success or an error on failure.
type ConnectFunc func(ctx context.Context) error

// Config holds optional Manager settings.
type Config struct {
	// Delay between reconnection attempts (default: ReconnectDelay).
	Delay time.Duration

	// DialTimeout bounds each ConnectFunc call made by the retry loop.
	DialTimeout time.Duration

	// After returns a channel that fires after d. Defaults to time.After.
	After func(d time.Duration) <-chan time.Time
}

// Manager manages connection lifecycle with automatic reconnection.
type Manager struct {
	mu sync.RWMutex

	// Current state
	state State

	// Backoff calculator
	backoff *Backoff

	dialTimeout time.Duration
	after       func(d time.Duration) <-chan time.Time

	// Connection function
	connectFn ConnectFunc

	// Auto-reconnect enabled
	autoReconnect bool

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for reconnection goroutine
	wg sync.WaitGroup

	// Channel to signal reconnection should start
	reconnectCh chan struct{}

	// Callbacks
	onStateChange  func(oldState, newState State)
	onConnected    func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a connection manager with the ReconnectDelay policy.
func NewManager(connectFn ConnectFunc) *Manager {
	return NewManagerWithConfig(connectFn, Config{})
}

// NewManagerWithConfig creates a connection manager with custom settings.
func NewManagerWithConfig(connectFn ConnectFunc, cfg Config) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.After == nil {
		cfg.After = time.After
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		state:         StateDisconnected,
		backoff:       NewBackoff(cfg.Delay),
		dialTimeout:   cfg.DialTimeout,
		after:         cfg.After,
		connectFn:     connectFn,
		autoReconnect: true,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect makes one connection attempt. If it fails and auto-reconnect is
// enabled, the retry loop takes over and the error is still returned.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrConnectionClosed
	}

	oldState := m.state
	m.state = StateConnecting
	m.mu.Unlock()

	if m.onStateChange != nil {
		m.onStateChange(oldState, StateConnecting)
	}

	// Attempt connection
	err := m.connectFn(ctx)

	m.mu.Lock()
	if err != nil {
		autoReconnect := m.autoReconnect && m.state == StateConnecting
		newState := StateDisconnected
		if autoReconnect {
			newState = StateReconnecting
		}
		if m.state == StateConnecting {
			m.state = newState
		}
		m.mu.Unlock()
		if m.onStateChange != nil {
			m.onStateChange(StateConnecting, newState)
		}
		if autoReconnect {
			m.triggerReconnect()
		}
		return err
	}

	m.state = StateConnected
	m.backoff.Reset()
	m.mu.Unlock()

	if m.onStateChange != nil {
		m.onStateChange(StateConnecting, StateConnected)
	}
	if m.onConnected != nil {
		m.onConnected()
	}

	return nil
}

// NotifyConnectionLost should be called when a connection loss is detected.
// This triggers automatic reconnection if enabled.
func (m *Manager) NotifyConnectionLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	autoReconnect := m.autoReconnect

	if autoReconnect {
		m.state = StateReconnecting
	} else {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	if m.onStateChange != nil {
		m.onStateChange(oldState, m.state)
	}

	if autoReconnect {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background reconnection loop.
// Must be called once before reconnection will work.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts down the connection manager.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	m.state = StateClosed
	m.mu.Unlock()

	if m.onStateChange != nil {
		m.onStateChange(oldState, StateClosed)
	}

	m.cancel()
	m.wg.Wait()
}

// triggerReconnect signals that reconnection should be attempted.
func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
		// Already pending
	}
}

// reconnectLoop runs in a goroutine and handles reconnection attempts.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

// attemptReconnect performs reconnection with backoff.
func (m *Manager) attemptReconnect() {
	for {
		m.mu.RLock()
		state := m.state
		m.mu.RUnlock()

		if state == StateClosed {
			return
		}
		if state == StateConnected {
			return
		}

		// Get next backoff delay
		delay := m.backoff.Next()
		attempts := m.backoff.Attempts()

		if m.onReconnecting != nil {
			m.onReconnecting(attempts, delay)
		}

		// Wait for the delay
		select {
		case <-m.ctx.Done():
			return
		case <-m.after(delay):
		}

		// Attempt connection
		m.mu.Lock()
		if m.state == StateClosed || m.state == StateConnected {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
		err := m.connectFn(ctx)
		cancel()

		if err == nil {
			// Success!
			m.mu.Lock()
			oldState := m.state
			m.state = StateConnected
			m.backoff.Reset()
			m.mu.Unlock()

			if m.onStateChange != nil {
				m.onStateChange(oldState, StateConnected)
			}
			if m.onConnected != nil {
				m.onConnected()
			}
			return
		}

		// Failed, keep retrying
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for successful connection.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnReconnecting sets a callback for reconnection attempts.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}
