package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mled-io/mled-go/pkg/connection"
	"github.com/mled-io/mled-go/pkg/log"
	"github.com/mled-io/mled-go/pkg/model"
	"github.com/mled-io/mled-go/pkg/persistence"
	"github.com/mled-io/mled-go/pkg/picker"
	"github.com/mled-io/mled-go/pkg/reconcile"
	"github.com/mled-io/mled-go/pkg/throttle"
	"github.com/mled-io/mled-go/pkg/transport"
	"github.com/mled-io/mled-go/pkg/wire"
)

// Session errors.
var (
	ErrClosed          = errors.New("session closed")
	ErrNotConnected    = errors.New("not connected")
	ErrKeepAliveFailed = errors.New("keep-alive timeout")
	ErrNoURL           = errors.New("no controller url")
)

// eventQueueSize bounds closures waiting for the loop.
const eventQueueSize = 256

// Conn is the transport connection used by a session. *transport.Conn
// implements it.
type Conn interface {
	ConnID() string
	Send(data []byte) error
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

// DialFunc opens a connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Config configures a Session.
type Config struct {
	// URL is the controller websocket URL.
	URL string

	// Protocol selects the wire variant.
	Protocol wire.Protocol

	// Renderer receives model notifications. Its methods are called on the
	// session goroutine.
	Renderer reconcile.Renderer

	// Registry is the model to reconcile (default: a new registry).
	Registry *model.Registry

	// Geometry of the colour widgets.
	Geometry picker.Geometry

	// ThrottleInterval is the colour update window (default:
	// throttle.DefaultInterval).
	ThrottleInterval time.Duration

	// ReconnectDelay is the fixed delay between connection attempts
	// (default: connection.ReconnectDelay).
	ReconnectDelay time.Duration

	// PingInterval enables websocket keep-alive when positive.
	PingInterval time.Duration

	// Dial opens connections (default: a transport.Client).
	Dial DialFunc

	// After is the reconnect delay timer (default: time.After).
	After func(d time.Duration) <-chan time.Time

	// StateStore records successful controllers (optional).
	StateStore *persistence.ClientStateStore

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger captures frames, messages and state changes
	// (optional).
	ProtocolLogger log.Logger
}

// Session connects a reconciler to a controller and keeps it connected.
type Session struct {
	id       string
	config   Config
	rec      *reconcile.Reconciler
	mgr      *connection.Manager
	logger   *slog.Logger
	protoLog log.Logger

	events chan func()
	done   chan struct{}
	ctx    context.Context

	// pending hands a dialed connection from the connect function to the
	// manager's connected callback.
	pendingMu sync.Mutex
	pending   Conn

	// Loop-owned.
	conn Conn
	ka   *transport.KeepAlive
}

// New creates a session. Call Run to start it.
func New(config Config) *Session {
	if config.Dial == nil {
		client := transport.NewClient(transport.ClientConfig{Logger: config.ProtocolLogger})
		config.Dial = func(ctx context.Context, url string) (Conn, error) {
			return client.Connect(ctx, url)
		}
	}

	s := &Session{
		id:       uuid.NewString(),
		config:   config,
		logger:   config.Logger,
		protoLog: log.OrNoop(config.ProtocolLogger),
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
	}

	s.rec = reconcile.New(reconcile.Config{
		Protocol:         config.Protocol,
		Renderer:         config.Renderer,
		Sender:           reconcile.SenderFunc(s.send),
		Registry:         config.Registry,
		Geometry:         config.Geometry,
		ThrottleInterval: config.ThrottleInterval,
		Scheduler:        throttle.SchedulerFunc(s.afterFunc),
		Logger:           config.Logger,
		ProtocolLogger:   config.ProtocolLogger,
	})

	s.mgr = connection.NewManagerWithConfig(s.connect, connection.Config{
		Delay: config.ReconnectDelay,
		After: config.After,
	})
	s.mgr.OnConnected(s.connected)
	s.mgr.OnStateChange(s.connectionStateChanged)
	s.mgr.OnReconnecting(func(attempt int, delay time.Duration) {
		s.debugLog("reconnecting", "attempt", attempt, "delay", delay)
	})

	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Reconciler returns the session reconciler. It must only be used from the
// session goroutine, i.e. inside Do or from Renderer callbacks.
func (s *Session) Reconciler() *reconcile.Reconciler {
	return s.rec
}

// ConnectionState returns the connection manager state.
func (s *Session) ConnectionState() connection.State {
	return s.mgr.State()
}

// Run connects and processes events until ctx is cancelled. The first
// connection attempt is retried like any lost connection.
func (s *Session) Run(ctx context.Context) error {
	if s.config.URL == "" {
		return ErrNoURL
	}

	s.ctx = ctx
	defer close(s.done)

	s.debugLog("session started", "url", s.config.URL, "protocol", s.config.Protocol)
	s.rec.AnnounceConnectionState()
	s.mgr.StartReconnectLoop()
	go func() {
		if err := s.mgr.Connect(ctx); err != nil {
			s.warnLog("connect failed", "url", s.config.URL, "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case fn := <-s.events:
			fn()
		}
	}
}

// Do runs fn on the session goroutine and returns its error.
func (s *Session) Do(ctx context.Context, fn func(*reconcile.Reconciler) error) error {
	result := make(chan error, 1)
	if !s.post(func() { result <- fn(s.rec) }) {
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// post queues fn for the loop. Returns false once the session has ended.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// afterFunc arms throttle timers whose callbacks run on the loop.
func (s *Session) afterFunc(d time.Duration, f func()) throttle.Timer {
	return time.AfterFunc(d, func() { s.post(f) })
}

// connect is the connection manager's ConnectFunc.
func (s *Session) connect(ctx context.Context) error {
	conn, err := s.config.Dial(ctx, s.config.URL)
	if err != nil {
		s.debugLog("dial failed", "url", s.config.URL, "error", err)
		return err
	}
	s.pendingMu.Lock()
	s.pending = conn
	s.pendingMu.Unlock()
	return nil
}

// connected runs after the manager entered StateConnected.
func (s *Session) connected() {
	s.pendingMu.Lock()
	conn := s.pending
	s.pending = nil
	s.pendingMu.Unlock()
	if conn == nil {
		return
	}

	if !s.post(func() { s.attach(conn) }) {
		conn.Close()
		return
	}
	go s.readLoop(conn)
}

func (s *Session) readLoop(conn Conn) {
	for {
		data, err := conn.Receive(0)
		if err != nil {
			s.post(func() { s.detach(conn, err) })
			return
		}
		s.post(func() { s.handleFrame(conn, data) })
	}
}

func (s *Session) attach(conn Conn) {
	s.conn = conn
	s.rec.SetConnectionID(conn.ConnID())
	s.rec.OnConnected()
	s.infoLog("connected", "url", s.config.URL, "conn", conn.ConnID())

	if tc, ok := conn.(*transport.Conn); ok && s.config.PingInterval > 0 {
		cfg := transport.DefaultKeepAliveConfig()
		cfg.PingInterval = s.config.PingInterval
		s.ka = tc.KeepAlive(cfg, func() {
			s.post(func() { s.detach(conn, ErrKeepAliveFailed) })
		})
		s.ka.Start(s.ctx)
	}

	s.remember()
}

func (s *Session) handleFrame(conn Conn, data []byte) {
	if conn != s.conn {
		return
	}
	// Decode errors are logged and captured by the reconciler; the frame
	// is dropped and the session continues.
	_ = s.rec.HandleMessage(data)
}

// detach drops conn and hands reconnection to the manager.
func (s *Session) detach(conn Conn, err error) {
	if conn != s.conn {
		return
	}
	s.conn = nil
	if s.ka != nil {
		s.ka.Stop()
		s.ka = nil
	}
	conn.Close()

	s.warnLog("connection lost", "conn", conn.ConnID(), "error", err)
	s.rec.OnDisconnected()
	s.mgr.NotifyConnectionLost()
}

func (s *Session) send(data []byte) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.Send(data)
}

func (s *Session) shutdown() {
	s.mgr.SetAutoReconnect(false)
	if s.conn != nil {
		conn := s.conn
		s.conn = nil
		if s.ka != nil {
			s.ka.Stop()
			s.ka = nil
		}
		conn.Close()
		s.rec.OnDisconnected()
	}
	s.mgr.Close()

	// A dial may have completed after the manager stopped.
	s.pendingMu.Lock()
	if s.pending != nil {
		s.pending.Close()
		s.pending = nil
	}
	s.pendingMu.Unlock()
	s.debugLog("session stopped")
}

// remember records the controller in the state file.
func (s *Session) remember() {
	store := s.config.StateStore
	if store == nil {
		return
	}
	state, err := store.Load()
	if err != nil {
		s.warnLog("load client state", "path", store.Path(), "error", err)
		state = &persistence.ClientState{}
	}
	state.LastController = s.config.URL
	state.Remember(persistence.KnownController{
		URL:        s.config.URL,
		Protocol:   s.config.Protocol.String(),
		LastSeenAt: time.Now(),
	})
	if err := store.Save(state); err != nil {
		s.warnLog("save client state", "path", store.Path(), "error", err)
	}
}

func (s *Session) connectionStateChanged(oldState, newState connection.State) {
	s.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		LocalRole: log.RoleClient,
		Protocol:  s.config.Protocol.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
			Ref:      s.config.URL,
		},
	})
	s.debugLog("connection state changed", "from", oldState, "to", newState)
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, append(args, "session", s.id)...)
	}
}

func (s *Session) infoLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, append(args, "session", s.id)...)
	}
}

func (s *Session) warnLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, append(args, "session", s.id)...)
	}
}
