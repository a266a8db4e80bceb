package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mled-io/mled-go/pkg/log"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g., ":80" or "127.0.0.1:0").
	Address string

	// Path of the websocket endpoint (default: DefaultPath).
	Path string

	// MaxMessageSize is the maximum inbound message size (default: 64KB).
	MaxMessageSize uint32

	// Logger for protocol capture (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established, before any
	// message is read from it.
	OnConnect func(conn *Conn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *Conn)

	// OnMessage is called for every binary frame received.
	OnMessage func(conn *Conn, msg []byte)

	// OnError is called when an error occurs. conn is nil for errors not
	// tied to a connection.
	OnError func(conn *Conn, err error)
}

// Server accepts websocket connections from clients. It can run its own
// listener (Start) or be mounted as an http.Handler.
type Server struct {
	config   ServerConfig
	upgrader websocket.Upgrader

	listener net.Listener
	httpSrv  *http.Server

	conns   map[*Conn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a server.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			// Controllers serve any origin on the local network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*Conn]struct{}),
	}
}

// Handler returns an http.Handler serving the websocket endpoint at the
// configured path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, s)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.Handler()}
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.httpSrv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && s.config.OnError != nil {
			s.config.OnError(nil, fmt.Errorf("serve: %w", err))
		}
	}()

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			s.Stop()
		}()
	}

	return nil
}

// Stop closes the listener and all connections and waits for their
// handlers to return. A server used only as a Handler just drops its
// connections.
func (s *Server) Stop() error {
	var err error
	if s.running.CompareAndSwap(true, false) {
		err = s.httpSrv.Close()
	}

	// Hijacked websocket connections are not closed by http.Server.Close.
	s.connsMu.RLock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.RUnlock()

	s.wg.Wait()
	return err
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// URL returns the websocket URL clients dial, or "" before Start.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "ws://" + s.listener.Addr().String() + s.config.Path
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// Broadcast sends data to every connection. It returns the first error;
// failing connections are closed by their read loops.
func (s *Server) Broadcast(data []byte) error {
	s.connsMu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.RUnlock()

	var first error
	for _, c := range conns {
		if err := c.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ServeHTTP upgrades the request and runs the connection's read loop until
// it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		if s.config.OnError != nil {
			s.config.OnError(nil, fmt.Errorf("upgrade: %w", err))
		}
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	conn := newConn(ws, uuid.New().String(), log.RoleDevice, s.config.Logger, s.config.MaxMessageSize)
	conn.logState("", "CONNECTED", "")

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(conn)
	}

	s.readLoop(conn)

	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()

	conn.Close()
	conn.logState("CONNECTED", "DISCONNECTED", "")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(conn)
	}
}

func (s *Server) readLoop(conn *Conn) {
	for {
		data, err := conn.Receive(0)
		if err != nil {
			if s.config.OnError != nil && !isClosure(err) {
				s.config.OnError(conn, err)
			}
			return
		}
		if s.config.OnMessage != nil {
			s.config.OnMessage(conn, data)
		}
	}
}

// isClosure reports whether err is an orderly end of a connection.
func isClosure(err error) bool {
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
