package device

import (
	"context"
	"time"

	"github.com/mled-io/mled-go/pkg/transport"
)

// Server serves a Simulator over websocket.
type Server struct {
	sim *Simulator
	srv *transport.Server
}

// NewServer wires sim to a transport server built from config. The
// simulator owns the OnConnect and OnMessage callbacks; the remaining
// callbacks in config are kept.
func NewServer(sim *Simulator, config transport.ServerConfig) *Server {
	s := &Server{sim: sim}

	config.OnConnect = func(conn *transport.Conn) {
		if err := conn.Send(sim.Snapshot()); err != nil {
			sim.logger.Warn("initial snapshot failed", "conn", conn.ConnID(), "error", err)
			return
		}
		sim.logger.Info("client connected", "conn", conn.ConnID(), "remote", conn.RemoteAddr())
	}
	config.OnMessage = func(conn *transport.Conn, msg []byte) {
		snap, err := sim.Apply(msg)
		if err != nil {
			return
		}
		s.broadcast(snap)
	}

	s.srv = transport.NewServer(config)
	return s
}

// Transport returns the underlying transport server.
func (s *Server) Transport() *transport.Server {
	return s.srv
}

// Start listens and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	return s.srv.Start(ctx)
}

// Stop closes all connections and the listener.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// URL returns the websocket URL clients dial.
func (s *Server) URL() string {
	return s.srv.URL()
}

// RunSimulation calls Step every interval and broadcasts the resulting
// snapshots until ctx is done.
func (s *Server) RunSimulation(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if snap := s.sim.Step(); snap != nil {
				s.broadcast(snap)
			}
		}
	}
}

func (s *Server) broadcast(snap []byte) {
	if err := s.srv.Broadcast(snap); err != nil {
		s.sim.logger.Debug("broadcast incomplete", "error", err)
	}
}
