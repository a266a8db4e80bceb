package transport

import (
	"context"
	"net"
	"time"
)

// Connection is a bidirectional message connection. Implemented by Conn.
type Connection interface {
	// ConnID returns the unique connection identifier.
	ConnID() string

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Send sends one message.
	Send(data []byte) error

	// Receive receives one message with the specified timeout.
	Receive(timeout time.Duration) ([]byte, error)

	// SendPing sends a ping control message with the given sequence number.
	SendPing(seq uint32) error

	// SendClose sends a close control message.
	SendClose() error

	// Close closes the connection.
	Close() error
}

// Dialer opens client connections. Implemented by Client.
type Dialer interface {
	Connect(ctx context.Context, url string) (*Conn, error)
}

// TransportServer is a websocket server. Implemented by Server.
type TransportServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop gracefully stops the server.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// Compile-time interface satisfaction checks.
var (
	_ Connection      = (*Conn)(nil)
	_ Dialer          = (*Client)(nil)
	_ TransportServer = (*Server)(nil)
)
