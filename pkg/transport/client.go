package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mled-io/mled-go/pkg/log"
)

// DefaultConnectTimeout bounds the TCP dial and websocket handshake.
const DefaultConnectTimeout = 10 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// MaxMessageSize is the maximum inbound message size (default: 64KB).
	MaxMessageSize uint32

	// ConnectTimeout is the connection timeout (default: 10s).
	ConnectTimeout time.Duration

	// Logger for protocol capture (optional).
	Logger log.Logger
}

// Client dials controllers.
type Client struct {
	config ClientConfig
	dialer *websocket.Dialer
}

// NewClient creates a client.
func NewClient(config ClientConfig) *Client {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}

	return &Client{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.ConnectTimeout,
		},
	}
}

// Connect dials url (ws://host/ws) and returns the open connection.
func (c *Client) Connect(ctx context.Context, url string) (*Conn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	ws, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	conn := newConn(ws, uuid.New().String(), log.RoleClient, c.config.Logger, c.config.MaxMessageSize)
	conn.logState("", "CONNECTED", url)
	return conn, nil
}
