package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mled-io/mled-go/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingLogger) snapshot() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}

func startServer(t *testing.T, config ServerConfig) *Server {
	t.Helper()
	config.Address = "127.0.0.1:0"
	srv := NewServer(config)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func dial(t *testing.T, srv *Server, config ClientConfig) *Conn {
	t.Helper()
	conn, err := NewClient(config).Connect(context.Background(), srv.URL())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEcho(t *testing.T) {
	srv := startServer(t, ServerConfig{
		OnMessage: func(c *Conn, msg []byte) {
			c.Send(msg)
		},
	})
	conn := dial(t, srv, ClientConfig{})

	msg := []byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x90, 'G', 'R', 'B'}
	require.NoError(t, conn.Send(msg))

	got, err := conn.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestServerSendsOnConnect(t *testing.T) {
	snapshot := []byte{0x00, 0x00, 0x00, 0x00, 0x0A, 'R', 'G', 'B'}
	srv := startServer(t, ServerConfig{
		OnConnect: func(c *Conn) {
			c.Send(snapshot)
		},
	})
	conn := dial(t, srv, ClientConfig{})

	got, err := conn.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)
	assert.Equal(t, 1, srv.ConnectionCount())
}

func TestBroadcast(t *testing.T) {
	connected := make(chan struct{}, 2)
	srv := startServer(t, ServerConfig{
		OnConnect: func(*Conn) { connected <- struct{}{} },
	})
	a := dial(t, srv, ClientConfig{})
	b := dial(t, srv, ClientConfig{})
	<-connected
	<-connected

	require.NoError(t, srv.Broadcast([]byte{0x01}))
	for _, c := range []*Conn{a, b} {
		got, err := c.Receive(2 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01}, got)
	}
}

func TestSendErrors(t *testing.T) {
	srv := startServer(t, ServerConfig{})
	conn := dial(t, srv, ClientConfig{MaxMessageSize: 4})

	assert.ErrorIs(t, conn.Send(nil), ErrMessageEmpty)
	assert.ErrorIs(t, conn.Send([]byte{1, 2, 3, 4, 5}), ErrMessageTooLarge)

	conn.Close()
	assert.ErrorIs(t, conn.Send([]byte{1}), ErrConnectionClosed)
	_, err := conn.Receive(0)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestServerRejectsOversizedMessage(t *testing.T) {
	errCh := make(chan error, 1)
	srv := startServer(t, ServerConfig{
		MaxMessageSize: 8,
		OnError: func(c *Conn, err error) {
			if c != nil {
				errCh <- err
			}
		},
	})
	conn := dial(t, srv, ClientConfig{})
	require.NoError(t, conn.Send(bytes.Repeat([]byte{0xAA}, 32)))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnError for oversized frame")
	}
}

func TestDisconnectCallback(t *testing.T) {
	gone := make(chan *Conn, 1)
	srv := startServer(t, ServerConfig{
		OnDisconnect: func(c *Conn) { gone <- c },
	})
	conn := dial(t, srv, ClientConfig{})
	require.NoError(t, conn.SendClose())

	select {
	case c := <-gone:
		assert.NotEmpty(t, c.ConnID())
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called")
	}
	assert.Equal(t, 0, srv.ConnectionCount())
}

func TestStopClosesClients(t *testing.T) {
	srv := startServer(t, ServerConfig{})
	conn := dial(t, srv, ClientConfig{})

	require.NoError(t, srv.Stop())
	_, err := conn.Receive(2 * time.Second)
	require.Error(t, err)

	var ne net.Error
	if errors.As(err, &ne) {
		assert.False(t, ne.Timeout(), "expected closure, got timeout")
	}
}

func TestReceiveTimeout(t *testing.T) {
	srv := startServer(t, ServerConfig{})
	conn := dial(t, srv, ClientConfig{})

	_, err := conn.Receive(50 * time.Millisecond)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	_, err = NewClient(ClientConfig{ConnectTimeout: time.Second}).Connect(context.Background(), ControllerURL(addr))
	assert.Error(t, err)
}

func TestKeepAliveOverWebsocket(t *testing.T) {
	srv := startServer(t, ServerConfig{})
	conn := dial(t, srv, ClientConfig{})

	// Pongs are processed by the reader.
	go func() {
		for {
			if _, err := conn.Receive(0); err != nil {
				return
			}
		}
	}()

	pong := make(chan uint32, 4)
	ka := conn.KeepAlive(KeepAliveConfig{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    500 * time.Millisecond,
		MaxMissedPongs: 3,
	}, func() { t.Error("unexpected keep-alive timeout") })
	ka.SetPongReceivedCallback(func(seq uint32, _ time.Duration) {
		select {
		case pong <- seq:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ka.Start(ctx)
	defer ka.Stop()

	select {
	case seq := <-pong:
		assert.Equal(t, uint32(1), seq)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}
}

func TestCapture(t *testing.T) {
	serverLog := &recordingLogger{}
	clientLog := &recordingLogger{}
	srv := startServer(t, ServerConfig{
		Logger:    serverLog,
		OnMessage: func(c *Conn, msg []byte) { c.Send(msg) },
	})
	conn := dial(t, srv, ClientConfig{Logger: clientLog})

	require.NoError(t, conn.Send([]byte{0x02, 0x00}))
	_, err := conn.Receive(2 * time.Second)
	require.NoError(t, err)

	events := clientLog.snapshot()
	require.Len(t, events, 3)

	assert.Equal(t, log.CategoryState, events[0].Category)
	assert.Equal(t, "CONNECTED", events[0].StateChange.NewState)
	assert.Equal(t, log.RoleClient, events[0].LocalRole)

	assert.Equal(t, log.DirectionOut, events[1].Direction)
	assert.Equal(t, 2, events[1].Frame.Size)
	assert.Equal(t, log.DirectionIn, events[2].Direction)
	for _, e := range events {
		assert.Equal(t, conn.ConnID(), e.ConnectionID)
		assert.Equal(t, log.LayerTransport, e.Layer)
	}

	serverFrames := func() int {
		n := 0
		for _, e := range serverLog.snapshot() {
			if e.Frame != nil && e.LocalRole == log.RoleDevice {
				n++
			}
		}
		return n
	}
	assert.Eventually(t, func() bool { return serverFrames() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestMakeFrameEventTruncates(t *testing.T) {
	big := bytes.Repeat([]byte{1}, MaxLogFrameDataSize+10)
	ev := makeFrameEvent(big)
	assert.Equal(t, len(big), ev.Size)
	assert.Len(t, ev.Data, MaxLogFrameDataSize)
	assert.True(t, ev.Truncated)

	small := makeFrameEvent([]byte{1, 2})
	assert.False(t, small.Truncated)
	assert.Equal(t, []byte{1, 2}, small.Data)
}

func TestURLHelpers(t *testing.T) {
	assert.Equal(t, "ws://192.168.4.1/ws", ControllerURL("192.168.4.1"))
	assert.Equal(t, "ws://led.local:8080/ws", ControllerURL("led.local:8080"))

	assert.Equal(t, "192.168.4.1", HostPort("192.168.4.1", 80))
	assert.Equal(t, "192.168.4.1", HostPort("192.168.4.1", 0))
	assert.Equal(t, "192.168.4.1:8080", HostPort("192.168.4.1", 8080))
	assert.Equal(t, "[fe80::1]", HostPort("fe80::1", 80))
	assert.Equal(t, "[fe80::1]:81", HostPort("fe80::1", 81))
}

func TestSeqEncoding(t *testing.T) {
	seq, ok := decodeSeq(encodeSeq(0xDEADBEEF))
	assert.True(t, ok)
	assert.Equal(t, uint32(0xDEADBEEF), seq)

	_, ok = decodeSeq([]byte{1, 2})
	assert.False(t, ok)
}
