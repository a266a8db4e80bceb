package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mled-io/mled-go/pkg/log"
)

// Conn is one websocket connection carrying binary protocol messages.
// Send, SendPing and Close may be called concurrently; Receive must be
// called from a single reader goroutine.
type Conn struct {
	ws      *websocket.Conn
	connID  string
	role    log.Role
	logger  log.Logger
	maxSize int

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}

	pongMu sync.Mutex
	onPong func(seq uint32)
}

func newConn(ws *websocket.Conn, connID string, role log.Role, logger log.Logger, maxSize uint32) *Conn {
	c := &Conn{
		ws:      ws,
		connID:  connID,
		role:    role,
		logger:  logger,
		maxSize: int(maxSize),
		closeCh: make(chan struct{}),
	}
	ws.SetReadLimit(int64(maxSize))
	ws.SetPingHandler(c.handlePing)
	ws.SetPongHandler(c.handlePong)
	ws.SetCloseHandler(c.handleClose)
	return c
}

// ConnID returns the unique connection identifier.
func (c *Conn) ConnID() string {
	return c.connID
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// Done is closed once the connection is closed locally.
func (c *Conn) Done() <-chan struct{} {
	return c.closeCh
}

// Send writes data as one binary frame.
func (c *Conn) Send(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > c.maxSize {
		return ErrMessageTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	c.logFrame(log.DirectionOut, data)
	return nil
}

// Receive returns the next binary frame. A timeout of zero waits
// indefinitely. Text frames are not part of the protocol and are skipped.
func (c *Conn) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(timeout))
		defer c.ws.SetReadDeadline(time.Time{})
	}

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
				return nil, ErrConnectionClosed
			default:
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				return nil, ErrMessageTooLarge
			}
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			c.logError("receive", "unexpected non-binary frame")
			continue
		}
		c.logFrame(log.DirectionIn, data)
		return data, nil
	}
}

// SendPing sends a ping control frame carrying seq.
func (c *Conn) SendPing(seq uint32) error {
	err := c.ws.WriteControl(websocket.PingMessage, encodeSeq(seq), time.Now().Add(controlWriteWait))
	if err == nil {
		c.logControl(log.DirectionOut, log.ControlMsgPing, seq, nil)
	}
	return err
}

// SendClose sends a normal-closure close frame. The peer answers with its
// own close frame, which ends the reader.
func (c *Conn) SendClose() error {
	code := websocket.CloseNormalClosure
	msg := websocket.FormatCloseMessage(code, "")
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
	if err == nil {
		c.logControl(log.DirectionOut, log.ControlMsgClose, 0, &code)
	}
	return err
}

// Close closes the underlying network connection without a close
// handshake. It is safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.ws.Close()
	})
	return err
}

// SetPongHandler registers fn to be called with the sequence number of each
// pong. It runs on the reader goroutine.
func (c *Conn) SetPongHandler(fn func(seq uint32)) {
	c.pongMu.Lock()
	c.onPong = fn
	c.pongMu.Unlock()
}

func (c *Conn) handlePing(data string) error {
	seq, _ := decodeSeq([]byte(data))
	c.logControl(log.DirectionIn, log.ControlMsgPing, seq, nil)

	err := c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteWait))
	if err == websocket.ErrCloseSent {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil
	}
	if err == nil {
		c.logControl(log.DirectionOut, log.ControlMsgPong, seq, nil)
	}
	return err
}

func (c *Conn) handlePong(data string) error {
	seq, ok := decodeSeq([]byte(data))
	c.logControl(log.DirectionIn, log.ControlMsgPong, seq, nil)
	if !ok {
		return nil
	}

	c.pongMu.Lock()
	fn := c.onPong
	c.pongMu.Unlock()
	if fn != nil {
		fn(seq)
	}
	return nil
}

func (c *Conn) handleClose(code int, text string) error {
	c.logControl(log.DirectionIn, log.ControlMsgClose, 0, &code)
	msg := websocket.FormatCloseMessage(code, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
	return nil
}

func (c *Conn) event(dir log.Direction, cat log.Category) log.Event {
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     cat,
		LocalRole:    c.role,
	}
	if addr := c.ws.RemoteAddr(); addr != nil {
		ev.RemoteAddr = addr.String()
	}
	return ev
}

func (c *Conn) logFrame(dir log.Direction, data []byte) {
	if c.logger == nil {
		return
	}
	ev := c.event(dir, log.CategoryMessage)
	ev.Frame = makeFrameEvent(data)
	c.logger.Log(ev)
}

func (c *Conn) logControl(dir log.Direction, typ log.ControlMsgType, seq uint32, code *int) {
	if c.logger == nil {
		return
	}
	ev := c.event(dir, log.CategoryControl)
	ev.ControlMsg = &log.ControlMsgEvent{Type: typ, Seq: seq, CloseCode: code}
	c.logger.Log(ev)
}

func (c *Conn) logError(context, msg string) {
	if c.logger == nil {
		return
	}
	ev := c.event(log.DirectionIn, log.CategoryError)
	ev.Error = &log.ErrorEventData{Layer: log.LayerTransport, Message: msg, Context: context}
	c.logger.Log(ev)
}

func (c *Conn) logState(oldState, newState, reason string) {
	if c.logger == nil {
		return
	}
	ev := c.event(log.DirectionIn, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	c.logger.Log(ev)
}
