package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mled-io/mled-go/pkg/log"
)

const (
	// DefaultPath is the websocket endpoint served by controllers.
	DefaultPath = "/ws"

	// DefaultPort is the HTTP port controllers listen on.
	DefaultPort = 80

	// DefaultMaxMessageSize bounds a single inbound frame (64 KB).
	DefaultMaxMessageSize = 65536

	// MaxLogFrameDataSize is the largest frame payload copied into a log
	// event. Longer frames are truncated in the event only.
	MaxLogFrameDataSize = 4096

	// controlWriteWait bounds ping, pong and close writes.
	controlWriteWait = time.Second
)

var (
	// ErrConnectionClosed is returned by operations on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")
)

// ControllerURL builds the websocket URL for a controller host. host may
// carry a port; the default port is implied otherwise.
func ControllerURL(host string) string {
	return fmt.Sprintf("ws://%s%s", host, DefaultPath)
}

// HostPort joins a discovered host and port into a dialable host string.
// The default port is omitted.
func HostPort(host string, port int) string {
	if port == 0 || port == DefaultPort {
		if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}

func encodeSeq(seq uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], seq)
	return b[:]
}

func decodeSeq(data []byte) (uint32, bool) {
	if len(data) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data), true
}

func makeFrameEvent(data []byte) *log.FrameEvent {
	ev := &log.FrameEvent{Size: len(data)}
	if len(data) > MaxLogFrameDataSize {
		ev.Data = append([]byte(nil), data[:MaxLogFrameDataSize]...)
		ev.Truncated = true
	} else {
		ev.Data = append([]byte(nil), data...)
	}
	return ev
}
