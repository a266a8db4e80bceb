package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is the client or a device.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Protocol is the wire variant in use ("led" or "fieldbus").
	Protocol string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session/entity state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Ping/pong/close
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the websocket layer (raw frames).
	LayerTransport Layer = 0
	// LayerWire is the codec layer (decoded commands and snapshots).
	LayerWire Layer = 1
	// LayerModel is the reconciliation layer (entity state).
	LayerModel Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerModel:
		return "MODEL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (command or snapshot).
	CategoryMessage Category = 0
	// CategoryControl indicates a control frame (ping/pong/close).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint is the client or a device.
type Role uint8

const (
	// RoleClient indicates the editing client.
	RoleClient Role = 0
	// RoleDevice indicates a controller or simulator.
	RoleDevice Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded protocol message at the wire layer.
type MessageEvent struct {
	// Type distinguishes commands from snapshots.
	Type MessageType `cbor:"1,keyasint"`

	// ID is the leading byte of the frame.
	ID uint8 `cbor:"2,keyasint"`

	// Name is the message name, e.g. "SET_ZONE_SIZE".
	Name string `cbor:"3,keyasint"`

	// Target indexes (set where the message addresses one entity).
	Strip  *uint8 `cbor:"4,keyasint,omitempty"`
	Zone   *uint8 `cbor:"5,keyasint,omitempty"`
	Device *uint8 `cbor:"6,keyasint,omitempty"`

	// Count is the number of records in a snapshot.
	Count int `cbor:"7,keyasint,omitempty"`

	// Decoded payload (CBOR-compatible representation).
	Payload any `cbor:"8,keyasint,omitempty"`
}

// MessageType distinguishes commands from snapshots.
type MessageType uint8

const (
	// MessageTypeCommand is a client-to-device command.
	MessageTypeCommand MessageType = 0
	// MessageTypeSnapshot is a device-to-client full configuration.
	MessageTypeSnapshot MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeSnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection, session and entity lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// Ref names the model entity for StateEntityModel, e.g. "strip/0/zone/2".
	Ref string `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session (sync mode) state change.
	StateEntitySession StateEntity = 1
	// StateEntityModel indicates a strip, zone or device sync state change.
	StateEntityModel StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityModel:
		return "MODEL"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures websocket control frames.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Seq is the keep-alive sequence number carried by ping and pong.
	Seq uint32 `cbor:"2,keyasint,omitempty"`

	// CloseCode is the websocket close code for close messages.
	CloseCode *int `cbor:"3,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgPing indicates a ping message.
	ControlMsgPing ControlMsgType = 0
	// ControlMsgPong indicates a pong message.
	ControlMsgPong ControlMsgType = 1
	// ControlMsgClose indicates a close message.
	ControlMsgClose ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgPong:
		return "PONG"
	case ControlMsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// Uint8 returns a pointer to v, for the optional MessageEvent indexes.
func Uint8(v uint8) *uint8 {
	return &v
}
