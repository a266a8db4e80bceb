package reconcile

import (
	"fmt"

	"github.com/mled-io/mled-go/pkg/model"
)

// Kind identifies the entity family of an Entity.
type Kind uint8

const (
	KindStrip Kind = iota
	KindZone
	KindDevice
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStrip:
		return "strip"
	case KindZone:
		return "zone"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Entity is a reference to one model entity passed to the Renderer.
// Exactly one of Strip, Zone or Device is set, matching Kind.
type Entity struct {
	Kind   Kind
	Strip  *model.Strip
	Zone   *model.Zone
	Device *model.FieldDevice
}

// StripEntity wraps a strip.
func StripEntity(s *model.Strip) Entity {
	return Entity{Kind: KindStrip, Strip: s}
}

// ZoneEntity wraps a zone.
func ZoneEntity(z *model.Zone) Entity {
	return Entity{Kind: KindZone, Zone: z}
}

// DeviceEntity wraps a fieldbus device.
func DeviceEntity(d *model.FieldDevice) Entity {
	return Entity{Kind: KindDevice, Device: d}
}

// Ref returns a stable path naming the entity, e.g. "strip/0/zone/2".
func (e Entity) Ref() string {
	switch e.Kind {
	case KindStrip:
		return fmt.Sprintf("strip/%d", e.Strip.ID)
	case KindZone:
		return fmt.Sprintf("strip/%d/zone/%d", e.Zone.StripID, e.Zone.ID)
	case KindDevice:
		return fmt.Sprintf("device/%d", e.Device.ID)
	default:
		return "unknown"
	}
}

// State returns the sync state of the wrapped entity.
func (e Entity) State() model.SyncState {
	switch e.Kind {
	case KindStrip:
		return e.Strip.State
	case KindZone:
		return e.Zone.State
	case KindDevice:
		return e.Device.State
	default:
		return model.Confirmed
	}
}

// String implements fmt.Stringer.
func (e Entity) String() string {
	return e.Ref()
}

// Renderer is notified of model changes. Implementations present the model
// to the operator; they must not call back into the Reconciler from these
// methods except through AcknowledgeRemoval.
type Renderer interface {
	// OnEntityCreated is called once per entity and ordinal.
	OnEntityCreated(e Entity)

	// OnEntityUpdated is called after fields or sync state of e changed.
	OnEntityUpdated(e Entity)

	// OnEntityRemoved is called when e should disappear. Zones and devices
	// removed by a delete request stay in the model until
	// AcknowledgeRemoval is called with the same entity.
	OnEntityRemoved(e Entity)

	// OnConnectionStateChanged reports the offline indicator. It turns
	// online only when a message has been decoded after a (re)connect.
	OnConnectionStateChanged(online bool)
}

// Sender transmits one encoded command frame.
type Sender interface {
	Send(data []byte) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(data []byte) error

// Send implements Sender.
func (f SenderFunc) Send(data []byte) error {
	return f(data)
}
