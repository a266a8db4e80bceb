package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mled-io/mled-go/pkg/log"
	"github.com/mled-io/mled-go/pkg/model"
	"github.com/mled-io/mled-go/pkg/picker"
	"github.com/mled-io/mled-go/pkg/throttle"
	"github.com/mled-io/mled-go/pkg/wire"
)

var (
	// ErrUnknownEntity is returned for an intent naming a strip, zone,
	// device or coil that is not in the model.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrNotDeletable is returned when deleting anything but the last zone,
	// or an entity already pending deletion.
	ErrNotDeletable = errors.New("entity cannot be deleted")

	// ErrBudgetExhausted is returned by RequestZoneCreate when the create
	// affordance should have been hidden.
	ErrBudgetExhausted = errors.New("no pixels left for a new zone")

	// ErrPendingDelete is returned for edits of an entity awaiting removal.
	ErrPendingDelete = errors.New("entity is pending deletion")

	// ErrNoSender is returned when a command is produced without a Sender.
	ErrNoSender = errors.New("no sender")
)

// Mode is the synchronization mode of a Reconciler.
type Mode uint8

const (
	// ModeOffline means no transport is connected.
	ModeOffline Mode = iota

	// ModeAwaitingSnapshot means the transport is connected but no snapshot
	// has been applied since.
	ModeAwaitingSnapshot

	// ModeSynced means at least one snapshot has been applied on the
	// current connection.
	ModeSynced
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeOffline:
		return "OFFLINE"
	case ModeAwaitingSnapshot:
		return "AWAITING_SNAPSHOT"
	case ModeSynced:
		return "SYNCED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Reconciler.
type Config struct {
	// Protocol selects the wire variant of the session.
	Protocol wire.Protocol

	// Renderer receives model notifications (optional).
	Renderer Renderer

	// Sender transmits commands.
	Sender Sender

	// Registry is the model to reconcile (default: a new registry).
	Registry *model.Registry

	// Geometry of the colour widgets used by RequestColorDrag.
	Geometry picker.Geometry

	// ThrottleInterval is the colour update window (default:
	// throttle.DefaultInterval).
	ThrottleInterval time.Duration

	// Scheduler arms the colour throttle timers (default:
	// throttle.RealScheduler).
	Scheduler throttle.Scheduler

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger captures decoded messages and model state changes
	// (optional).
	ProtocolLogger log.Logger
}

// colorDrag is the picker and throttle of one zone.
type colorDrag struct {
	picker   *picker.Picker
	throttle *throttle.Throttle[wire.SetZoneEffect]
}

type zoneKey struct {
	strip, zone int
}

// Reconciler bridges decoded snapshots, the local model and user intents.
type Reconciler struct {
	protocol wire.Protocol
	renderer Renderer
	sender   Sender
	reg      *model.Registry

	geometry         picker.Geometry
	throttleInterval time.Duration
	scheduler        throttle.Scheduler
	drags            map[zoneKey]*colorDrag

	logger    *slog.Logger
	protoLog  log.Logger
	connID    string
	mode      Mode
	online    bool
	snapshots int
}

// New creates a reconciler in ModeOffline.
func New(config Config) *Reconciler {
	reg := config.Registry
	if reg == nil {
		reg = model.NewRegistry()
	}
	return &Reconciler{
		protocol:         config.Protocol,
		renderer:         config.Renderer,
		sender:           config.Sender,
		reg:              reg,
		geometry:         config.Geometry,
		throttleInterval: config.ThrottleInterval,
		scheduler:        config.Scheduler,
		drags:            make(map[zoneKey]*colorDrag),
		logger:           config.Logger,
		protoLog:         log.OrNoop(config.ProtocolLogger),
	}
}

// Protocol returns the wire variant of the session.
func (r *Reconciler) Protocol() wire.Protocol {
	return r.protocol
}

// Registry returns the reconciled model.
func (r *Reconciler) Registry() *model.Registry {
	return r.reg
}

// Mode returns the synchronization mode.
func (r *Reconciler) Mode() Mode {
	return r.mode
}

// Online reports the current offline indicator state.
func (r *Reconciler) Online() bool {
	return r.online
}

// SnapshotCount returns the number of snapshots applied in this session.
func (r *Reconciler) SnapshotCount() int {
	return r.snapshots
}

// SetSender replaces the command sender.
func (r *Reconciler) SetSender(s Sender) {
	r.sender = s
}

// SetConnectionID sets the id stamped on captured events.
func (r *Reconciler) SetConnectionID(id string) {
	r.connID = id
}

// SetGeometry updates the colour widget geometry of every zone.
func (r *Reconciler) SetGeometry(g picker.Geometry) {
	r.geometry = g
	for _, d := range r.drags {
		d.picker.SetGeometry(g)
	}
}

// AnnounceConnectionState tells the renderer the current connection state
// even if it did not change. A session calls it once before its first
// connection attempt so the offline indicator does not depend on the
// renderer's initial state.
func (r *Reconciler) AnnounceConnectionState() {
	if r.renderer != nil {
		r.renderer.OnConnectionStateChanged(r.online)
	}
}

// OnConnected enters ModeAwaitingSnapshot. The offline indicator stays on
// until the first message is decoded.
func (r *Reconciler) OnConnected() {
	r.setMode(ModeAwaitingSnapshot, "transport connected")
}

// OnDisconnected keeps the model, drops pending colour updates and turns
// the offline indicator on.
func (r *Reconciler) OnDisconnected() {
	for _, d := range r.drags {
		d.throttle.Stop()
	}
	r.setMode(ModeOffline, "transport lost")
	r.setOnline(false)
}

// HandleMessage decodes one inbound frame and applies it. Decode errors are
// logged and returned; the frame is discarded and the session continues.
func (r *Reconciler) HandleMessage(data []byte) error {
	msg, err := wire.Decode(r.protocol, data)
	if err != nil {
		r.decodeFailed(data, err)
		return err
	}

	r.setOnline(true)

	switch m := msg.(type) {
	case *wire.StripSnapshot:
		r.logSnapshot(byte(wire.MsgStripSnapshot), wire.MsgStripSnapshot.String(), len(m.Strips))
		r.ReconcileByPosition(m)
	case *wire.DeviceSnapshot:
		r.logSnapshot(byte(wire.BusMsgDeviceSnapshot), wire.BusMsgDeviceSnapshot.String(), len(m.Devices))
		r.ReconcileDevicesByPosition(m)
	default:
		return fmt.Errorf("unhandled message %T", msg)
	}

	r.snapshots++
	if r.mode == ModeAwaitingSnapshot {
		r.setMode(ModeSynced, "first snapshot")
	}
	return nil
}

// ReconcileByPosition applies a strip snapshot. The record at index i
// updates the strip at ordinal i, creating it if the model has none. Local
// strips past the end of the snapshot are left alone. Fields are
// overwritten (the device wins); a strip shrunk below its zone allocation
// is trimmed from the tail. Records past the last addressable index are
// ignored.
func (r *Reconciler) ReconcileByPosition(snap *wire.StripSnapshot) {
	for i, rec := range snap.Strips {
		if i > math.MaxUint8 {
			r.warnLog("strip snapshot exceeds addressable strips", "records", len(snap.Strips))
			break
		}
		order := string(rec.ChannelOrder[:])

		st := r.reg.Strip(i)
		if st == nil {
			st = r.reg.AddStrip(rec.PixelCount, order)
			st.State = model.Confirmed
			r.logModel(StripEntity(st), "", model.Confirmed.String(), "created")
			r.notifyCreated(StripEntity(st))
			continue
		}

		changed := st.PixelCount != rec.PixelCount || st.ChannelOrder != model.NormalizeChannelOrder(order)
		st.PixelCount = rec.PixelCount
		st.SetChannelOrder(order)

		for _, z := range st.TrimToFit() {
			changed = true
			r.dropDrag(z)
			r.logModel(ZoneEntity(z), z.State.String(), "", "trimmed by snapshot")
			if z.State != model.PendingDelete {
				r.notifyRemoved(ZoneEntity(z))
			}
		}

		for _, z := range st.Zones {
			if z.State == model.Pending {
				changed = true
				r.logModel(ZoneEntity(z), z.State.String(), model.Confirmed.String(), "snapshot")
			}
		}
		if st.State != model.Confirmed {
			changed = true
			r.logModel(StripEntity(st), st.State.String(), model.Confirmed.String(), "snapshot")
		}
		st.Confirm()

		if changed {
			r.notifyUpdated(StripEntity(st))
		}
	}

	if n := r.reg.StripCount(); n > len(snap.Strips) && len(snap.Strips) <= math.MaxUint8+1 {
		r.warnLog("strip snapshot shorter than model", "records", len(snap.Strips), "strips", n)
	}
}

// ReconcileDevicesByPosition applies a fieldbus device snapshot by slot.
// Slots the operator deleted stay empty for the rest of the session.
// Slots past the last addressable index are ignored.
func (r *Reconciler) ReconcileDevicesByPosition(snap *wire.DeviceSnapshot) {
	known := r.reg.DeviceSlots()

	for i, rec := range snap.Devices {
		if i > math.MaxUint8 {
			r.warnLog("device snapshot exceeds addressable slots", "slots", len(snap.Devices))
			break
		}
		d := r.reg.Device(i)
		if d == nil {
			if i < known {
				continue
			}
			d = r.reg.PutDevice(i)
			applyDeviceRecord(d, rec)
			d.State = model.Confirmed
			r.logModel(DeviceEntity(d), "", model.Confirmed.String(), "created")
			r.notifyCreated(DeviceEntity(d))
			continue
		}

		changed := applyDeviceRecord(d, rec)
		if d.State == model.Pending {
			changed = true
			r.logModel(DeviceEntity(d), d.State.String(), model.Confirmed.String(), "snapshot")
			d.State = model.Confirmed
		}
		if changed && d.State != model.PendingDelete {
			r.notifyUpdated(DeviceEntity(d))
		}
	}
}

// applyDeviceRecord overwrites d with rec and reports whether anything
// changed.
func applyDeviceRecord(d *model.FieldDevice, rec wire.DeviceRecord) bool {
	changed := d.Present != rec.Present || d.Address != rec.Address ||
		d.Coils != rec.Coils || d.Inputs != rec.Inputs
	d.Present = rec.Present
	d.Address = rec.Address
	d.Coils = rec.Coils
	d.Inputs = rec.Inputs
	return changed
}

func (r *Reconciler) setMode(m Mode, reason string) {
	if r.mode == m {
		return
	}
	old := r.mode
	r.mode = m
	r.protoLog.Log(r.event(log.DirectionIn, log.LayerModel, log.CategoryState, func(e *log.Event) {
		e.StateChange = &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: old.String(),
			NewState: m.String(),
			Reason:   reason,
		}
	}))
	r.debugLog("sync mode changed", "from", old, "to", m, "reason", reason)
}

func (r *Reconciler) setOnline(online bool) {
	if r.online == online {
		return
	}
	r.online = online
	if r.renderer != nil {
		r.renderer.OnConnectionStateChanged(online)
	}
}

func (r *Reconciler) notifyCreated(e Entity) {
	if r.renderer != nil {
		r.renderer.OnEntityCreated(e)
	}
}

func (r *Reconciler) notifyUpdated(e Entity) {
	if r.renderer != nil {
		r.renderer.OnEntityUpdated(e)
	}
}

func (r *Reconciler) notifyRemoved(e Entity) {
	if r.renderer != nil {
		r.renderer.OnEntityRemoved(e)
	}
}

func (r *Reconciler) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Reconciler) warnLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Reconciler) errorLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}
