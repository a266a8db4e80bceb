package reconcile

import (
	"fmt"

	"github.com/mled-io/mled-go/pkg/model"
	"github.com/mled-io/mled-go/pkg/picker"
	"github.com/mled-io/mled-go/pkg/throttle"
	"github.com/mled-io/mled-go/pkg/wire"
	"gonum.org/v1/gonum/spatial/r2"
)

// RequestStripResize sets the pixel count of a strip, clamped to at least
// the pixels already allocated to zones. Returns the stored value.
func (r *Reconciler) RequestStripResize(strip int, n uint32) (uint32, error) {
	st := r.reg.Strip(strip)
	if st == nil {
		return 0, fmt.Errorf("%w: strip %d", ErrUnknownEntity, strip)
	}

	n = st.SetPixelCount(n)
	r.markStrip(st, "resize")
	r.notifyUpdated(StripEntity(st))
	return n, r.sendStripConfig(st)
}

// RequestChannelOrderChange sets the channel order of a strip. Anything
// but a permutation of R, G and B becomes "RGB". Returns the stored value.
func (r *Reconciler) RequestChannelOrderChange(strip int, order string) (string, error) {
	st := r.reg.Strip(strip)
	if st == nil {
		return "", fmt.Errorf("%w: strip %d", ErrUnknownEntity, strip)
	}

	order = st.SetChannelOrder(order)
	r.markStrip(st, "channel order")
	r.notifyUpdated(StripEntity(st))
	return order, r.sendStripConfig(st)
}

func (r *Reconciler) sendStripConfig(st *model.Strip) error {
	return r.sendCommand(wire.SetStripConfig{
		Strip:        uint8(st.ID),
		PixelCount:   st.PixelCount,
		ChannelOrder: wire.OrderBytes(st.ChannelOrder),
	})
}

// RequestZoneCreate appends a one-pixel zone to a strip and announces it to
// the device.
func (r *Reconciler) RequestZoneCreate(strip int) (*model.Zone, error) {
	st := r.reg.Strip(strip)
	if st == nil {
		return nil, fmt.Errorf("%w: strip %d", ErrUnknownEntity, strip)
	}
	if !st.CanCreateZone() {
		return nil, fmt.Errorf("%w: strip %d", ErrBudgetExhausted, strip)
	}

	z := st.CreateZone()
	z.State = model.Pending
	r.logModel(ZoneEntity(z), "", model.Pending.String(), "create")
	r.notifyCreated(ZoneEntity(z))
	r.notifyUpdated(StripEntity(st))

	return z, r.sendCommand(wire.SetZoneSize{
		Strip:      uint8(st.ID),
		Zone:       uint8(z.ID),
		PixelCount: z.PixelCount,
	})
}

// RequestZoneResize sets the pixel count of a zone, clamped to
// [1, remaining budget + current size]. Returns the stored value.
func (r *Reconciler) RequestZoneResize(strip, zone int, n uint32) (uint32, error) {
	st, z, err := r.zone(strip, zone)
	if err != nil {
		return 0, err
	}
	if z.State == model.PendingDelete {
		return z.PixelCount, fmt.Errorf("%w: %s", ErrPendingDelete, ZoneEntity(z))
	}

	n = model.ClampZoneSize(st, z, n)
	z.SetPixelCount(n)
	r.markZone(z, "resize")
	r.notifyUpdated(ZoneEntity(z))
	r.notifyUpdated(StripEntity(st))

	return n, r.sendCommand(wire.SetZoneSize{
		Strip:      uint8(st.ID),
		Zone:       uint8(z.ID),
		PixelCount: n,
	})
}

// RequestZoneDelete starts deleting the last zone of a strip. The confirm
// step is the renderer's; this marks the zone PendingDelete, sends a zero
// size for it and asks the renderer to remove it. The zone keeps its
// pixels until AcknowledgeRemoval.
func (r *Reconciler) RequestZoneDelete(strip, zone int) error {
	st, z, err := r.zone(strip, zone)
	if err != nil {
		return err
	}
	if !st.CanDeleteZone(zone) {
		return fmt.Errorf("%w: %s", ErrNotDeletable, ZoneEntity(z))
	}

	r.logModel(ZoneEntity(z), z.State.String(), model.PendingDelete.String(), "delete")
	z.State = model.PendingDelete
	if d := r.drags[zoneKey{strip, zone}]; d != nil {
		d.throttle.Stop()
	}

	sendErr := r.sendCommand(wire.SetZoneSize{
		Strip: uint8(st.ID),
		Zone:  uint8(z.ID),
	})
	r.notifyRemoved(ZoneEntity(z))
	return sendErr
}

// RequestEffectChange sets the effect of a zone. Effects without a wire
// layout are rejected before the model is touched.
func (r *Reconciler) RequestEffectChange(strip, zone int, effect model.Effect) error {
	st, z, err := r.zone(strip, zone)
	if err != nil {
		return err
	}
	if z.State == model.PendingDelete {
		return fmt.Errorf("%w: %s", ErrPendingDelete, ZoneEntity(z))
	}

	cmd := wire.SetZoneEffect{
		Strip: uint8(st.ID),
		Zone:  uint8(z.ID),
		Mode:  effect.Mode,
		Color: effect.Color,
	}
	data, err := r.encode(cmd)
	if err != nil {
		return err
	}

	z.Effect = effect
	if d := r.drags[zoneKey{strip, zone}]; d != nil && effect.Mode == wire.EffectSingleColor {
		d.picker.SetState(stateFromHSL(effect.Color))
	}
	r.markZone(z, "effect")
	r.notifyUpdated(ZoneEntity(z))
	return r.transmit(cmd, data)
}

// RequestColorDrag applies a pointer position to the colour widget of a
// zone. The zone colour is updated at once; the command is throttled so at
// most one is sent per window, carrying the latest colour. Returns whether
// the colour changed.
func (r *Reconciler) RequestColorDrag(strip, zone int, target picker.Target, pt r2.Vec) (bool, error) {
	_, z, err := r.zone(strip, zone)
	if err != nil {
		return false, err
	}
	if z.State == model.PendingDelete {
		return false, fmt.Errorf("%w: %s", ErrPendingDelete, ZoneEntity(z))
	}

	d := r.drag(z)
	if !d.picker.Drag(target, pt) {
		return false, nil
	}

	z.Effect = model.Effect{Mode: wire.EffectSingleColor, Color: hslFromState(d.picker.State())}
	r.markZone(z, "color")
	r.notifyUpdated(ZoneEntity(z))

	d.throttle.Push(wire.SetZoneEffect{
		Strip: uint8(z.StripID),
		Zone:  uint8(z.ID),
		Mode:  wire.EffectSingleColor,
		Color: z.Effect.Color,
	})
	return true, nil
}

// Picker returns the colour widget of a zone, creating it from the zone's
// colour on first use.
func (r *Reconciler) Picker(strip, zone int) (*picker.Picker, error) {
	_, z, err := r.zone(strip, zone)
	if err != nil {
		return nil, err
	}
	return r.drag(z).picker, nil
}

func (r *Reconciler) drag(z *model.Zone) *colorDrag {
	key := zoneKey{z.StripID, z.ID}
	if d := r.drags[key]; d != nil {
		return d
	}

	p := picker.New(r.geometry)
	if z.Effect.Mode == wire.EffectSingleColor {
		p.SetState(stateFromHSL(z.Effect.Color))
	}
	d := &colorDrag{
		picker: p,
		throttle: throttle.New(r.throttleInterval, r.scheduler, func(cmd wire.SetZoneEffect) {
			_ = r.sendCommand(cmd)
		}),
	}
	r.drags[key] = d
	return d
}

func (r *Reconciler) dropDrag(z *model.Zone) {
	key := zoneKey{z.StripID, z.ID}
	if d := r.drags[key]; d != nil {
		d.throttle.Stop()
		delete(r.drags, key)
	}
}

// RequestCoilToggle flips one coil of a fieldbus device and returns its
// new state.
func (r *Reconciler) RequestCoilToggle(device, coil int) (bool, error) {
	d, err := r.device(device)
	if err != nil {
		return false, err
	}
	if coil < 0 || coil >= model.NumCoils {
		return false, fmt.Errorf("%w: coil %d of %s", ErrUnknownEntity, coil, DeviceEntity(d))
	}

	on := !d.Coil(coil)
	d.SetCoil(coil, on)
	r.markDevice(d, "coil")
	r.notifyUpdated(DeviceEntity(d))

	return on, r.sendCommand(wire.SetCoil{Device: uint8(d.ID), Coil: uint8(coil), On: on})
}

// RequestDeviceAddressChange sets the bus address of a fieldbus device.
func (r *Reconciler) RequestDeviceAddressChange(device int, address uint8) error {
	d, err := r.device(device)
	if err != nil {
		return err
	}

	d.Address = address
	r.markDevice(d, "address")
	r.notifyUpdated(DeviceEntity(d))

	return r.sendCommand(wire.SetDeviceAddress{Device: uint8(d.ID), Address: address})
}

// RequestDeviceDelete starts deleting a fieldbus device; see
// RequestZoneDelete for the two-phase protocol.
func (r *Reconciler) RequestDeviceDelete(device int) error {
	d, err := r.device(device)
	if err != nil {
		return err
	}

	r.logModel(DeviceEntity(d), d.State.String(), model.PendingDelete.String(), "delete")
	d.State = model.PendingDelete

	sendErr := r.sendCommand(wire.DeleteDevice{Device: uint8(d.ID)})
	r.notifyRemoved(DeviceEntity(d))
	return sendErr
}

// AcknowledgeRemoval completes a delete once the renderer has removed the
// entity. Entities not pending deletion are ignored.
func (r *Reconciler) AcknowledgeRemoval(e Entity) {
	switch e.Kind {
	case KindZone:
		z := e.Zone
		st := z.Strip()
		if z.State != model.PendingDelete || st == nil || st.LastZone() != z {
			return
		}
		st.DeleteLastZone()
		r.dropDrag(z)
		r.logModel(e, model.PendingDelete.String(), "", "removal acknowledged")
		r.notifyUpdated(StripEntity(st))

	case KindDevice:
		d := e.Device
		if d.State != model.PendingDelete || r.reg.Device(d.ID) != d {
			return
		}
		r.reg.RemoveDevice(d.ID)
		r.logModel(e, model.PendingDelete.String(), "", "removal acknowledged")
	}
}

func (r *Reconciler) zone(strip, zone int) (*model.Strip, *model.Zone, error) {
	st := r.reg.Strip(strip)
	if st == nil {
		return nil, nil, fmt.Errorf("%w: strip %d", ErrUnknownEntity, strip)
	}
	z := st.Zone(zone)
	if z == nil {
		return nil, nil, fmt.Errorf("%w: zone %d of strip %d", ErrUnknownEntity, zone, strip)
	}
	return st, z, nil
}

// device returns a present device that is not being deleted.
func (r *Reconciler) device(id int) (*model.FieldDevice, error) {
	d := r.reg.Device(id)
	if d == nil || !d.Present {
		return nil, fmt.Errorf("%w: device %d", ErrUnknownEntity, id)
	}
	if d.State == model.PendingDelete {
		return nil, fmt.Errorf("%w: %s", ErrPendingDelete, DeviceEntity(d))
	}
	return d, nil
}

func (r *Reconciler) markStrip(st *model.Strip, reason string) {
	if st.State != model.Pending {
		r.logModel(StripEntity(st), st.State.String(), model.Pending.String(), reason)
		st.State = model.Pending
	}
}

func (r *Reconciler) markZone(z *model.Zone, reason string) {
	if z.State != model.Pending {
		r.logModel(ZoneEntity(z), z.State.String(), model.Pending.String(), reason)
		z.State = model.Pending
	}
}

func (r *Reconciler) markDevice(d *model.FieldDevice, reason string) {
	if d.State != model.Pending {
		r.logModel(DeviceEntity(d), d.State.String(), model.Pending.String(), reason)
		d.State = model.Pending
	}
}

func stateFromHSL(c wire.HSL) picker.State {
	return picker.State{
		Hue:        float64(c.Hue),
		Saturation: float64(c.Saturation),
		Luminance:  float64(c.Luminance),
	}
}

func hslFromState(s picker.State) wire.HSL {
	return wire.HSL{
		Hue:        float32(s.Hue),
		Saturation: float32(s.Saturation),
		Luminance:  float32(s.Luminance),
	}
}
