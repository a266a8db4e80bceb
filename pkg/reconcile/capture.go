package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/mled-io/mled-go/pkg/log"
	"github.com/mled-io/mled-go/pkg/wire"
)

// sendCommand encodes and transmits cmd.
func (r *Reconciler) sendCommand(cmd wire.Command) error {
	data, err := r.encode(cmd)
	if err != nil {
		return err
	}
	return r.transmit(cmd, data)
}

// encode encodes cmd. Failures are programmer errors and are reported at
// error level.
func (r *Reconciler) encode(cmd wire.Command) ([]byte, error) {
	data, err := wire.Encode(cmd)
	if err != nil {
		r.errorLog("encode failed", "command", fmt.Sprintf("%+v", cmd), "error", err)
		r.logError(log.LayerWire, "encode", err)
		return nil, err
	}
	return data, nil
}

func (r *Reconciler) transmit(cmd wire.Command, data []byte) error {
	r.protoLog.Log(r.event(log.DirectionOut, log.LayerWire, log.CategoryMessage, func(e *log.Event) {
		e.Message = describeCommand(cmd, data[0])
	}))

	if r.sender == nil {
		r.warnLog("command dropped", "id", data[0], "error", ErrNoSender)
		return ErrNoSender
	}
	if err := r.sender.Send(data); err != nil {
		r.warnLog("send failed", "id", data[0], "error", err)
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// decodeFailed reports a discarded inbound frame. Unimplemented message
// ids indicate a protocol version mismatch and are reported at error
// level.
func (r *Reconciler) decodeFailed(data []byte, err error) {
	args := []any{"protocol", r.protocol, "size", len(data), "error", err}
	if errors.Is(err, wire.ErrUnimplementedMessage) {
		r.errorLog("device sent an unimplemented message", args...)
	} else {
		r.warnLog("discarded inbound message", args...)
	}
	r.logError(log.LayerWire, "decode", err)
}

func (r *Reconciler) logSnapshot(id byte, name string, count int) {
	r.protoLog.Log(r.event(log.DirectionIn, log.LayerWire, log.CategoryMessage, func(e *log.Event) {
		e.Message = &log.MessageEvent{
			Type:  log.MessageTypeSnapshot,
			ID:    id,
			Name:  name,
			Count: count,
		}
	}))
}

func (r *Reconciler) logModel(ent Entity, oldState, newState, reason string) {
	if newState == "" {
		newState = "REMOVED"
	}
	r.protoLog.Log(r.event(log.DirectionIn, log.LayerModel, log.CategoryState, func(e *log.Event) {
		e.StateChange = &log.StateChangeEvent{
			Entity:   log.StateEntityModel,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
			Ref:      ent.Ref(),
		}
	}))
}

func (r *Reconciler) logError(layer log.Layer, context string, err error) {
	r.protoLog.Log(r.event(log.DirectionIn, layer, log.CategoryError, func(e *log.Event) {
		e.Error = &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		}
	}))
}

func (r *Reconciler) event(dir log.Direction, layer log.Layer, cat log.Category, fill func(*log.Event)) log.Event {
	e := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: r.connID,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		LocalRole:    log.RoleClient,
		Protocol:     r.protocol.String(),
	}
	fill(&e)
	return e
}

// describeCommand builds the capture payload of an outbound command.
func describeCommand(cmd wire.Command, id byte) *log.MessageEvent {
	m := &log.MessageEvent{Type: log.MessageTypeCommand, ID: id}

	switch c := cmd.(type) {
	case wire.SetStripConfig:
		m.Name = wire.CmdSetStripConfig.String()
		m.Strip = log.Uint8(c.Strip)
		m.Payload = map[string]any{"pixels": c.PixelCount, "order": string(c.ChannelOrder[:])}
	case wire.SetZoneSize:
		m.Name = wire.CmdSetZoneSize.String()
		m.Strip = log.Uint8(c.Strip)
		m.Zone = log.Uint8(c.Zone)
		m.Payload = map[string]any{"pixels": c.PixelCount}
	case wire.SetZoneEffect:
		m.Name = wire.CmdSetZoneEffect.String()
		m.Strip = log.Uint8(c.Strip)
		m.Zone = log.Uint8(c.Zone)
		m.Payload = map[string]any{
			"mode": c.Mode.String(),
			"hue":  c.Color.Hue,
			"sat":  c.Color.Saturation,
			"lum":  c.Color.Luminance,
		}
	case wire.SetCoil:
		m.Name = wire.BusCommandID(id).String()
		m.Device = log.Uint8(c.Device)
		m.Payload = map[string]any{"coil": c.Coil}
	case wire.SetDeviceAddress:
		m.Name = wire.BusCmdSetAddress.String()
		m.Device = log.Uint8(c.Device)
		m.Payload = map[string]any{"address": c.Address}
	case wire.DeleteDevice:
		m.Name = wire.BusCmdDeleteDevice.String()
		m.Device = log.Uint8(c.Device)
	default:
		m.Name = fmt.Sprintf("%T", cmd)
	}
	return m
}
