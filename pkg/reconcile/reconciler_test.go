package reconcile

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mled-io/mled-go/pkg/log"
	"github.com/mled-io/mled-go/pkg/model"
	"github.com/mled-io/mled-go/pkg/picker"
	"github.com/mled-io/mled-go/pkg/throttle"
	"github.com/mled-io/mled-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// ---------------------------------------------------------------------------
// stubs
// ---------------------------------------------------------------------------

type stubRenderer struct{ mock.Mock }

func (r *stubRenderer) OnEntityCreated(e Entity)             { r.Called(e) }
func (r *stubRenderer) OnEntityUpdated(e Entity)             { r.Called(e) }
func (r *stubRenderer) OnEntityRemoved(e Entity)             { r.Called(e) }
func (r *stubRenderer) OnConnectionStateChanged(online bool) { r.Called(online) }

func newStubRenderer() *stubRenderer {
	r := &stubRenderer{}
	r.On("OnEntityCreated", mock.Anything).Return().Maybe()
	r.On("OnEntityUpdated", mock.Anything).Return().Maybe()
	r.On("OnEntityRemoved", mock.Anything).Return().Maybe()
	r.On("OnConnectionStateChanged", mock.Anything).Return().Maybe()
	return r
}

// calls returns the entities passed to method, in call order.
func (r *stubRenderer) calls(method string) []Entity {
	var out []Entity
	for _, c := range r.Calls {
		if c.Method == method {
			out = append(out, c.Arguments.Get(0).(Entity))
		}
	}
	return out
}

type recordingSender struct {
	frames [][]byte
	err    error
}

func (s *recordingSender) Send(data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append([]byte(nil), data...))
	return nil
}

func (s *recordingSender) last() []byte {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

type recordingLogger struct {
	events []log.Event
}

func (l *recordingLogger) Log(e log.Event) {
	l.events = append(l.events, e)
}

func (l *recordingLogger) byCategory(c log.Category) []log.Event {
	var out []log.Event
	for _, e := range l.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	rec      *Reconciler
	renderer *stubRenderer
	sender   *recordingSender
	capture  *recordingLogger
	sched    *throttle.ManualScheduler
}

func newFixture(p wire.Protocol) *fixture {
	f := &fixture{
		renderer: newStubRenderer(),
		sender:   &recordingSender{},
		capture:  &recordingLogger{},
		sched:    throttle.NewManualScheduler(),
	}
	f.rec = New(Config{
		Protocol:       p,
		Renderer:       f.renderer,
		Sender:         f.sender,
		Geometry:       picker.NewGeometry(r2.NewBox(0, 0, 200, 200)),
		Scheduler:      f.sched,
		ProtocolLogger: f.capture,
	})
	return f
}

func stripSnapshot(strips ...wire.StripRecord) []byte {
	return wire.EncodeStripSnapshot(&wire.StripSnapshot{Strips: strips})
}

func strip(pixels uint32, order string) wire.StripRecord {
	return wire.StripRecord{PixelCount: pixels, ChannelOrder: wire.OrderBytes(order)}
}

// connected returns a fixture that received one snapshot with the given
// strips.
func connected(t *testing.T, strips ...wire.StripRecord) *fixture {
	t.Helper()
	f := newFixture(wire.ProtocolLED)
	f.rec.OnConnected()
	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strips...)))
	return f
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func TestFirstSnapshotCreatesStrips(t *testing.T) {
	f := newFixture(wire.ProtocolLED)
	assert.Equal(t, ModeOffline, f.rec.Mode())

	f.rec.OnConnected()
	assert.Equal(t, ModeAwaitingSnapshot, f.rec.Mode())

	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strip(144, "GRB"), strip(60, "XYZ"))))

	assert.Equal(t, ModeSynced, f.rec.Mode())
	assert.True(t, f.rec.Online())
	f.renderer.AssertCalled(t, "OnConnectionStateChanged", true)

	created := f.renderer.calls("OnEntityCreated")
	require.Len(t, created, 2)
	assert.Equal(t, "strip/0", created[0].Ref())
	assert.Equal(t, "GRB", created[0].Strip.ChannelOrder)
	assert.Equal(t, "RGB", created[1].Strip.ChannelOrder, "invalid order replaced")
	assert.Equal(t, model.Confirmed, created[1].State())
	assert.Equal(t, 1, f.rec.SnapshotCount())
}

func TestSnapshotStopsAtLastAddressableStrip(t *testing.T) {
	recs := make([]wire.StripRecord, math.MaxUint8+2)
	for i := range recs {
		recs[i] = strip(10, "RGB")
	}
	f := connected(t, recs...)

	assert.Equal(t, math.MaxUint8+1, f.rec.Registry().StripCount())
	f.renderer.AssertNumberOfCalls(t, "OnEntityCreated", math.MaxUint8+1)

	_, err := f.rec.RequestStripResize(math.MaxUint8+1, 50)
	assert.ErrorIs(t, err, ErrUnknownEntity)
	assert.Empty(t, f.sender.frames, "no command may wrap to strip 0")

	_, err = f.rec.RequestStripResize(math.MaxUint8, 50)
	require.NoError(t, err)
	assert.Equal(t, byte(math.MaxUint8), f.sender.last()[1])
}

func TestLaterSnapshotUpdatesInPlace(t *testing.T) {
	f := connected(t, strip(144, "GRB"), strip(60, "RGB"))
	s0 := f.rec.Registry().Strip(0)

	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strip(144, "GRB"), strip(30, "BRG"))))

	f.renderer.AssertNumberOfCalls(t, "OnEntityCreated", 2)
	assert.Same(t, s0, f.rec.Registry().Strip(0))

	updated := f.renderer.calls("OnEntityUpdated")
	require.Len(t, updated, 1, "unchanged strips are not re-rendered")
	assert.Equal(t, "strip/1", updated[0].Ref())
	assert.Equal(t, uint32(30), updated[0].Strip.PixelCount)
	assert.Equal(t, "BRG", updated[0].Strip.ChannelOrder)
}

func TestAnnounceConnectionState(t *testing.T) {
	f := newFixture(wire.ProtocolLED)

	f.rec.AnnounceConnectionState()
	f.renderer.AssertCalled(t, "OnConnectionStateChanged", false)

	f.rec.OnConnected()
	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strip(10, "RGB"))))
	f.rec.AnnounceConnectionState()
	f.renderer.AssertNumberOfCalls(t, "OnConnectionStateChanged", 3)
	assert.Equal(t, true, f.renderer.Calls[len(f.renderer.Calls)-1].Arguments.Bool(0))
}

func TestReconnectEntersAwaitingSnapshot(t *testing.T) {
	f := connected(t, strip(10, "RGB"))

	f.rec.OnDisconnected()
	assert.Equal(t, ModeOffline, f.rec.Mode())
	assert.False(t, f.rec.Online())
	f.renderer.AssertCalled(t, "OnConnectionStateChanged", false)
	assert.Equal(t, 1, f.rec.Registry().StripCount(), "model kept while offline")

	f.rec.OnConnected()
	assert.False(t, f.rec.Online(), "offline until a message is decoded")

	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strip(10, "RGB"))))
	assert.True(t, f.rec.Online())
	assert.Equal(t, ModeSynced, f.rec.Mode())
	f.renderer.AssertNumberOfCalls(t, "OnEntityCreated", 1)
}

func TestDecodeErrorsAreDiscarded(t *testing.T) {
	f := newFixture(wire.ProtocolLED)
	f.rec.OnConnected()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"zone snapshot", []byte{1, 0, 0, 0, 0, 5}, wire.ErrUnimplementedMessage},
		{"effect snapshot", []byte{2, 0}, wire.ErrUnimplementedMessage},
		{"truncated record", []byte{0, 0, 0, 0}, wire.ErrTruncated},
		{"unknown id", []byte{9}, wire.ErrUnknownMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.rec.HandleMessage(tt.data)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	assert.False(t, f.rec.Online(), "undecodable frames keep the offline indicator")
	assert.Equal(t, ModeAwaitingSnapshot, f.rec.Mode())
	f.renderer.AssertNotCalled(t, "OnEntityCreated", mock.Anything)

	errs := f.capture.byCategory(log.CategoryError)
	require.Len(t, errs, len(tests))
	assert.Equal(t, log.LayerWire, errs[0].Layer)
	assert.Equal(t, "decode", errs[0].Error.Context)
}

func TestSnapshotConfirmsPendingEdits(t *testing.T) {
	f := connected(t, strip(10, "RGB"))

	z, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	assert.Equal(t, model.Pending, z.State)

	_, err = f.rec.RequestStripResize(0, 12)
	require.NoError(t, err)
	assert.Equal(t, model.Pending, f.rec.Registry().Strip(0).State)

	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strip(12, "RGB"))))
	assert.Equal(t, model.Confirmed, z.State)
	assert.Equal(t, model.Confirmed, f.rec.Registry().Strip(0).State)
}

func TestSnapshotShrinkTrimsZones(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	_, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	_, err = f.rec.RequestZoneResize(0, 0, 5)
	require.NoError(t, err)
	_, err = f.rec.RequestZoneCreate(0)
	require.NoError(t, err)

	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strip(5, "RGB"))))

	st := f.rec.Registry().Strip(0)
	require.Len(t, st.Zones, 1)
	assert.Equal(t, uint32(5), st.UsedPixels)

	removed := f.renderer.calls("OnEntityRemoved")
	require.Len(t, removed, 1)
	assert.Equal(t, "strip/0/zone/1", removed[0].Ref())
}

// ---------------------------------------------------------------------------
// strip and zone intents
// ---------------------------------------------------------------------------

func TestRequestStripResizeEncodesConfig(t *testing.T) {
	f := connected(t, strip(10, "RGB"), strip(10, "RGB"), strip(100, "GRB"))

	n, err := f.rec.RequestStripResize(2, 144)
	require.NoError(t, err)
	assert.Equal(t, uint32(144), n)
	assert.Equal(t, []byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x90, 'G', 'R', 'B'}, f.sender.last())
}

func TestRequestStripResizeClampsToUsed(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	_, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	_, err = f.rec.RequestZoneResize(0, 0, 6)
	require.NoError(t, err)

	n, err := f.rec.RequestStripResize(0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), n)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 6, 'R', 'G', 'B'}, f.sender.last())
}

func TestRequestChannelOrderChange(t *testing.T) {
	f := connected(t, strip(10, "GRB"))

	got, err := f.rec.RequestChannelOrderChange(0, "RRB")
	require.NoError(t, err)
	assert.Equal(t, "RGB", got)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 10, 'R', 'G', 'B'}, f.sender.last())

	got, err = f.rec.RequestChannelOrderChange(0, "BGR")
	require.NoError(t, err)
	assert.Equal(t, "BGR", got)

	_, err = f.rec.RequestChannelOrderChange(3, "RGB")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestRequestZoneCreate(t *testing.T) {
	f := connected(t, strip(2, "RGB"))

	z, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	assert.Equal(t, 0, z.ID)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 1}, f.sender.last())

	created := f.renderer.calls("OnEntityCreated")
	assert.Equal(t, "strip/0/zone/0", created[len(created)-1].Ref())

	_, err = f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	_, err = f.rec.RequestZoneCreate(0)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Len(t, f.rec.Registry().Strip(0).Zones, 2)
}

func TestRequestZoneResizeClamps(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	for _, size := range []uint32{5, 2} {
		z, err := f.rec.RequestZoneCreate(0)
		require.NoError(t, err)
		_, err = f.rec.RequestZoneResize(0, z.ID, size)
		require.NoError(t, err)
	}
	require.Equal(t, uint32(7), f.rec.Registry().Strip(0).UsedPixels)

	n, err := f.rec.RequestZoneResize(0, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), n)
	assert.Equal(t, []byte{1, 0, 1, 0, 0, 0, 5}, f.sender.last())

	n, err = f.rec.RequestZoneResize(0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)

	_, err = f.rec.RequestZoneResize(0, 4, 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestZoneDeleteIsTwoPhase(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	_, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	z, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	st := f.rec.Registry().Strip(0)

	assert.ErrorIs(t, f.rec.RequestZoneDelete(0, 0), ErrNotDeletable, "only the last zone")

	require.NoError(t, f.rec.RequestZoneDelete(0, 1))
	assert.Equal(t, []byte{1, 0, 1, 0, 0, 0, 0}, f.sender.last())
	assert.Equal(t, model.PendingDelete, z.State)
	f.renderer.AssertCalled(t, "OnEntityRemoved", ZoneEntity(z))

	// Still in the model until the renderer acknowledges.
	assert.Len(t, st.Zones, 2)
	assert.False(t, st.CanCreateZone())
	assert.ErrorIs(t, f.rec.RequestZoneDelete(0, 1), ErrNotDeletable)
	_, err = f.rec.RequestZoneResize(0, 1, 3)
	assert.ErrorIs(t, err, ErrPendingDelete)

	// A snapshot in between does not resurrect or confirm it.
	require.NoError(t, f.rec.HandleMessage(stripSnapshot(strip(10, "RGB"))))
	assert.Equal(t, model.PendingDelete, z.State)

	f.rec.AcknowledgeRemoval(ZoneEntity(z))
	assert.Len(t, st.Zones, 1)
	assert.Equal(t, uint32(1), st.UsedPixels)
	assert.Nil(t, z.Strip())
	assert.True(t, st.CanCreateZone())

	// Acknowledging twice is harmless.
	f.rec.AcknowledgeRemoval(ZoneEntity(z))
	assert.Len(t, st.Zones, 1)
}

func TestAcknowledgeRemovalIgnoresLiveEntities(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	z, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)

	f.rec.AcknowledgeRemoval(ZoneEntity(z))
	assert.Len(t, f.rec.Registry().Strip(0).Zones, 1)
}

func TestRequestEffectChange(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	z, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)

	color := wire.HSL{Hue: 1, Saturation: 0.5, Luminance: 0.5}
	require.NoError(t, f.rec.RequestEffectChange(0, 0, model.Effect{Mode: wire.EffectSingleColor, Color: color}))
	assert.Equal(t, color, z.Effect.Color)

	cmd, err := wire.DecodeCommand(wire.ProtocolLED, f.sender.last())
	require.NoError(t, err)
	assert.Equal(t, wire.SetZoneEffect{Strip: 0, Zone: 0, Mode: wire.EffectSingleColor, Color: color}, cmd)

	p, err := f.rec.Picker(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, p.State().Hue, 1e-6)

	t.Run("unsupported effect is never sent", func(t *testing.T) {
		sent := len(f.sender.frames)
		err := f.rec.RequestEffectChange(0, 0, model.Effect{Mode: wire.EffectFade})
		assert.ErrorIs(t, err, wire.ErrUnsupportedEffect)
		assert.Len(t, f.sender.frames, sent)
		assert.Equal(t, wire.EffectSingleColor, z.Effect.Mode)

		errs := f.capture.byCategory(log.CategoryError)
		require.NotEmpty(t, errs)
		assert.Equal(t, "encode", errs[len(errs)-1].Error.Context)
	})
}

// ---------------------------------------------------------------------------
// colour drags
// ---------------------------------------------------------------------------

func huePoint(angle float64) r2.Vec {
	return r2.Vec{X: 100 + 50*math.Cos(angle), Y: 100 + 50*math.Sin(angle)}
}

func TestColorDragThrottle(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	z, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	sent := len(f.sender.frames)

	for i := 0; i < 5; i++ {
		changed, err := f.rec.RequestColorDrag(0, 0, picker.TargetHue, huePoint(0.3+float64(i)*0.4))
		require.NoError(t, err)
		assert.True(t, changed)
		f.sched.Advance(10 * time.Millisecond)
	}
	assert.Len(t, f.sender.frames, sent, "nothing sent inside the window")

	f.sched.Advance(40 * time.Millisecond)
	require.Len(t, f.sender.frames, sent+1, "exactly one command per window")

	cmd, err := wire.DecodeCommand(wire.ProtocolLED, f.sender.last())
	require.NoError(t, err)
	eff := cmd.(wire.SetZoneEffect)

	p, err := f.rec.Picker(0, 0)
	require.NoError(t, err)
	assert.Equal(t, hslFromState(p.State()), eff.Color, "carries the last value")
	assert.Equal(t, z.Effect.Color, eff.Color)
	assert.Equal(t, model.Pending, z.State)

	f.sched.Advance(time.Second)
	assert.Len(t, f.sender.frames, sent+1)
}

func TestColorDragUnchangedSendsNothing(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	_, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	sent := len(f.sender.frames)

	changed, err := f.rec.RequestColorDrag(0, 0, picker.TargetHue, r2.Vec{X: 100, Y: 100})
	require.NoError(t, err)
	assert.False(t, changed, "centre keeps the hue")

	f.sched.Advance(time.Second)
	assert.Len(t, f.sender.frames, sent)
}

func TestDisconnectDropsPendingColor(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	_, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)
	sent := len(f.sender.frames)

	_, err = f.rec.RequestColorDrag(0, 0, picker.TargetHue, huePoint(1))
	require.NoError(t, err)
	f.rec.OnDisconnected()

	f.sched.Advance(time.Second)
	assert.Len(t, f.sender.frames, sent)
}

// ---------------------------------------------------------------------------
// fieldbus
// ---------------------------------------------------------------------------

func deviceSnapshot(devs ...wire.DeviceRecord) []byte {
	return wire.EncodeDeviceSnapshot(&wire.DeviceSnapshot{Devices: devs})
}

var busSlots = []wire.DeviceRecord{
	{Present: true, Address: 0x01},
	{},
	{Present: true, Address: 0x0A, Coils: 0x81},
}

func TestFieldbusSnapshotAndIntents(t *testing.T) {
	f := newFixture(wire.ProtocolFieldbus)
	f.rec.OnConnected()
	require.NoError(t, f.rec.HandleMessage(deviceSnapshot(busSlots...)))
	f.renderer.AssertNumberOfCalls(t, "OnEntityCreated", 3)

	on, err := f.rec.RequestCoilToggle(0, 3)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []byte{0, 0, 3}, f.sender.last())

	on, err = f.rec.RequestCoilToggle(0, 3)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, []byte{1, 0, 3}, f.sender.last())

	_, err = f.rec.RequestCoilToggle(1, 0)
	assert.ErrorIs(t, err, ErrUnknownEntity, "empty slot")
	_, err = f.rec.RequestCoilToggle(0, 8)
	assert.ErrorIs(t, err, ErrUnknownEntity, "coil out of range")

	require.NoError(t, f.rec.RequestDeviceAddressChange(2, 0xFE))
	assert.Equal(t, []byte{2, 2, 0xFE}, f.sender.last())
	assert.Equal(t, "FE", f.rec.Registry().Device(2).AddressHex())
}

func TestFieldbusDeleteKeepsHole(t *testing.T) {
	f := newFixture(wire.ProtocolFieldbus)
	f.rec.OnConnected()
	require.NoError(t, f.rec.HandleMessage(deviceSnapshot(busSlots...)))
	d := f.rec.Registry().Device(2)

	require.NoError(t, f.rec.RequestDeviceDelete(2))
	assert.Equal(t, []byte{3, 2}, f.sender.last())
	assert.Equal(t, model.PendingDelete, d.State)
	f.renderer.AssertCalled(t, "OnEntityRemoved", DeviceEntity(d))
	assert.ErrorIs(t, f.rec.RequestDeviceDelete(2), ErrPendingDelete)

	require.NoError(t, f.rec.HandleMessage(deviceSnapshot(busSlots...)))
	for _, e := range f.renderer.calls("OnEntityUpdated") {
		assert.NotEqual(t, "device/2", e.Ref(), "pending delete is not re-rendered")
	}

	f.rec.AcknowledgeRemoval(DeviceEntity(d))
	assert.Nil(t, f.rec.Registry().Device(2))
	assert.Equal(t, 3, f.rec.Registry().DeviceSlots())

	require.NoError(t, f.rec.HandleMessage(deviceSnapshot(busSlots...)))
	f.renderer.AssertNumberOfCalls(t, "OnEntityCreated", 3)
	assert.Nil(t, f.rec.Registry().Device(2), "never created twice for one slot")
}

func TestFieldbusSnapshotStopsAtLastAddressableSlot(t *testing.T) {
	slots := make([]wire.DeviceRecord, math.MaxUint8+2)
	for i := range slots {
		slots[i] = wire.DeviceRecord{Present: true, Address: 0x10}
	}
	f := newFixture(wire.ProtocolFieldbus)
	f.rec.OnConnected()
	require.NoError(t, f.rec.HandleMessage(deviceSnapshot(slots...)))

	assert.Equal(t, math.MaxUint8+1, f.rec.Registry().DeviceSlots())
	assert.Nil(t, f.rec.Registry().Device(math.MaxUint8+1))

	_, err := f.rec.RequestCoilToggle(math.MaxUint8+1, 0)
	assert.ErrorIs(t, err, ErrUnknownEntity)
	assert.ErrorIs(t, f.rec.RequestDeviceDelete(math.MaxUint8+1), ErrUnknownEntity)
	assert.Empty(t, f.sender.frames)

	require.NoError(t, f.rec.RequestDeviceAddressChange(math.MaxUint8, 0x20))
	assert.Equal(t, []byte{2, math.MaxUint8, 0x20}, f.sender.last())
}

func TestFieldbusSnapshotConfirmsAndUpdates(t *testing.T) {
	f := newFixture(wire.ProtocolFieldbus)
	f.rec.OnConnected()
	require.NoError(t, f.rec.HandleMessage(deviceSnapshot(busSlots...)))

	_, err := f.rec.RequestCoilToggle(0, 0)
	require.NoError(t, err)
	d := f.rec.Registry().Device(0)
	assert.Equal(t, model.Pending, d.State)

	next := append([]wire.DeviceRecord(nil), busSlots...)
	next[0].Inputs = 0x04
	next = append(next, wire.DeviceRecord{Present: true, Address: 0x20})
	require.NoError(t, f.rec.HandleMessage(deviceSnapshot(next...)))

	assert.Equal(t, model.Confirmed, d.State)
	assert.Equal(t, uint8(0), d.Coils, "device wins over the optimistic toggle")
	assert.True(t, d.Input(2))
	f.renderer.AssertNumberOfCalls(t, "OnEntityCreated", 4)
}

// ---------------------------------------------------------------------------
// transport failures and capture
// ---------------------------------------------------------------------------

func TestSendFailureKeepsOptimisticEdit(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	f.sender.err = errors.New("connection closed")

	n, err := f.rec.RequestStripResize(0, 20)
	assert.Error(t, err)
	assert.Equal(t, uint32(20), n)
	assert.Equal(t, uint32(20), f.rec.Registry().Strip(0).PixelCount)
	assert.Equal(t, model.Pending, f.rec.Registry().Strip(0).State)
}

func TestNoSender(t *testing.T) {
	rec := New(Config{Protocol: wire.ProtocolLED})
	require.NoError(t, rec.HandleMessage(stripSnapshot(strip(10, "RGB"))))

	_, err := rec.RequestStripResize(0, 5)
	assert.ErrorIs(t, err, ErrNoSender)

	rec.SetSender(SenderFunc(func([]byte) error { return nil }))
	_, err = rec.RequestStripResize(0, 5)
	assert.NoError(t, err)
}

func TestCapture(t *testing.T) {
	f := connected(t, strip(10, "RGB"))
	f.rec.SetConnectionID("conn-1")

	_, err := f.rec.RequestZoneCreate(0)
	require.NoError(t, err)

	msgs := f.capture.byCategory(log.CategoryMessage)
	require.Len(t, msgs, 2)

	in := msgs[0]
	assert.Equal(t, log.DirectionIn, in.Direction)
	assert.Equal(t, log.MessageTypeSnapshot, in.Message.Type)
	assert.Equal(t, "STRIP_SNAPSHOT", in.Message.Name)
	assert.Equal(t, 1, in.Message.Count)

	out := msgs[1]
	assert.Equal(t, "conn-1", out.ConnectionID)
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, "SET_ZONE_SIZE", out.Message.Name)
	assert.Equal(t, uint8(0), *out.Message.Zone)
	assert.Equal(t, "led", out.Protocol)

	var refs []string
	for _, e := range f.capture.byCategory(log.CategoryState) {
		if e.StateChange.Entity == log.StateEntityModel {
			refs = append(refs, e.StateChange.Ref)
		}
	}
	assert.Contains(t, refs, "strip/0")
	assert.Contains(t, refs, "strip/0/zone/0")
}

func TestEntityRef(t *testing.T) {
	st := model.NewStrip(3, 10, "RGB")
	z := st.CreateZone()
	d := &model.FieldDevice{ID: 5}

	assert.Equal(t, "strip/3", StripEntity(st).Ref())
	assert.Equal(t, "strip/3/zone/0", ZoneEntity(z).String())
	assert.Equal(t, "device/5", DeviceEntity(d).Ref())
	assert.Equal(t, "zone", KindZone.String())
	assert.Equal(t, "SYNCED", ModeSynced.String())
}
