package interactive

import (
	"context"
	"fmt"
	"time"

	"github.com/mled-io/mled-go/pkg/model"
	"github.com/mled-io/mled-go/pkg/reconcile"
	"github.com/mled-io/mled-go/pkg/wire"
)

// OnEntityCreated implements reconcile.Renderer.
func (c *Console) OnEntityCreated(e reconcile.Entity) {
	fmt.Fprintf(c.out, "+ %s\n", describe(e))
}

// OnEntityUpdated implements reconcile.Renderer.
func (c *Console) OnEntityUpdated(e reconcile.Entity) {
	fmt.Fprintf(c.out, "~ %s\n", describe(e))
}

// OnEntityRemoved implements reconcile.Renderer. A user deletion shows a
// banner; the entity is released once the banner expires.
func (c *Console) OnEntityRemoved(e reconcile.Entity) {
	if e.State() != model.PendingDelete {
		fmt.Fprintf(c.out, "- %s\n", e.Ref())
		return
	}

	fmt.Fprintf(c.out, "[%s]\n", banner(e))

	c.banners.Add(1)
	go func() {
		defer c.banners.Done()
		<-time.After(c.config.BannerDuration)
		err := c.do(context.Background(), func(r *reconcile.Reconciler) error {
			r.AcknowledgeRemoval(e)
			return nil
		})
		if err != nil {
			fmt.Fprintf(c.out, "Error: release %s: %v\n", e.Ref(), err)
		}
	}()
}

// OnConnectionStateChanged implements reconcile.Renderer.
func (c *Console) OnConnectionStateChanged(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()

	if online {
		fmt.Fprintln(c.out, "[online]")
	} else {
		fmt.Fprintln(c.out, "[offline]")
	}
}

// Online reports the last connection state shown.
func (c *Console) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// banner is the deletion status line.
func banner(e reconcile.Entity) string {
	switch e.Kind {
	case reconcile.KindZone:
		return fmt.Sprintf("%d.-%d. zone deleted", e.Zone.StripID, e.Zone.ID)
	case reconcile.KindDevice:
		return fmt.Sprintf("device %d deleted", e.Device.ID)
	default:
		return e.Ref() + " deleted"
	}
}

// describe formats one entity for the console.
func describe(e reconcile.Entity) string {
	var s string
	switch e.Kind {
	case reconcile.KindStrip:
		st := e.Strip
		s = fmt.Sprintf("strip %d: %d px %s, %d zone(s), %d px free",
			st.ID, st.PixelCount, st.ChannelOrder, len(st.Zones), st.Remaining())
	case reconcile.KindZone:
		z := e.Zone
		s = fmt.Sprintf("zone %d.%d: %d px %s", z.StripID, z.ID, z.PixelCount, z.Effect.Mode)
		if z.Effect.Mode == wire.EffectSingleColor {
			c := z.Effect.Color
			s += fmt.Sprintf(" h=%.2f s=%.2f l=%.2f", c.Hue, c.Saturation, c.Luminance)
		}
	case reconcile.KindDevice:
		d := e.Device
		if !d.Present {
			s = fmt.Sprintf("device %d: empty", d.ID)
			break
		}
		s = fmt.Sprintf("device %d: addr %s coils %08b inputs %08b", d.ID, d.AddressHex(), d.Coils, d.Inputs)
	default:
		return e.Ref()
	}
	if st := e.State(); st != model.Confirmed {
		s += " (" + st.String() + ")"
	}
	return s
}
