// Package interactive provides the mled-ctl command console. The console
// is also the session renderer: model notifications are printed as they
// arrive.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mled-io/mled-go/pkg/model"
	"github.com/mled-io/mled-go/pkg/picker"
	"github.com/mled-io/mled-go/pkg/reconcile"
	"github.com/mled-io/mled-go/pkg/wire"
)

// DefaultBannerDuration is how long a deletion banner stays before the
// entity is released.
const DefaultBannerDuration = 3 * time.Second

// PickerBox is the coordinate space of the drag command.
var PickerBox = r2.NewBox(0, 0, 200, 200)

// Executor runs a function against the reconciler on its owning goroutine.
// *session.Session implements it.
type Executor interface {
	Do(ctx context.Context, fn func(*reconcile.Reconciler) error) error
}

// Config configures a Console.
type Config struct {
	// Protocol selects the command set.
	Protocol wire.Protocol

	// Out receives all console output (default: os.Stdout).
	Out io.Writer

	// Confirm asks a yes/no question (default: always yes).
	Confirm func(prompt string) bool

	// BannerDuration delays releasing deleted entities (default:
	// DefaultBannerDuration).
	BannerDuration time.Duration

	// Discover lists controllers for the discover command (optional).
	Discover func(ctx context.Context) ([]string, error)
}

// Console handles interactive mode for mled-ctl.
type Console struct {
	exec   Executor
	config Config
	out    io.Writer
	rl     *readline.Instance

	mu      sync.Mutex
	banners sync.WaitGroup
	online  bool
}

// New creates a console writing to config.Out.
func New(exec Executor, config Config) *Console {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Confirm == nil {
		config.Confirm = func(string) bool { return true }
	}
	if config.BannerDuration <= 0 {
		config.BannerDuration = DefaultBannerDuration
	}
	return &Console{exec: exec, config: config, out: config.Out}
}

// NewReadline creates a console reading commands with readline. Output and
// confirmations go through the readline instance.
func NewReadline(config Config) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mled> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	config.Out = rl.Stdout()
	c := New(nil, config)
	c.rl = rl
	c.config.Confirm = c.readlineConfirm
	return c, nil
}

// SetExecutor sets the executor. It must be called before Run.
func (c *Console) SetExecutor(exec Executor) {
	c.exec = exec
}

// Stdout returns the console writer. Use it for log output so it does not
// interfere with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until quit, EOF or ctx is cancelled.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Wait blocks until pending deletion banners have expired.
func (c *Console) Wait() {
	c.banners.Wait()
}

// Execute runs one command line and reports whether the console should
// exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	case "status":
		err = c.cmdStatus(ctx)
	case "discover":
		err = c.cmdDiscover(ctx)
	case "list", "ls":
		err = c.cmdList(ctx)
	default:
		if c.config.Protocol == wire.ProtocolFieldbus {
			err = c.fieldbusCommand(ctx, cmd, args)
		} else {
			err = c.ledCommand(ctx, cmd, args)
		}
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return false
}

func (c *Console) ledCommand(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "resize":
		if len(args) != 2 {
			return c.usage("resize <strip> <pixels>")
		}
		strip, n, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			got, err := r.RequestStripResize(strip, uint32(n))
			fmt.Fprintf(c.out, "strip %d: %d px\n", strip, got)
			return err
		})

	case "order":
		if len(args) != 2 {
			return c.usage("order <strip> <RGB|GRB|...>")
		}
		strip, err := parseInt(args[0])
		if err != nil {
			return err
		}
		order := model.SanitizeChannelOrder(args[1])
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			got, err := r.RequestChannelOrderChange(strip, order)
			fmt.Fprintf(c.out, "strip %d: order %s\n", strip, got)
			return err
		})

	case "add":
		if len(args) != 1 {
			return c.usage("add <strip>")
		}
		strip, err := parseInt(args[0])
		if err != nil {
			return err
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			_, err := r.RequestZoneCreate(strip)
			return err
		})

	case "size":
		if len(args) != 3 {
			return c.usage("size <strip> <zone> <pixels>")
		}
		strip, zone, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		n, err := parseInt(args[2])
		if err != nil {
			return err
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			got, err := r.RequestZoneResize(strip, zone, uint32(n))
			fmt.Fprintf(c.out, "zone %d.%d: %d px\n", strip, zone, got)
			return err
		})

	case "del", "delete":
		if len(args) != 2 {
			return c.usage("del <strip> <zone>")
		}
		strip, zone, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		var deletable bool
		err = c.do(ctx, func(r *reconcile.Reconciler) error {
			st := r.Registry().Strip(strip)
			deletable = st != nil && st.CanDeleteZone(zone)
			return nil
		})
		if err != nil {
			return err
		}
		if !deletable {
			return fmt.Errorf("%w: only the last zone of a strip can be deleted", reconcile.ErrNotDeletable)
		}
		if !c.config.Confirm(fmt.Sprintf("Delete zone %d.%d? [y/N] ", strip, zone)) {
			return nil
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			return r.RequestZoneDelete(strip, zone)
		})

	case "color":
		if len(args) != 5 {
			return c.usage("color <strip> <zone> <hue-rad> <sat> <lum>")
		}
		strip, zone, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		hsl, err := parseHSL(args[2:])
		if err != nil {
			return err
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			return r.RequestEffectChange(strip, zone, model.Effect{Mode: wire.EffectSingleColor, Color: hsl})
		})

	case "effect":
		if len(args) != 3 {
			return c.usage("effect <strip> <zone> <mode>")
		}
		strip, zone, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		mode, err := wire.ParseEffectMode(args[2])
		if err != nil {
			return err
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			st := r.Registry().Strip(strip)
			if st == nil || st.Zone(zone) == nil {
				return reconcile.ErrUnknownEntity
			}
			eff := st.Zone(zone).Effect
			eff.Mode = mode
			return r.RequestEffectChange(strip, zone, eff)
		})

	case "drag":
		if len(args) != 5 {
			return c.usage("drag <strip> <zone> hue|value <x> <y>")
		}
		strip, zone, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		target, err := parseTarget(args[2])
		if err != nil {
			return err
		}
		x, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid x: %w", err)
		}
		y, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			return fmt.Errorf("invalid y: %w", err)
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			_, err := r.RequestColorDrag(strip, zone, target, r2.Vec{X: x, Y: y})
			return err
		})

	case "pick":
		if len(args) != 2 {
			return c.usage("pick <strip> <zone>")
		}
		strip, zone, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			p, err := r.Picker(strip, zone)
			if err != nil {
				return err
			}
			s := p.State()
			hue, value := p.HueMarker(), p.ValueMarker()
			fmt.Fprintf(c.out, "zone %d.%d: %s hue=%.3f sat=%.3f lum=%.3f\n",
				strip, zone, s.Color().Hex(), s.Hue, s.Saturation, s.Luminance)
			fmt.Fprintf(c.out, "  markers: hue (%.1f, %.1f) value (%.1f, %.1f)\n", hue.X, hue.Y, value.X, value.Y)
			return nil
		})
	}

	fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	return nil
}

func (c *Console) fieldbusCommand(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "coil":
		if len(args) != 2 {
			return c.usage("coil <device> <coil>")
		}
		dev, coil, err := parseInts(args[0], args[1])
		if err != nil {
			return err
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			on, err := r.RequestCoilToggle(dev, coil)
			fmt.Fprintf(c.out, "device %d coil %d: %s\n", dev, coil, onOff(on))
			return err
		})

	case "addr":
		if len(args) != 2 {
			return c.usage("addr <device> <hex>")
		}
		dev, err := parseInt(args[0])
		if err != nil {
			return err
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(args[1]), "0x"), 16, 8)
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			return r.RequestDeviceAddressChange(dev, uint8(addr))
		})

	case "rm", "remove":
		if len(args) != 1 {
			return c.usage("rm <device>")
		}
		dev, err := parseInt(args[0])
		if err != nil {
			return err
		}
		if !c.config.Confirm(fmt.Sprintf("Delete device %d? [y/N] ", dev)) {
			return nil
		}
		return c.do(ctx, func(r *reconcile.Reconciler) error {
			return r.RequestDeviceDelete(dev)
		})
	}

	fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	return nil
}

func (c *Console) cmdStatus(ctx context.Context) error {
	return c.do(ctx, func(r *reconcile.Reconciler) error {
		fmt.Fprintln(c.out, "\nSession Status")
		fmt.Fprintln(c.out, "-------------------------------------------")
		fmt.Fprintf(c.out, "  Protocol:   %s\n", r.Protocol())
		fmt.Fprintf(c.out, "  Mode:       %s\n", r.Mode())
		fmt.Fprintf(c.out, "  Online:     %v\n", r.Online())
		fmt.Fprintf(c.out, "  Snapshots:  %d\n", r.SnapshotCount())
		fmt.Fprintf(c.out, "  Strips:     %d\n", r.Registry().StripCount())
		fmt.Fprintf(c.out, "  Slots:      %d\n", r.Registry().DeviceSlots())
		return nil
	})
}

func (c *Console) cmdDiscover(ctx context.Context) error {
	if c.config.Discover == nil {
		return errors.New("discovery not available")
	}
	fmt.Fprintln(c.out, "Discovering controllers...")
	found, err := c.config.Discover(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(c.out, "No controllers found")
		return nil
	}
	for i, s := range found {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, s)
	}
	return nil
}

func (c *Console) cmdList(ctx context.Context) error {
	return c.do(ctx, func(r *reconcile.Reconciler) error {
		reg := r.Registry()
		for _, st := range reg.Strips() {
			fmt.Fprintln(c.out, describe(reconcile.StripEntity(st)))
			for _, z := range st.Zones {
				fmt.Fprintln(c.out, "  "+describe(reconcile.ZoneEntity(z)))
			}
		}
		for _, d := range reg.Devices() {
			if d != nil {
				fmt.Fprintln(c.out, describe(reconcile.DeviceEntity(d)))
			}
		}
		return nil
	})
}

func (c *Console) printHelp() {
	if c.config.Protocol == wire.ProtocolFieldbus {
		fmt.Fprintln(c.out, `
mled Fieldbus Commands:
  coil <device> <coil>               - Toggle a coil
  addr <device> <hex>                - Set the bus address
  rm <device>                        - Delete a device

  list                               - Show all devices
  status                             - Show session status
  discover                           - Browse for controllers
  quit                               - Exit`)
		return
	}
	fmt.Fprintln(c.out, `
mled LED Commands:
  Strips:
    resize <strip> <pixels>           - Set the pixel count
    order <strip> <RGB|GRB|...>       - Set the channel order

  Zones:
    add <strip>                       - Append a one-pixel zone
    size <strip> <zone> <pixels>      - Resize a zone
    del <strip> <zone>                - Delete the last zone
    color <strip> <zone> <h> <s> <l>  - Set a single colour (hue in radians)
    effect <strip> <zone> <mode>      - Set the effect mode
    drag <strip> <zone> hue|value <x> <y> - Drag the colour widget (0..200)
    pick <strip> <zone>               - Show the colour widget

  General:
    list                              - Show strips and zones
    status                            - Show session status
    discover                          - Browse for controllers
    quit                              - Exit`)
}

// do runs fn on the session goroutine.
func (c *Console) do(ctx context.Context, fn func(*reconcile.Reconciler) error) error {
	if c.exec == nil {
		return errors.New("no session")
	}
	return c.exec.Do(ctx, fn)
}

func (c *Console) usage(s string) error {
	fmt.Fprintf(c.out, "Usage: %s\n", s)
	return nil
}

func (c *Console) readlineConfirm(prompt string) bool {
	old := c.rl.Config.Prompt
	c.rl.SetPrompt(prompt)
	defer c.rl.SetPrompt(old)

	line, err := c.rl.Readline()
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// parseInt reads a non-negative number, dropping anything but digits the
// way the numeric input fields do.
func parseInt(s string) (int, error) {
	digits := model.SanitizeDigits(s)
	if digits == "" {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return strconv.Atoi(digits)
}

func parseInts(a, b string) (int, int, error) {
	x, err := parseInt(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseInt(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseHSL(args []string) (wire.HSL, error) {
	var v [3]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return wire.HSL{}, fmt.Errorf("invalid colour component %q", a)
		}
		v[i] = f
	}
	return wire.HSL{Hue: float32(v[0]), Saturation: float32(v[1]), Luminance: float32(v[2])}, nil
}

func parseTarget(s string) (picker.Target, error) {
	switch strings.ToLower(s) {
	case "hue", "h":
		return picker.TargetHue, nil
	case "value", "v":
		return picker.TargetValue, nil
	default:
		return 0, fmt.Errorf("unknown target %q (use: hue, value)", s)
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
