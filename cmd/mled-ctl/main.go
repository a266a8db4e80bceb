// Command mled-ctl is the interactive client for mled LED and fieldbus
// controllers.
//
// It keeps one session with a controller, mirrors the controller's
// configuration in a console and sends edits back as commands. A lost
// connection is retried every second until the controller is back.
//
// Usage:
//
//	mled-ctl [flags]
//
// Flags:
//
//	-config string           Configuration file path (YAML)
//	-controller string       Controller host[:port] or ws:// URL
//	-protocol string         Wire protocol: led, fieldbus (default "led")
//	-discover                Browse mDNS for a controller
//	-log-level string        Log level: debug, info, warn, error (default "info")
//	-protocol-log string     File to write protocol events (CBOR format)
//	-protocol-db string      SQLite database to write protocol events
//	-state-dir string        Directory for client state
//	-reset                   Clear the client state before starting
//
// Examples:
//
//	# Connect to a known controller
//	mled-ctl -controller 192.168.4.1
//
//	# Find a fieldbus controller on the network
//	mled-ctl -discover -protocol fieldbus
//
//	# Capture the session for mled-log
//	mled-ctl -controller ledctl.local -protocol-log session.mlog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mled-io/mled-go/cmd/mled-ctl/interactive"
	"github.com/mled-io/mled-go/internal/config"
	"github.com/mled-io/mled-go/pkg/discovery"
	mledlog "github.com/mled-io/mled-go/pkg/log"
	"github.com/mled-io/mled-go/pkg/persistence"
	"github.com/mled-io/mled-go/pkg/picker"
	"github.com/mled-io/mled-go/pkg/session"
)

// flags holds command-line values. Only flags set explicitly override the
// configuration file.
type flags struct {
	ConfigFile  string
	Controller  string
	Protocol    string
	Discover    bool
	LogLevel    string
	ProtocolLog string
	ProtocolDB  string
	StateDir    string
	Reset       bool
}

var cli flags

func init() {
	flag.StringVar(&cli.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&cli.Controller, "controller", "", "Controller host[:port] or ws:// URL")
	flag.StringVar(&cli.Protocol, "protocol", "led", "Wire protocol: led, fieldbus")
	flag.BoolVar(&cli.Discover, "discover", false, "Browse mDNS for a controller")
	flag.StringVar(&cli.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cli.ProtocolLog, "protocol-log", "", "File to write protocol events (CBOR format)")
	flag.StringVar(&cli.ProtocolDB, "protocol-db", "", "SQLite database to write protocol events")
	flag.StringVar(&cli.StateDir, "state-dir", "", "Directory for client state")
	flag.BoolVar(&cli.Reset, "reset", false, "Clear the client state before starting")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	console, err := interactive.NewReadline(interactive.Config{
		Protocol: cfg.WireProtocol(),
		Discover: discoverList(cfg),
	})
	if err != nil {
		log.Fatalf("Failed to create console: %v", err)
	}
	log.SetOutput(console.Stdout())
	setupLogging(cfg.LogLevel)

	log.Println("mled client")
	log.Println("===========")

	var store *persistence.ClientStateStore
	if cfg.StateDir != "" {
		store = persistence.NewClientStateStoreInDir(cfg.StateDir)
		log.Printf("Using state file: %s", store.Path())
		if cli.Reset {
			log.Println("Resetting client state...")
			if err := store.Clear(); err != nil {
				log.Printf("Warning: Failed to clear state: %v", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url, err := resolveController(ctx, cfg, store)
	if err != nil {
		log.Fatalf("No controller: %v", err)
	}
	log.Printf("Controller: %s (%s)", url, cfg.WireProtocol())

	protoLog, closeLogs, err := openProtocolLogs(cfg, console.Stdout())
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closeLogs()

	sess := session.New(session.Config{
		URL:              url,
		Protocol:         cfg.WireProtocol(),
		Renderer:         console,
		Geometry:         picker.NewGeometry(interactive.PickerBox),
		ThrottleInterval: cfg.ThrottleInterval,
		ReconnectDelay:   cfg.ReconnectDelay,
		PingInterval:     cfg.PingInterval,
		StateStore:       store,
		Logger:           newSlogLogger(cfg.LogLevel, console.Stdout()),
		ProtocolLogger:   protoLog,
	})
	console.SetExecutor(sess)

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	go console.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	case err := <-done:
		if err != nil {
			log.Printf("Session ended: %v", err)
		}
	}

	log.Println("Shutting down...")
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	log.Println("Goodbye!")
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "controller":
			cfg.Controller = cli.Controller
		case "protocol":
			cfg.Protocol = cli.Protocol
		case "log-level":
			cfg.LogLevel = cli.LogLevel
		case "protocol-log":
			cfg.ProtocolLog = cli.ProtocolLog
		case "protocol-db":
			cfg.ProtocolDB = cli.ProtocolDB
		case "state-dir":
			cfg.StateDir = cli.StateDir
		}
	})
}

// resolveController picks the controller URL: explicit setting first, then
// mDNS discovery, then the last controller in the state file.
func resolveController(ctx context.Context, cfg config.Config, store *persistence.ClientStateStore) (string, error) {
	if url := cfg.ControllerURL(); url != "" {
		return url, nil
	}

	if cli.Discover {
		log.Printf("Browsing for %s controllers...", cfg.WireProtocol())
		browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{BrowseTimeout: cfg.DiscoveryTimeout})
		svc, err := browser.FindFirst(ctx, discovery.FilterByProtocol(cfg.WireProtocol().String()))
		if err != nil {
			return "", err
		}
		log.Printf("Found controller %s", svc.DisplayName())
		if store != nil {
			rememberDiscovered(store, svc)
		}
		return svc.URL(), nil
	}

	if store != nil {
		state, err := store.Load()
		if err != nil {
			return "", fmt.Errorf("load state: %w", err)
		}
		if state.LastController != "" {
			return state.LastController, nil
		}
	}
	return "", errors.New("set -controller, use -discover, or connect once with -state-dir")
}

func rememberDiscovered(store *persistence.ClientStateStore, svc *discovery.ControllerService) {
	state, err := store.Load()
	if err != nil {
		log.Printf("Warning: Failed to load state: %v", err)
		return
	}
	state.Remember(persistence.KnownController{
		URL:        svc.URL(),
		Instance:   svc.InstanceName,
		Protocol:   svc.Protocol.String(),
		LastSeenAt: time.Now(),
	})
	if err := store.Save(state); err != nil {
		log.Printf("Warning: Failed to save state: %v", err)
	}
}

// discoverList backs the console's discover command.
func discoverList(cfg config.Config) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		browser := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
		found, err := discovery.Collect(ctx, browser, cfg.DiscoveryTimeout)
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(found))
		for _, s := range found {
			lines = append(lines, fmt.Sprintf("%s (%s) %s", s.DisplayName(), s.Protocol, s.URL()))
		}
		return lines, nil
	}
}

// openProtocolLogs opens the configured capture sinks.
func openProtocolLogs(cfg config.Config, out io.Writer) (mledlog.Logger, func(), error) {
	var loggers []mledlog.Logger
	var closers []func() error

	if cfg.ProtocolLog != "" {
		fl, err := mledlog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open protocol log: %w", err)
		}
		log.Printf("Protocol logging to: %s", cfg.ProtocolLog)
		loggers = append(loggers, fl)
		closers = append(closers, fl.Close)
	}
	if cfg.ProtocolDB != "" {
		sl, err := mledlog.NewSQLiteLogger(cfg.ProtocolDB)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, fmt.Errorf("failed to open protocol database: %w", err)
		}
		log.Printf("Protocol events stored in: %s", cfg.ProtocolDB)
		loggers = append(loggers, sl)
		closers = append(closers, sl.Close)
	}
	if cfg.LogLevel == "debug" {
		loggers = append(loggers, mledlog.NewSlogAdapter(newSlogLogger("debug", out)))
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Printf("Warning: Failed to close protocol log: %v", err)
			}
		}
	}
	if len(loggers) == 0 {
		return nil, closeAll, nil
	}
	return mledlog.NewMultiLogger(loggers...), closeAll, nil
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

func newSlogLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
