// Command mled-device runs a simulated mled controller.
//
// The simulator speaks the same websocket protocol as the LED and
// fieldbus controllers, so mled-ctl can be used without hardware. It
// applies commands to an in-memory configuration and broadcasts a new
// snapshot after every change.
//
// Usage:
//
//	mled-device [flags]
//
// Flags:
//
//	-protocol string      Wire protocol: led, fieldbus (default "led")
//	-config string        Simulator configuration file (YAML)
//	-addr string          Listen address (default ":80")
//	-name string          Controller name advertised over mDNS (default "mled-sim")
//	-no-advertise         Do not advertise over mDNS
//	-simulate             Toggle fieldbus inputs periodically
//	-interval duration    Simulation interval (default 2s)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  File to write protocol events (CBOR format)
//
// Examples:
//
//	# LED controller on a high port
//	mled-device -addr :8080
//
//	# Fieldbus controller with changing inputs
//	mled-device -protocol fieldbus -simulate -interval 500ms
//
//	# Custom strip layout
//	mled-device -config strips.yaml -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mled-io/mled-go/pkg/device"
	"github.com/mled-io/mled-go/pkg/discovery"
	mledlog "github.com/mled-io/mled-go/pkg/log"
	"github.com/mled-io/mled-go/pkg/transport"
	"github.com/mled-io/mled-go/pkg/wire"
)

var (
	protocolFlag = flag.String("protocol", "led", "Wire protocol: led, fieldbus")
	configFile   = flag.String("config", "", "Simulator configuration file (YAML)")
	addr         = flag.String("addr", ":80", "Listen address")
	name         = flag.String("name", "mled-sim", "Controller name advertised over mDNS")
	noAdvertise  = flag.Bool("no-advertise", false, "Do not advertise over mDNS")
	simulate     = flag.Bool("simulate", false, "Toggle fieldbus inputs periodically")
	interval     = flag.Duration("interval", 2*time.Second, "Simulation interval")
	logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog  = flag.String("protocol-log", "", "File to write protocol events (CBOR format)")
)

func main() {
	flag.Parse()
	setupLogging(*logLevel)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	cfg.Logger = newSlogLogger(*logLevel)

	var protoLog mledlog.Logger
	if *protocolLog != "" {
		fl, err := mledlog.NewFileLogger(*protocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fl.Close()
		protoLog = fl
		log.Printf("Protocol logging to: %s", *protocolLog)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := device.New(cfg)
	srv := device.NewServer(sim, transport.ServerConfig{
		Address: *addr,
		Logger:  protoLog,
		OnDisconnect: func(conn *transport.Conn) {
			log.Printf("Client %s disconnected", conn.ConnID())
		},
		OnError: func(conn *transport.Conn, err error) {
			log.Printf("Transport error: %v", err)
		},
	})
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("%s controller listening on %s", cfg.Protocol, srv.URL())

	if !*noAdvertise {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{})
		info := &discovery.ControllerInfo{
			Name:     *name,
			Protocol: cfg.Protocol,
			Path:     transport.DefaultPath,
			Port:     listenPort(srv.Transport().Addr()),
			Version:  "sim",
		}
		if err := adv.Advertise(ctx, info); err != nil {
			log.Printf("mDNS advertising failed: %v", err)
		} else {
			log.Printf("Advertising %q on port %d", info.InstanceName(), info.Port)
			defer adv.Stop()
		}
	}

	if *simulate {
		log.Printf("Simulation running every %s", *interval)
		go srv.RunSimulation(ctx, *interval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	log.Println("Device stopped")
}

func loadConfig() (device.Config, error) {
	p, err := wire.ParseProtocol(*protocolFlag)
	if err != nil {
		return device.Config{}, err
	}
	if *configFile == "" {
		return device.DefaultConfig(p), nil
	}

	cfg, err := device.LoadConfig(*configFile)
	if err != nil {
		return device.Config{}, err
	}

	// An explicit -protocol wins over the file.
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "protocol" {
			explicit = true
		}
	})
	if explicit && cfg.Protocol != p {
		return device.Config{}, fmt.Errorf("-protocol %s conflicts with %s in %s", p, cfg.Protocol, *configFile)
	}
	return cfg, nil
}

func listenPort(a net.Addr) uint16 {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return transport.DefaultPort
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

func newSlogLogger(level string) *slog.Logger {
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
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
