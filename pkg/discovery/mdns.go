package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
	"github.com/mled-io/mled-go/pkg/transport"
)

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// Advertise registers the controller service, replacing any running
// advertisement.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *ControllerInfo) error {
	instance := info.InstanceName()
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}

	port := int(info.Port)
	if port == 0 {
		port = transport.DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeControllerTXT(info)),
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ServiceType, err)
	}
	a.server = server
	return nil
}

// Update replaces the TXT records of the running advertisement.
func (a *MDNSAdvertiser) Update(info *ControllerInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return fmt.Errorf("not advertising")
	}
	a.server.SetText(TXTRecordsToStrings(EncodeControllerTXT(info)))
	return nil
}

// Stop withdraws the advertisement.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// Browse streams controllers as they are found until ctx is done.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *ControllerService, error) {
	out := make(chan *ControllerService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		agg := newAggregator()

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc, err := fromZeroconf(entry).ToControllerService()
				if err != nil || !agg.add(svc) {
					continue
				}
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				agg.remove(fromZeroconf(entry))

			case <-ctx.Done():
				return
			}
		}
	}()

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}
	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindFirst returns the first controller accepted by filter.
func (b *MDNSBrowser) FindFirst(ctx context.Context, filter FilterFunc) (*ControllerService, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	ch, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	return first(ch, filter)
}

// first drains ch until a service passes filter.
func first(ch <-chan *ControllerService, filter FilterFunc) (*ControllerService, error) {
	for svc := range ch {
		if filter == nil || filter(svc) {
			return svc, nil
		}
	}
	return nil, ErrNotFound
}

func fromZeroconf(e *zeroconf.ServiceEntry) *ServiceEntry {
	addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	addrs = append(addrs, e.AddrIPv4...)
	addrs = append(addrs, e.AddrIPv6...)
	return &ServiceEntry{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     e.Port,
		Text:     e.Text,
		Addrs:    addrs,
	}
}

// interfaces returns the named interface, or nil for all interfaces.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Compile-time interface satisfaction checks.
var (
	_ Advertiser = (*MDNSAdvertiser)(nil)
	_ Browser    = (*MDNSBrowser)(nil)
)
