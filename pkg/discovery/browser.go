package discovery

import (
	"context"
	"net"
	"time"
)

// Browser finds controllers on the local network.
type Browser interface {
	// Browse streams controllers as they are found. The channel is closed
	// when ctx is done.
	Browse(ctx context.Context) (<-chan *ControllerService, error)

	// FindFirst returns the first controller accepted by filter, or
	// ErrNotFound when the browse timeout expires.
	FindFirst(ctx context.Context, filter FilterFunc) (*ControllerService, error)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindFirst and Collect (default BrowseTimeout).
	BrowseTimeout time.Duration

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}

// FilterFunc selects controllers. A nil FilterFunc accepts all.
type FilterFunc func(*ControllerService) bool

// FilterByProtocol accepts controllers speaking the given protocol name.
func FilterByProtocol(name string) FilterFunc {
	return func(s *ControllerService) bool {
		return s.Protocol.String() == name
	}
}

// ServiceEntry is a resolved DNS-SD answer, independent of the mDNS
// library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []net.IP
}

// ToControllerService converts the entry. Entries without valid TXT
// records belong to other services sharing the type and are rejected.
func (e *ServiceEntry) ToControllerService() (*ControllerService, error) {
	info, err := DecodeControllerTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(e.Addrs))
	for _, ip := range e.Addrs {
		addrs = append(addrs, ip.String())
	}

	return &ControllerService{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         uint16(e.Port),
		Addresses:    addrs,
		Name:         info.Name,
		Protocol:     info.Protocol,
		Path:         info.Path,
		Version:      info.Version,
	}, nil
}

// aggregator merges answers for the same instance from several
// interfaces.
type aggregator struct {
	services map[string]*ControllerService
}

func newAggregator() *aggregator {
	return &aggregator{services: make(map[string]*ControllerService)}
}

// add records svc and reports whether it is new.
func (a *aggregator) add(svc *ControllerService) bool {
	if existing, ok := a.services[svc.InstanceName]; ok {
		existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
		return false
	}
	a.services[svc.InstanceName] = svc
	return true
}

// remove drops the addresses of a withdrawn answer, forgetting the
// instance once none remain. An answer without addresses withdraws the
// whole instance.
func (a *aggregator) remove(e *ServiceEntry) {
	existing, ok := a.services[e.Instance]
	if !ok {
		return
	}
	existing.Addresses = removeAddresses(existing.Addresses, e.Addrs)
	if len(e.Addrs) == 0 || len(existing.Addresses) == 0 {
		delete(a.services, e.Instance)
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range add {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

func removeAddresses(addresses []string, ips []net.IP) []string {
	drop := make(map[string]bool, len(ips))
	for _, ip := range ips {
		drop[ip.String()] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Collect browses for the configured timeout and returns every controller
// found.
func Collect(ctx context.Context, b Browser, timeout time.Duration) ([]*ControllerService, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var found []*ControllerService
	for svc := range ch {
		found = append(found, svc)
	}
	return found, nil
}
