package discovery

import (
	"context"
	"time"
)

// Advertiser publishes a controller on the local network.
type Advertiser interface {
	// Advertise starts (or restarts) advertising info.
	Advertise(ctx context.Context, info *ControllerInfo) error

	// Update replaces the TXT records of the running advertisement.
	Update(info *ControllerInfo) error

	// Stop withdraws the advertisement.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL is the record TTL (zero keeps the library default).
	TTL time.Duration
}
