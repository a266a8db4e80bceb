package discovery

import (
	"errors"
	"time"

	"github.com/mled-io/mled-go/pkg/transport"
	"github.com/mled-io/mled-go/pkg/wire"
)

const (
	// ServiceType is the DNS-SD service type of controllers.
	ServiceType = "_mled._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// InstancePrefix starts every controller instance name.
	InstancePrefix = "mled-"

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63

	// BrowseTimeout is the default time spent looking for controllers.
	BrowseTimeout = 3 * time.Second
)

// TXT record keys.
const (
	TXTKeyProtocol = "p"
	TXTKeyPath     = "path"
	TXTKeyName     = "DN"
	TXTKeyVersion  = "v"
)

var (
	// ErrMissingRequired indicates a required TXT key is absent.
	ErrMissingRequired = errors.New("missing required TXT record")

	// ErrNotFound indicates no matching controller answered in time.
	ErrNotFound = errors.New("no controller found")

	// ErrInstanceName indicates an empty or too long instance name.
	ErrInstanceName = errors.New("invalid instance name")
)

// ControllerInfo is what a controller advertises about itself.
type ControllerInfo struct {
	// Name is the user-facing controller name.
	Name string

	// Protocol is the wire variant spoken on the websocket.
	Protocol wire.Protocol

	// Path is the websocket path (default transport.DefaultPath).
	Path string

	// Port is the HTTP port (default transport.DefaultPort).
	Port uint16

	// Version is an optional firmware version string.
	Version string
}

// InstanceName returns the mDNS instance name for the controller.
func (i *ControllerInfo) InstanceName() string {
	name := i.Name
	if name == "" {
		name = "controller"
	}
	return InstancePrefix + name
}

// ControllerService is a controller found by browsing.
type ControllerService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Name     string
	Protocol wire.Protocol
	Path     string
	Version  string
}

// URL returns the websocket URL of the controller. The first address is
// preferred over the host name so no resolver is needed.
func (s *ControllerService) URL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	path := s.Path
	if path == "" {
		path = transport.DefaultPath
	}
	return "ws://" + transport.HostPort(host, int(s.Port)) + path
}

// DisplayName returns Name, or the instance name without its prefix.
func (s *ControllerService) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.InstanceName) > len(InstancePrefix) && s.InstanceName[:len(InstancePrefix)] == InstancePrefix {
		return s.InstanceName[len(InstancePrefix):]
	}
	return s.InstanceName
}
