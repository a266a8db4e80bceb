package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// StateFileName is the file name used inside a state directory.
const StateFileName = "client.json"

// ClientState is the persisted client state.
type ClientState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// LastController is the websocket URL of the last successful session.
	LastController string `json:"last_controller,omitempty"`

	// Controllers lists known controllers, most recently seen first.
	Controllers []KnownController `json:"controllers,omitempty"`
}

// KnownController describes a controller seen via discovery or a
// successful connection.
type KnownController struct {
	// URL is the websocket URL.
	URL string `json:"url"`

	// Instance is the mDNS instance name, if discovered.
	Instance string `json:"instance,omitempty"`

	// Protocol is "led" or "fieldbus".
	Protocol string `json:"protocol,omitempty"`

	// LastSeenAt is when the controller was last discovered or connected.
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Remember records a controller, updating an existing entry with the same
// URL. Empty fields do not overwrite known values.
func (s *ClientState) Remember(c KnownController) {
	for i := range s.Controllers {
		k := &s.Controllers[i]
		if k.URL != c.URL {
			continue
		}
		if c.Instance != "" {
			k.Instance = c.Instance
		}
		if c.Protocol != "" {
			k.Protocol = c.Protocol
		}
		if c.LastSeenAt.After(k.LastSeenAt) {
			k.LastSeenAt = c.LastSeenAt
		}
		s.sort()
		return
	}
	s.Controllers = append(s.Controllers, c)
	s.sort()
}

// Controller returns the known controller with url, or nil.
func (s *ClientState) Controller(url string) *KnownController {
	for i := range s.Controllers {
		if s.Controllers[i].URL == url {
			return &s.Controllers[i]
		}
	}
	return nil
}

func (s *ClientState) sort() {
	sort.SliceStable(s.Controllers, func(i, j int) bool {
		return s.Controllers[i].LastSeenAt.After(s.Controllers[j].LastSeenAt)
	})
}

// ClientStateStore reads and writes a ClientState JSON file.
type ClientStateStore struct {
	mu   sync.Mutex
	path string
}

// NewClientStateStore creates a store for the file at path.
func NewClientStateStore(path string) *ClientStateStore {
	return &ClientStateStore{path: path}
}

// NewClientStateStoreInDir creates a store for StateFileName in dir.
func NewClientStateStoreInDir(dir string) *ClientStateStore {
	return NewClientStateStore(filepath.Join(dir, StateFileName))
}

// Path returns the state file path.
func (s *ClientStateStore) Path() string {
	return s.path
}

// Save writes state, replacing the file atomically.
func (s *ClientStateStore) Save(state *ClientState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".client-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the state. A missing file yields an empty state.
func (s *ClientStateStore) Load() (*ClientState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &ClientState{Version: StateVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	state := &ClientState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear removes the state file.
func (s *ClientStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
