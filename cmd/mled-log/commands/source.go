package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mled-io/mled-go/pkg/log"
)

// source yields events from a capture file or a capture database.
type source interface {
	Next() (log.Event, error)
	Close() error
}

// IsDatabase reports whether path names a SQLite capture database rather
// than a CBOR capture file.
func IsDatabase(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// openSource opens path and yields the events matching filter. Databases
// apply the filter in SQL.
func openSource(path string, filter log.Filter) (source, error) {
	if !IsDatabase(path) {
		r, err := log.NewFilteredReader(path, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return r, nil
	}

	// NewSQLiteLogger would create a missing database.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open log database: %w", err)
	}
	db, err := log.NewSQLiteLogger(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log database: %w", err)
	}
	defer db.Close()

	events, err := db.Query(filter, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query log database: %w", err)
	}
	return &sliceSource{events: events}, nil
}

type sliceSource struct {
	events []log.Event
}

func (s *sliceSource) Next() (log.Event, error) {
	if len(s.events) == 0 {
		return log.Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *sliceSource) Close() error {
	return nil
}
