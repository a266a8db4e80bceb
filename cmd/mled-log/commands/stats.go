package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mled-io/mled-go/pkg/log"
)

// Stats holds aggregate statistics about a log.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Commands          map[string]int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen      time.Time
	LastSeen       time.Time
	Events         int
	Protocol       string
	RemoteAddr     string
	SnapshotCount  int
	LastSnapshotAt time.Time
	CommandCount   int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Commands:          make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
	}
}

// add folds one event into the statistics.
func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.Protocol != "" && conn.Protocol == "" {
		conn.Protocol = event.Protocol
	}
	if event.RemoteAddr != "" && conn.RemoteAddr == "" {
		conn.RemoteAddr = event.RemoteAddr
	}

	if msg := event.Message; msg != nil {
		switch msg.Type {
		case log.MessageTypeSnapshot:
			conn.SnapshotCount++
			if event.Timestamp.After(conn.LastSnapshotAt) {
				conn.LastSnapshotAt = event.Timestamp
			}
		case log.MessageTypeCommand:
			conn.CommandCount++
			s.Commands[msg.Name]++
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log and prints statistics.
func RunStats(path string, w io.Writer) error {
	src, err := openSource(path, log.Filter{})
	if err != nil {
		return err
	}
	defer src.Close()

	stats := newStats()
	for {
		event, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== mled Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerModel} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Commands) > 0 {
		names := make([]string, 0, len(stats.Commands))
		for name := range stats.Commands {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "Commands:")
		for _, name := range names {
			fmt.Fprintf(w, "  %-20s %d\n", name+":", stats.Commands[name])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Protocol != "" {
				fmt.Fprintf(w, "           Protocol: %s\n", c.stats.Protocol)
			}
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s\n", c.stats.RemoteAddr)
			}
			if c.stats.CommandCount > 0 {
				fmt.Fprintf(w, "           Commands: %d\n", c.stats.CommandCount)
			}
			if c.stats.SnapshotCount > 0 {
				fmt.Fprintf(w, "           Snapshots: %d (last: %s)\n",
					c.stats.SnapshotCount, c.stats.LastSnapshotAt.Format(time.RFC3339))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
