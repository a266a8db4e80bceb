package log

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLogger stores events in a SQLite database so past sessions can be
// queried by connection, layer or message name. Each row keeps the full
// CBOR-encoded event next to the indexed columns.
type SQLiteLogger struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteLogger opens (or creates) the database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	l := &SQLiteLogger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return l, nil
}

func (l *SQLiteLogger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		conn_id TEXT NOT NULL,
		direction INTEGER NOT NULL,
		layer INTEGER NOT NULL,
		category INTEGER NOT NULL,
		protocol TEXT,
		remote_addr TEXT,
		name TEXT,
		data BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_conn_id ON events(conn_id);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Log inserts an event. Errors are dropped; capture never interrupts the
// caller.
func (l *SQLiteLogger) Log(event Event) {
	data, err := EncodeEvent(event)
	if err != nil {
		return
	}
	var name string
	if event.Message != nil {
		name = event.Message.Name
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_, _ = l.db.Exec(`
		INSERT INTO events (ts, conn_id, direction, layer, category, protocol, remote_addr, name, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.Timestamp.UnixNano(), event.ConnectionID, event.Direction, event.Layer,
		event.Category, event.Protocol, event.RemoteAddr, name, data)
}

// Query returns events matching filter in insertion order. A limit of zero
// or less returns all matches.
func (l *SQLiteLogger) Query(filter Filter, limit int) ([]Event, error) {
	where, args := filterClause(filter)
	q := "SELECT data FROM events" + where + " ORDER BY id"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of events matching filter.
func (l *SQLiteLogger) Count(filter Filter) (int, error) {
	where, args := filterClause(filter)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	err := l.db.QueryRow("SELECT COUNT(*) FROM events"+where, args...).Scan(&n)
	return n, err
}

// Close closes the database. Later Log calls are ignored.
func (l *SQLiteLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}

	if f.ConnectionID != "" {
		add("conn_id = ?", f.ConnectionID)
	}
	if f.Direction != nil {
		add("direction = ?", *f.Direction)
	}
	if f.Layer != nil {
		add("layer = ?", *f.Layer)
	}
	if f.Category != nil {
		add("category = ?", *f.Category)
	}
	if f.TimeStart != nil {
		add("ts >= ?", f.TimeStart.UnixNano())
	}
	if f.TimeEnd != nil {
		add("ts < ?", f.TimeEnd.UnixNano())
	}
	if f.Protocol != "" {
		add("protocol = ?", f.Protocol)
	}
	if f.RemoteAddr != "" {
		add("remote_addr = ?", f.RemoteAddr)
	}
	if f.Name != "" {
		add("name = ?", f.Name)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Compile-time interface satisfaction check.
var _ Logger = (*SQLiteLogger)(nil)
