package commands

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mled-io/mled-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.ReadAll()
	require.NoError(t, err)
	return events
}

func TestFilterByConnectionID(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.mlog")

	var buf bytes.Buffer
	require.NoError(t, RunFilter(path, FilterOptions{Output: out, ConnID: testConn}, &buf))
	assert.Contains(t, buf.String(), "Filtered 4 events")

	events := readAll(t, out)
	require.Len(t, events, 4)
	for _, e := range events {
		assert.Equal(t, testConn, e.ConnectionID)
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base},
		{Timestamp: base.Add(time.Minute)},
		{Timestamp: base.Add(2 * time.Minute)},
		{Timestamp: base.Add(3 * time.Minute)},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.mlog")

	var buf bytes.Buffer
	require.NoError(t, RunFilter(path, FilterOptions{
		Output:    out,
		TimeStart: "2026-01-28T10:01:00Z",
		TimeEnd:   "2026-01-28T10:03:00Z",
	}, &buf))

	got := readAll(t, out)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Equal(base.Add(time.Minute)))
	assert.True(t, got[1].Timestamp.Equal(base.Add(2*time.Minute)))
}

func TestFilterByDirectionAndCategory(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.mlog")

	var buf bytes.Buffer
	require.NoError(t, RunFilter(path, FilterOptions{Output: out, Direction: "in", Category: "message"}, &buf))

	got := readAll(t, out)
	require.Len(t, got, 2)
	assert.NotNil(t, got[0].Frame)
	assert.Equal(t, "STRIP_SNAPSHOT", got[1].Message.Name)
}

func TestFilterIntoDatabase(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.db")

	var buf bytes.Buffer
	require.NoError(t, RunFilter(path, FilterOptions{Output: out, Layer: "wire"}, &buf))

	db, err := log.NewSQLiteLogger(out)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.Count(log.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.mlog")

	tests := []struct {
		name string
		opts FilterOptions
	}{
		{"time start", FilterOptions{Output: out, TimeStart: "yesterday"}},
		{"time end", FilterOptions{Output: out, TimeEnd: "10:00"}},
		{"layer", FilterOptions{Output: out, Layer: "service"}},
		{"direction", FilterOptions{Output: out, Direction: "sideways"}},
		{"category", FilterOptions{Output: out, Category: "snapshot"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Error(t, RunFilter(path, tt.opts, &buf))
		})
	}
}
