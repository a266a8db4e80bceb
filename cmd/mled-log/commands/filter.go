package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mled-io/mled-go/pkg/log"
)

// FilterOptions specifies filtering criteria shared by the commands. Empty
// fields match everything.
type FilterOptions struct {
	Output     string
	ConnID     string
	Protocol   string
	RemoteAddr string
	Name       string
	TimeStart  string
	TimeEnd    string
	Layer      string
	Direction  string
	Category   string
}

// Filter converts the options to a log.Filter.
func (o FilterOptions) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		Protocol:     strings.ToLower(o.Protocol),
		RemoteAddr:   o.RemoteAddr,
		Name:         strings.ToUpper(o.Name),
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if o.Layer != "" {
		l, err := parseLayer(o.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}

	if o.Direction != "" {
		d, err := parseDirection(o.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}

	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	return filter, nil
}

// RunFilter filters the log and writes matching events to a new capture
// file, or to a capture database when the output has a database extension.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	src, err := openSource(path, filter)
	if err != nil {
		return err
	}
	defer src.Close()

	var (
		logger log.Logger
		closer func() error
	)
	if IsDatabase(opts.Output) {
		db, err := log.NewSQLiteLogger(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		logger, closer = db, db.Close
	} else {
		fl, err := log.NewFileLogger(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output logger: %w", err)
		}
		logger, closer = fl, fl.Close
	}
	defer closer()

	count := 0
	for {
		event, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, opts.Output)
	return nil
}
