package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// RunExport exports the log to the specified format. An empty output
// writes to stdout.
func RunExport(path, format, output string, opts FilterOptions) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	src, err := openSource(path, filter)
	if err != nil {
		return err
	}
	defer src.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(src, w)
	}
	return exportJSONL(src, w)
}

func exportJSONL(src source, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category", "protocol", "type", "name", "size"}

func exportCSV(src source, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		eventType := "unknown"
		name := ""
		size := ""
		switch {
		case event.Frame != nil:
			eventType = "frame"
			size = strconv.Itoa(event.Frame.Size)
		case event.Message != nil:
			eventType = event.Message.Type.String()
			name = event.Message.Name
		case event.StateChange != nil:
			eventType = "state"
			name = event.StateChange.NewState
		case event.ControlMsg != nil:
			eventType = event.ControlMsg.Type.String()
		case event.Error != nil:
			eventType = "error"
			name = event.Error.Context
		}

		row := []string{
			event.Timestamp.UTC().Format(timestampLayout),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Protocol,
			eventType,
			name,
			size,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
}
