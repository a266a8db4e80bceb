// Package commands implements the mled-log CLI commands.
package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mled-io/mled-go/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timestampLayout)
	connID := shortenConnID(event.ConnectionID)
	dir := event.Direction.String()

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, connID, dir, layerStr, eventLabel(event))
	if event.Protocol != "" {
		fmt.Fprintf(w, " (%s)", event.Protocol)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.ControlMsg != nil:
		formatControlDetails(w, event.ControlMsg)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventLabel names the payload carried by event.
func eventLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		if event.Message.Name != "" {
			return event.Message.Type.String() + " " + event.Message.Name
		}
		return event.Message.Type.String()
	case event.StateChange != nil:
		return "State"
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  ID: %d\n", msg.ID)

	var target []string
	if msg.Strip != nil {
		target = append(target, fmt.Sprintf("Strip: %d", *msg.Strip))
	}
	if msg.Zone != nil {
		target = append(target, fmt.Sprintf("Zone: %d", *msg.Zone))
	}
	if msg.Device != nil {
		target = append(target, fmt.Sprintf("Device: %d", *msg.Device))
	}
	if len(target) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(target, "  "))
	}

	if msg.Type == log.MessageTypeSnapshot {
		fmt.Fprintf(w, "  Records: %d\n", msg.Count)
	}

	if msg.Payload != nil {
		payloadJSON, err := json.Marshal(msg.Payload)
		if err == nil {
			fmt.Fprintf(w, "  Payload: %s\n", string(payloadJSON))
		}
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s", sc.Entity.String())
	if sc.Ref != "" {
		fmt.Fprintf(w, " %s", sc.Ref)
	}
	fmt.Fprintln(w)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatControlDetails(w io.Writer, ctrl *log.ControlMsgEvent) {
	if ctrl.Seq != 0 {
		fmt.Fprintf(w, "  Seq: %d\n", ctrl.Seq)
	}
	if ctrl.CloseCode != nil {
		fmt.Fprintf(w, "  Code: %d\n", *ctrl.CloseCode)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "model":
		return log.LayerModel, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or model)", s)
	}
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}

// RunView writes every event matching opts in human-readable form. A
// positive limit stops after that many events.
func RunView(path string, opts FilterOptions, limit int, output io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	src, err := openSource(path, filter)
	if err != nil {
		return err
	}
	defer src.Close()

	for n := 0; limit <= 0 || n < limit; n++ {
		event, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
