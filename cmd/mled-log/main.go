// Command mled-log is a tool for viewing and analyzing mled protocol
// captures.
//
// Captures are written by mled-ctl and mled-device with -protocol-log
// (CBOR files, .mlog) or by mled-ctl with -protocol-db (SQLite databases,
// .db). Every command accepts either kind.
//
// Usage:
//
//	mled-log <command> [flags] <file.mlog|file.db>
//
// Commands:
//
//	view     View a capture in human-readable format
//	export   Export a capture to JSONL or CSV format
//	filter   Filter a capture and write to a new file
//	stats    Show statistics about a capture
//
// Examples:
//
//	# View all events
//	mled-log view session.mlog
//
//	# View only decoded wire messages
//	mled-log view -layer wire session.mlog
//
//	# View the last session's zone size commands from the database
//	mled-log view -name SET_ZONE_SIZE session.db
//
//	# Export to CSV
//	mled-log export -format csv -o session.csv session.mlog
//
//	# Keep one connection
//	mled-log filter -conn-id abc12345-... -o one.mlog session.mlog
//
//	# Show statistics
//	mled-log stats session.mlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mled-io/mled-go/cmd/mled-log/commands"
)

const usage = `mled-log - mled Protocol Capture Analyzer

Usage:
  mled-log <command> [flags] <file.mlog|file.db>

Commands:
  view     View a capture in human-readable format
  export   Export a capture to JSONL or CSV format
  filter   Filter a capture and write to a new file
  stats    Show statistics about a capture

Use "mled-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the filter flags shared by view, export and
// filter.
func filterFlags(fs *flag.FlagSet, opts *commands.FilterOptions) {
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Protocol, "protocol", "", "Filter by protocol (led, fieldbus)")
	fs.StringVar(&opts.RemoteAddr, "remote", "", "Filter by remote address")
	fs.StringVar(&opts.Name, "name", "", "Filter by message name (e.g. SET_ZONE_SIZE)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, model)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error)")
}

func newFlagSet(name, summary, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "mled-log %s - %s\n\nUsage:\n  mled-log %s\n\nFlags:\n", name, summary, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// capturePath returns the single positional argument or exits.
func capturePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "View a capture in human-readable format", "view [flags] <file.mlog|file.db>")
	var opts commands.FilterOptions
	filterFlags(fs, &opts)
	limit := fs.Int("limit", 0, "Stop after this many events (0: all)")

	path := capturePath(fs, args)
	if err := commands.RunView(path, opts, *limit, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export a capture to JSONL or CSV format", "export [flags] <file.mlog|file.db>")
	var opts commands.FilterOptions
	filterFlags(fs, &opts)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path := capturePath(fs, args)
	if err := commands.RunExport(path, *format, *output, opts); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter a capture and write to a new file", "filter [flags] -o <out> <file.mlog|file.db>")
	var opts commands.FilterOptions
	filterFlags(fs, &opts)
	fs.StringVar(&opts.Output, "o", "", "Output file, .mlog or .db (required)")

	path := capturePath(fs, args)
	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about a capture", "stats <file.mlog|file.db>")

	path := capturePath(fs, args)
	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
