// Command regsim-log is a tool for viewing and analyzing register trace files.
//
// Trace files are written by regsim-device when started with -trace, or by
// any bus.Host configured with a log.FileLogger.
//
// Usage:
//
//	regsim-log <command> [flags] <trace.cbor>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSON or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	regsim-log view regsim.cbor
//
//	# View only writes to device 0x50
//	regsim-log view -direction write -address 0x50 regsim.cbor
//
//	# Export to CSV
//	regsim-log export -format csv -o trace.csv regsim.cbor
//
//	# Keep only rejected transfers
//	regsim-log filter -category error -o rejected.cbor regsim.cbor
//
//	# Show statistics
//	regsim-log stats regsim.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/regsim/regsim-go/cmd/regsim-log/commands"
	"github.com/regsim/regsim-go/pkg/version"
)

const usage = `regsim-log - Register Trace Analyzer

Usage:
  regsim-log <command> [flags] <trace.cbor>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSON or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file
  version  Print the version

Use "regsim-log <command> -help" for more information about a command.
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
	case "version", "-version", "--version":
		fmt.Println(version.Banner("regsim-log"))
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `regsim-log view - View trace file in human-readable format

Usage:
  regsim-log view [flags] <trace.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	direction := fs.String("direction", "", "Filter by direction (read, write)")
	category := fs.String("category", "", "Filter by category (transfer, state, error)")
	address := fs.String("address", "", "Filter by device address")
	client := fs.String("client", "", "Filter by accessor directory")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	filter := commands.ViewFilter{Client: *client}

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if *address != "" {
		a, err := commands.ParseAddressFlag(*address)
		if err != nil {
			fail(err)
		}
		filter.Address = &a
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `regsim-log export - Export trace file to JSON or CSV format

Usage:
  regsim-log export [flags] <trace.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `regsim-log filter - Filter trace file and write to new file

Usage:
  regsim-log filter [flags] <trace.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	instanceID := fs.String("instance-id", "", "Filter by bus instance ID")
	client := fs.String("client", "", "Filter by accessor directory")
	address := fs.String("address", "", "Filter by device address")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	direction := fs.String("direction", "", "Filter by direction (read, write)")
	category := fs.String("category", "", "Filter by category (transfer, state, error)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:     *output,
		InstanceID: *instanceID,
		Client:     *client,
		Address:    *address,
		TimeStart:  *timeStart,
		TimeEnd:    *timeEnd,
		Direction:  *direction,
		Category:   *category,
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `regsim-log stats - Show statistics about the trace file

Usage:
  regsim-log stats <trace.cbor>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
