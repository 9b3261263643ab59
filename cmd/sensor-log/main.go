// Command sensor-log views and analyzes captured sensor API event logs.
//
// Log files are created by sensor-test -event-log, sensor-shell -event-log
// and sensor-bridge -event-log.
//
// Usage:
//
//	sensor-log <command> [flags] <file>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON lines or CSV
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only error events of the barometer
//	sensor-log view -category error -sensor barometer events.slog
//
//	# Export to CSV
//	sensor-log export -format csv -o events.csv events.slog
//
//	# Keep only asynchronous service exceptions
//	sensor-log filter -code 14500101 -o faults.slog events.slog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sensorkit/sensorkit-go/cmd/sensor-log/commands"
)

const usage = `sensor-log - Sensor API Event Log Analyzer

Usage:
  sensor-log <command> [flags] <file>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON lines or CSV
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "sensor-log <command> -help" for more information about a command.
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

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parse parses args and returns the log file argument.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func usageFor(fs *flag.FlagSet, header string) {
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, header)
		fs.PrintDefaults()
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	usageFor(fs, "sensor-log view - View log file in human-readable format\n\nUsage:\n  sensor-log view [flags] <file>\n\nFlags:\n")

	category := fs.String("category", "", "Filter by category (subscribe, unsubscribe, activate, deactivate, reading, error, state)")
	sensorFlag := fs.String("sensor", "", "Filter by sensor name or id")
	client := fs.String("client", "", "Filter by client ID")
	path := parse(fs, args)

	filter := commands.ViewFilter{Client: *client}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}
	if *sensorFlag != "" {
		id, err := commands.ParseSensorFlag(*sensorFlag)
		if err != nil {
			fail(err)
		}
		filter.SensorID = &id
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	usageFor(fs, "sensor-log export - Export log file to JSON lines or CSV\n\nUsage:\n  sensor-log export [flags] <file>\n\nFlags:\n")

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	usageFor(fs, "sensor-log filter - Filter log file and write to new file\n\nUsage:\n  sensor-log filter [flags] <file>\n\nFlags:\n")

	output := fs.String("o", "", "Output file (required)")
	client := fs.String("client", "", "Filter by client ID")
	sensorFlag := fs.String("sensor", "", "Filter by sensor name or id")
	operation := fs.String("op", "", "Filter by operation (on, once, off, getSingleSensor)")
	code := fs.Int("code", 0, "Filter by error code")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	category := fs.String("category", "", "Filter by category")
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:    *output,
		ClientID:  *client,
		Sensor:    *sensorFlag,
		Operation: *operation,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Category:  *category,
	}
	if *code != 0 {
		c := int32(*code)
		opts.ErrorCode = &c
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	usageFor(fs, "sensor-log stats - Show statistics about the log file\n\nUsage:\n  sensor-log stats <file>\n\n")
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
