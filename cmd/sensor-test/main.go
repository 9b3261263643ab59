// Command sensor-test runs YAML sensor test suites against a simulated
// device.
//
// Every test case gets a fresh client over a simulated driver. A device
// profile restricts the simulated sensors; cases requiring other sensors are
// skipped.
//
// Usage:
//
//	sensor-test [flags] [test-pattern]
//
// Flags:
//
//	-tests string      Path to test cases directory (default "./testdata/cases")
//	-profile string    Device profile YAML (default: every known sensor)
//	-tags string       Comma-separated tags to run
//	-timeout duration  Per-test timeout (default 30s)
//	-verbose           Enable verbose output
//	-json              Output results as JSON
//	-junit             Output results as JUnit XML
//	-event-log string  File path for captured API events (CBOR format)
//	-contract          Also verify the built-in API properties
//
// Examples:
//
//	# Run every suite
//	sensor-test
//
//	# Run the barometer cases against a weather station profile
//	sensor-test -profile testdata/profiles/weather-station.yaml TC-BARO
//
//	# JUnit output for CI
//	sensor-test -junit > results.xml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/runner"
	"github.com/sensorkit/sensorkit-go/pkg/contract"
	sensorlog "github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

var (
	tests        = flag.String("tests", "./testdata/cases", "Path to test cases directory")
	profile      = flag.String("profile", "", "Device profile YAML (default: every known sensor)")
	tags         = flag.String("tags", "", "Comma-separated tags to run")
	timeout      = flag.Duration("timeout", 30*time.Second, "Per-test timeout")
	verbose      = flag.Bool("verbose", false, "Enable verbose output")
	jsonOut      = flag.Bool("json", false, "Output results as JSON")
	junitOut     = flag.Bool("junit", false, "Output results as JUnit XML")
	eventLog     = flag.String("event-log", "", "File path for captured API events (CBOR format)")
	checkAPI     = flag.Bool("contract", false, "Also verify the built-in API properties")
	stopOnFailed = flag.Bool("failfast", false, "Stop after the first failing test")
)

func main() {
	flag.Parse()

	pattern := ""
	if flag.NArg() > 0 {
		pattern = flag.Arg(0)
	}

	outputFormat := "text"
	if *jsonOut {
		outputFormat = "json"
	} else if *junitOut {
		outputFormat = "junit"
	}

	if outputFormat == "text" {
		log.SetFlags(log.Ltime)
		if *verbose {
			log.SetFlags(log.Ltime | log.Lmicroseconds)
		}
		log.Printf("Tests: %s", *tests)
		if *profile != "" {
			log.Printf("Profile: %s", *profile)
		}
		if pattern != "" {
			log.Printf("Pattern: %s", pattern)
		}
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var events *sensorlog.FileLogger
	if *eventLog != "" {
		var err error
		events, err = sensorlog.NewFileLogger(*eventLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create event log: %v\n", err)
			os.Exit(1)
		}
		if outputFormat == "text" {
			log.Printf("Event logging to: %s", *eventLog)
		}
	}

	config := &runner.Config{
		TestDir:            *tests,
		Pattern:            pattern,
		Tags:               splitList(*tags),
		Timeout:            *timeout,
		StopOnFirstFailure: *stopOnFailed,
		Verbose:            *verbose,
		Output:             os.Stdout,
		OutputFormat:       outputFormat,
		ProfileFile:        *profile,
		Logger:             logger,
	}
	// Only set the event log when non-nil to avoid a typed-nil interface.
	if events != nil {
		config.EventLog = events
	}

	os.Exit(run(config, events, outputFormat == "text"))
}

func run(config *runner.Config, events *sensorlog.FileLogger, text bool) int {
	defer func() {
		if events != nil {
			events.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	code := 0
	if *checkAPI {
		if !verifyContract(ctx, config, text) {
			code = 1
		}
	}

	result, err := runner.New(config).Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !result.Passed() {
		code = 1
	}
	return code
}

// verifyContract checks the API properties against a device with every
// known sensor; the properties need the barometer and the step detector.
func verifyContract(ctx context.Context, config *runner.Config, text bool) bool {
	report := contract.Verify(ctx, contract.DefaultFactory(contract.EnvConfig{
		Catalog:  sensor.DefaultCatalog(),
		Logger:   config.Logger,
		EventLog: config.EventLog,
	}))

	out := os.Stdout
	if !text {
		out = os.Stderr
	}
	for _, res := range report.Results {
		status := "PASS"
		if !res.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(out, "[%s] property %s (%v)\n", status, res.Property.ID, res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Fprintf(out, "       %v\n", res.Err)
		}
	}
	fmt.Fprintf(out, "Properties: %d passed, %d failed\n\n", report.Passed(), report.Failed())
	return report.OK()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
