// Command sensor-shell is an interactive console for the sensor API over a
// simulated device.
//
// Usage:
//
//	sensor-shell [flags]
//
// Flags:
//
//	-profile string    Device profile YAML (default: every known sensor)
//	-grant string      Comma-separated permissions granted at start
//	-event-log string  File path for captured API events (CBOR format)
//	-log-level string  Operational log level (debug, info, warn, error)
//
// Example:
//
//	sensor-shell -grant ohos.permission.ACTIVITY_MOTION
//	sensor> on barometer cb 100000000
//	sensor> once pedometer_detection
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sensorkit/sensorkit-go/cmd/sensor-shell/interactive"
	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/driver/sim"
	sensorlog "github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/permission"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

var (
	profile  = flag.String("profile", "", "Device profile YAML (default: every known sensor)")
	grant    = flag.String("grant", "", "Comma-separated permissions granted at start")
	eventLog = flag.String("event-log", "", "File path for captured API events (CBOR format)")
	logLevel = flag.String("log-level", "warn", "Operational log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", *logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	catalog := sensor.DefaultCatalog()
	if *profile != "" {
		p, err := sim.LoadProfile(*profile)
		if err != nil {
			return err
		}
		if catalog, err = p.Catalog(); err != nil {
			return err
		}
	}

	cfg := client.Config{
		Catalog: catalog,
		Logger:  logger,
	}
	if *eventLog != "" {
		fl, err := sensorlog.NewFileLogger(*eventLog)
		if err != nil {
			return fmt.Errorf("failed to create event log: %w", err)
		}
		defer fl.Close()
		cfg.EventLog = fl
	}

	drv := sim.New(sim.Config{Catalog: catalog, Logger: logger})
	defer drv.Close()
	cfg.Driver = drv

	grants := permission.NewGrants()
	for _, p := range strings.Split(*grant, ",") {
		if p = strings.TrimSpace(p); p != "" {
			grants.Grant(p)
		}
	}
	cfg.Permissions = grants

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	return interactive.New(c, drv, grants).Run(ctx)
}
