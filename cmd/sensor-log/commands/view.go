// Package commands implements the sensor-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category *log.Category
	SensorID *int32
	Client   string
}

func (f ViewFilter) filter() log.Filter {
	return log.Filter{
		ClientID: f.Client,
		Category: f.Category,
		SensorID: f.SensorID,
	}
}

// RunView reads the log file and writes matching events to w.
func RunView(path string, filter ViewFilter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.filter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [client:id] CATEGORY operation sensor
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [client:%s] %-11s %s", ts, shortenID(event.ClientID), event.Category, event.Operation)
	if event.SensorID != 0 {
		fmt.Fprintf(w, " %s", sensorName(event.SensorID))
	}
	fmt.Fprintln(w)

	if event.SubscriptionID != 0 {
		fmt.Fprintf(w, "  Subscription: %d", event.SubscriptionID)
		if event.Mode != "" {
			fmt.Fprintf(w, " (%s)", event.Mode)
		}
		fmt.Fprintln(w)
	}
	if event.Callback != "" {
		fmt.Fprintf(w, "  Callback: %s\n", event.Callback)
	}
	if event.Interval != nil {
		fmt.Fprintf(w, "  Interval: %s\n", formatInterval(*event.Interval))
	}
	if len(event.Fields) > 0 {
		fmt.Fprintf(w, "  Fields: %s\n", formatFields(event.Fields))
	}
	if event.StateChange != nil {
		formatStateChangeDetails(w, event.StateChange)
	}
	if event.Error != nil {
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenID returns the first 8 characters of a client ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func sensorName(id int32) string {
	sid := sensor.ID(id)
	if sid.Known() {
		return fmt.Sprintf("%s(%d)", sid, id)
	}
	return fmt.Sprintf("sensor(%d)", id)
}

// formatInterval prints nanoseconds as a duration; negative values are kept
// verbatim since they are the interesting case.
func formatInterval(ns int64) string {
	if ns < 0 {
		return fmt.Sprintf("%dns (negative)", ns)
	}
	return time.Duration(ns).String()
}

func formatFields(fields map[string]float64) string {
	keys := slices.Sorted(maps.Keys(fields))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, fields[k])
	}
	return strings.Join(parts, " ")
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	from := sc.OldState
	if from == "" {
		from = "-"
	}
	fmt.Fprintf(w, "  %s: %s -> %s\n", sc.Entity, from, sc.NewState)
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	kind := "sync"
	if e.Async {
		kind = "async"
	}
	fmt.Fprintf(w, "  Error: %d %s (%s)\n", e.Code, e.Message, kind)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// ParseCategoryFlag parses a category flag value, case-insensitively.
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (use subscribe, unsubscribe, activate, deactivate, reading, error, state)", s)
	}
	return c, nil
}

// ParseSensorFlag parses a sensor flag value: a name or a numeric id.
func ParseSensorFlag(s string) (int32, error) {
	id, err := sensor.ParseID(s)
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}
