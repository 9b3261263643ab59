package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Sensors          map[int32]*SensorStats
	Clients          map[string]*ClientStats
	ErrorsByCode     map[int32]int
	AsyncErrors      int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SensorStats holds statistics for a single sensor.
type SensorStats struct {
	Subscribes   int
	Unsubscribes int
	Activations  int
	Readings     int
	Errors       int
}

// ClientStats holds statistics for a single client.
type ClientStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
}

// Collect reads every event of the log file into Stats.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Sensors:          make(map[int32]*SensorStats),
		Clients:          make(map[string]*ClientStats),
		ErrorsByCode:     make(map[int32]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	client, ok := s.Clients[event.ClientID]
	if !ok {
		client = &ClientStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Clients[event.ClientID] = client
	}
	client.Events++
	if event.Timestamp.After(client.LastSeen) {
		client.LastSeen = event.Timestamp
	}

	if event.Error != nil {
		s.ErrorsByCode[event.Error.Code]++
		if event.Error.Async {
			s.AsyncErrors++
		}
	}

	if event.SensorID == 0 {
		return
	}
	st, ok := s.Sensors[event.SensorID]
	if !ok {
		st = &SensorStats{}
		s.Sensors[event.SensorID] = st
	}
	switch event.Category {
	case log.CategorySubscribe:
		st.Subscribes++
	case log.CategoryUnsubscribe:
		st.Unsubscribes++
	case log.CategoryActivate:
		st.Activations++
	case log.CategoryReading:
		st.Readings++
	case log.CategoryError:
		st.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Sensor Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for c := log.CategorySubscribe; c <= log.CategoryState; c++ {
		if count := stats.EventsByCategory[c]; count > 0 {
			fmt.Fprintf(w, "  %-13s %d\n", c.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sensors: %d\n", len(stats.Sensors))
	for _, id := range slices.Sorted(maps.Keys(stats.Sensors)) {
		st := stats.Sensors[id]
		fmt.Fprintf(w, "  %-28s subscribe %d, unsubscribe %d, activate %d, readings %d, errors %d\n",
			sensorName(id), st.Subscribes, st.Unsubscribes, st.Activations, st.Readings, st.Errors)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Clients: %d\n", len(stats.Clients))
	type clientInfo struct {
		id    string
		stats *ClientStats
	}
	clients := make([]clientInfo, 0, len(stats.Clients))
	for id, cs := range stats.Clients {
		clients = append(clients, clientInfo{id, cs})
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].stats.FirstSeen.Before(clients[j].stats.FirstSeen)
	})
	for _, c := range clients {
		fmt.Fprintf(w, "  [%s] %d events, duration %s\n",
			shortenID(c.id), c.stats.Events, c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond))
	}

	if len(stats.ErrorsByCode) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors (%d async):\n", stats.AsyncErrors)
		for _, code := range slices.Sorted(maps.Keys(stats.ErrorsByCode)) {
			fmt.Fprintf(w, "  %-10d %d\n", code, stats.ErrorsByCode[code])
		}
	}
}
