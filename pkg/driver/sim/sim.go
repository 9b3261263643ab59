// Package sim provides a simulated sensor driver.
//
// Each enabled sensor gets a ticker on the configured clock. Every tick
// produces a deterministic reading whose fields sweep through the ranges
// declared in the sensor catalog, so tests can rely on plausible values
// (a barometer reports pressure in hPa, pedometer detection alternates
// between 0 and 1). With a mock clock, readings are produced only when the
// test advances time.
package sim

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sensorkit/sensorkit-go/pkg/driver"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

const defaultTick = 200 * time.Millisecond

// Config configures a simulated driver.
type Config struct {
	// Catalog lists the sensors the simulated device has. Defaults to every
	// known sensor.
	Catalog *sensor.Catalog

	// Clock drives the tickers. Defaults to the wall clock.
	Clock clock.Clock

	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Driver is a simulated driver.Driver.
type Driver struct {
	mu sync.Mutex

	catalog *sensor.Catalog
	clock   clock.Clock
	logger  *slog.Logger
	sink    driver.Sink

	streams     map[sensor.ID]*stream
	enableFault map[sensor.ID]error

	stats map[sensor.ID]*Stats
	wg    sync.WaitGroup
}

// Stats counts driver calls for one sensor.
type Stats struct {
	Enables    int
	Disables   int
	SetPeriods int
	Readings   int
}

type stream struct {
	id          sensor.ID
	period      time.Duration
	reportDelay time.Duration
	ticker      *clock.Ticker
	reset       chan time.Duration
	done        chan struct{}
	seq         uint64
}

// New creates a simulated driver.
func New(cfg Config) *Driver {
	if cfg.Catalog == nil {
		cfg.Catalog = sensor.DefaultCatalog()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{
		catalog:     cfg.Catalog,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		streams:     make(map[sensor.ID]*stream),
		enableFault: make(map[sensor.ID]error),
		stats:       make(map[sensor.ID]*Stats),
	}
}

// Catalog returns the simulated device's catalog.
func (d *Driver) Catalog() *sensor.Catalog {
	return d.catalog
}

// Sensors implements driver.Driver.
func (d *Driver) Sensors() []sensor.Descriptor {
	return d.catalog.All()
}

// SetSink implements driver.Driver.
func (d *Driver) SetSink(sink driver.Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

// Enable implements driver.Driver. Negative periods are rejected; other
// periods are clamped to the sensor's supported range for the ticker.
func (d *Driver) Enable(id sensor.ID, samplingPeriod, reportDelay time.Duration) error {
	desc, ok := d.catalog.Lookup(id)
	if !ok {
		return fmt.Errorf("enable %v: %w", id, driver.ErrUnsupported)
	}
	if err := driver.ValidatePeriod(samplingPeriod); err != nil {
		return fmt.Errorf("enable %v: %w", id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.statsLocked(id).Enables++
	if err, ok := d.enableFault[id]; ok {
		delete(d.enableFault, id)
		return fmt.Errorf("enable %v: %w", id, err)
	}
	if _, ok := d.streams[id]; ok {
		return fmt.Errorf("enable %v: %w", id, driver.ErrAlreadyEnabled)
	}

	tick := clampPeriod(desc, samplingPeriod)
	s := &stream{
		id:          id,
		period:      samplingPeriod,
		reportDelay: reportDelay,
		ticker:      d.clock.Ticker(tick),
		reset:       make(chan time.Duration, 1),
		done:        make(chan struct{}),
	}
	d.streams[id] = s

	d.wg.Add(1)
	go d.run(s, desc)

	d.logger.Debug("sensor enabled", "sensor_id", int32(id), "period", samplingPeriod, "tick", tick)
	return nil
}

// SetPeriod implements driver.Driver.
func (d *Driver) SetPeriod(id sensor.ID, samplingPeriod time.Duration) error {
	if err := driver.ValidatePeriod(samplingPeriod); err != nil {
		return fmt.Errorf("set period %v: %w", id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.streams[id]
	if !ok {
		return fmt.Errorf("set period %v: %w", id, driver.ErrNotEnabled)
	}
	d.statsLocked(id).SetPeriods++
	s.period = samplingPeriod

	desc, _ := d.catalog.Lookup(id)
	select {
	case <-s.reset:
	default:
	}
	s.reset <- clampPeriod(desc, samplingPeriod)
	return nil
}

// Disable implements driver.Driver.
func (d *Driver) Disable(id sensor.ID) error {
	d.mu.Lock()
	s, ok := d.streams[id]
	if ok {
		delete(d.streams, id)
		d.statsLocked(id).Disables++
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("disable %v: %w", id, driver.ErrNotEnabled)
	}
	close(s.done)
	d.logger.Debug("sensor disabled", "sensor_id", int32(id))
	return nil
}

// Close disables every sensor and waits for the tickers to stop.
func (d *Driver) Close() error {
	d.mu.Lock()
	streams := d.streams
	d.streams = make(map[sensor.ID]*stream)
	d.mu.Unlock()

	for _, s := range streams {
		close(s.done)
	}
	d.wg.Wait()
	return nil
}

// Enabled reports whether id is enabled.
func (d *Driver) Enabled(id sensor.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.streams[id]
	return ok
}

// Period returns the sampling period last requested for an enabled sensor.
func (d *Driver) Period(id sensor.ID) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.streams[id]
	if !ok {
		return 0, false
	}
	return s.period, true
}

// Stats returns a copy of the call counters for id.
func (d *Driver) Stats(id sensor.ID) Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.statsLocked(id)
}

// FailNextEnable makes the next Enable of id fail with err.
func (d *Driver) FailNextEnable(id sensor.ID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enableFault[id] = err
}

// InjectFault reports err for id through the sink. It returns false when the
// sensor is not enabled.
func (d *Driver) InjectFault(id sensor.ID, err error) bool {
	d.mu.Lock()
	_, ok := d.streams[id]
	sink := d.sink
	d.mu.Unlock()

	if !ok || sink == nil {
		return false
	}
	sink.OnFault(driver.Fault{SensorID: id, Err: err})
	return true
}

// Inject delivers r through the sink as if the sensor had produced it. It
// returns false when the sensor is not enabled.
func (d *Driver) Inject(r sensor.Reading) bool {
	d.mu.Lock()
	_, ok := d.streams[r.SensorID]
	sink := d.sink
	if ok {
		d.statsLocked(r.SensorID).Readings++
	}
	d.mu.Unlock()

	if !ok || sink == nil {
		return false
	}
	sink.OnReading(r.Clone())
	return true
}

// Emit produces one generated reading for an enabled sensor immediately.
func (d *Driver) Emit(id sensor.ID) bool {
	d.mu.Lock()
	s, ok := d.streams[id]
	var r sensor.Reading
	if ok {
		desc, _ := d.catalog.Lookup(id)
		s.seq++
		r = Generate(desc, s.seq, d.clock.Now())
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	return d.Inject(r)
}

func (d *Driver) run(s *stream, desc sensor.Descriptor) {
	defer d.wg.Done()
	defer s.ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case p := <-s.reset:
			s.ticker.Reset(p)
		case now := <-s.ticker.C:
			d.mu.Lock()
			if d.streams[s.id] != s {
				d.mu.Unlock()
				return
			}
			s.seq++
			r := Generate(desc, s.seq, now)
			d.statsLocked(s.id).Readings++
			sink := d.sink
			d.mu.Unlock()

			if sink != nil {
				sink.OnReading(r)
			}
		}
	}
}

func (d *Driver) statsLocked(id sensor.ID) *Stats {
	st, ok := d.stats[id]
	if !ok {
		st = &Stats{}
		d.stats[id] = st
	}
	return st
}

func clampPeriod(desc sensor.Descriptor, p time.Duration) time.Duration {
	if desc.MinSamplePeriod > 0 && p < desc.MinSamplePeriod {
		return desc.MinSamplePeriod
	}
	if desc.MaxSamplePeriod > 0 && p > desc.MaxSamplePeriod {
		return desc.MaxSamplePeriod
	}
	if p <= 0 {
		return defaultTick
	}
	return p
}

// Generate returns the seq-th deterministic reading for a sensor.
// Continuous fields follow a slow sine around the middle of their range;
// discrete fields cycle through their steps.
func Generate(desc sensor.Descriptor, seq uint64, ts time.Time) sensor.Reading {
	fields := make(map[string]float64, len(desc.Ranges))
	for i, fr := range desc.Ranges {
		fields[fr.Name] = fieldValue(fr, i, seq)
	}
	return sensor.Reading{SensorID: desc.ID, Timestamp: ts, Fields: fields}
}

func fieldValue(fr sensor.FieldRange, index int, seq uint64) float64 {
	if fr.Step > 0 {
		levels := uint64((fr.Max-fr.Min)/fr.Step) + 1
		return fr.Min + float64(seq%levels)*fr.Step
	}
	mid := (fr.Min + fr.Max) / 2
	amp := (fr.Max - fr.Min) / 4
	return mid + amp*math.Sin(float64(seq)*0.1+float64(index))
}
