// Package interactive provides the interactive command-line interface of
// sensor-shell.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/dispatch"
	"github.com/sensorkit/sensorkit-go/pkg/driver/sim"
	"github.com/sensorkit/sensorkit-go/pkg/errcode"
	"github.com/sensorkit/sensorkit-go/pkg/permission"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// Shell drives a client over a simulated driver from typed commands.
type Shell struct {
	client *client.Client
	driver *sim.Driver
	grants *permission.Grants

	mu        sync.Mutex
	out       io.Writer
	callbacks map[string]*subscription.Callback
	quiet     bool
	watcher   *dispatch.ActiveInfoCallback
}

// New creates a shell. Output goes to stdout until Run attaches readline.
func New(c *client.Client, drv *sim.Driver, grants *permission.Grants) *Shell {
	return &Shell{
		client:    c,
		driver:    drv,
		grants:    grants,
		out:       os.Stdout,
		callbacks: make(map[string]*subscription.Callback),
	}
}

// SetOutput redirects command and callback output.
func (s *Shell) SetOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
}

func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Run starts the interactive command loop. It returns when the user quits,
// input ends or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sensor> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.SetOutput(rl.Stdout())

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			s.printf("Exiting...\n")
			return nil
		}
		if s.Exec(ctx, line) {
			s.printf("Exiting...\n")
			return nil
		}
	}
}

func completer() *readline.PrefixCompleter {
	var sensors []readline.PrefixCompleterInterface
	for _, d := range sensor.DefaultCatalog().All() {
		sensors = append(sensors, readline.PcItem(d.Name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("info", sensors...),
		readline.PcItem("on", sensors...),
		readline.PcItem("once", sensors...),
		readline.PcItem("off", sensors...),
		readline.PcItem("emit", sensors...),
		readline.PcItem("fault", sensors...),
		readline.PcItem("active"),
		readline.PcItem("suspend"),
		readline.PcItem("resume"),
		readline.PcItem("reset"),
		readline.PcItem("watch"),
		readline.PcItem("grant"),
		readline.PcItem("revoke"),
		readline.PcItem("quiet"),
		readline.PcItem("dump"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "list", "ls":
		s.cmdList()
	case "info", "i":
		err = s.cmdInfo(args)
	case "on":
		err = s.cmdOn(args)
	case "once":
		err = s.cmdOnce(args)
	case "off":
		err = s.cmdOff(args)
	case "emit":
		err = s.cmdEmit(ctx, args)
	case "fault":
		err = s.cmdFault(args)
	case "active", "a":
		err = s.cmdActive(ctx)
	case "suspend":
		err = s.client.Suspend(ctx)
	case "resume":
		err = s.client.Resume(ctx)
	case "reset":
		err = s.client.ResetSensors(ctx)
	case "watch":
		err = s.cmdWatch()
	case "grant":
		err = s.cmdGrant(args, true)
	case "revoke":
		err = s.cmdGrant(args, false)
	case "quiet":
		s.mu.Lock()
		s.quiet = !s.quiet
		q := s.quiet
		s.mu.Unlock()
		s.printf("quiet: %t\n", q)
	case "dump":
		s.mu.Lock()
		err = s.client.Dump(s.out)
		s.mu.Unlock()
	case "quit", "exit", "q":
		return true
	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		s.printError(err)
	}
	return false
}

func (s *Shell) printError(err error) {
	var apiErr *errcode.Error
	if errors.As(err, &apiErr) {
		s.printf("error %d: %s (%v)\n", int32(apiErr.Code), apiErr.Message, err)
		return
	}
	s.printf("error: %v\n", err)
}

func (s *Shell) printHelp() {
	s.printf(`
Sensor Shell Commands:
  Sensors:
    list                         - List supported sensors
    info <sensor>                - Show a sensor descriptor (getSingleSensor)

  Subscriptions:
    on <sensor> [cb] [interval]  - Subscribe cb (default "cb"); interval in ns
    once <sensor> [cb]           - Deliver one reading to cb
    off <sensor> [cb]            - Unsubscribe cb, or every callback
    active                       - Show enabled sensors
    dump                         - Show client state

  Simulation:
    emit <sensor>                - Produce one reading now
    fault <sensor> [message]     - Report a driver fault
    suspend / resume             - Stop and restart non-exempt sensors
    reset                        - Put enabled sensors back on the default period
    watch                        - Toggle printing of activation changes
    grant / revoke <permission>  - Change granted permissions
    quiet                        - Toggle printing of callback events

  General:
    help                         - Show this help
    quit                         - Exit
`)
}

func parseSensor(args []string) (sensor.ID, error) {
	if len(args) == 0 {
		return 0, errors.New("sensor name or id required")
	}
	return sensor.ParseID(args[0])
}

// callback returns the named printing callback, creating it on first use so
// that off finds the same callback on.
func (s *Shell) callback(name string) *subscription.Callback {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.callbacks[name]; ok {
		return cb
	}
	cb := subscription.NamedCallback(name, func(ev subscription.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.quiet {
			return
		}
		s.writeEvent(name, ev)
	})
	s.callbacks[name] = cb
	return cb
}

func (s *Shell) writeEvent(name string, ev subscription.Event) {
	if ev.Err != nil {
		fmt.Fprintf(s.out, "[%s] %s #%d error %d: %s\n",
			name, ev.SensorID, ev.SubscriptionID, int32(errcode.Of(ev.Err)), errcode.MessageOf(ev.Err))
		return
	}
	if ev.Reading == nil {
		return
	}
	fmt.Fprintf(s.out, "[%s] %s #%d %s", name, ev.SensorID, ev.SubscriptionID, ev.Reading.Timestamp.Format("15:04:05.000"))
	for _, f := range ev.Reading.FieldNames() {
		v, _ := ev.Reading.Field(f)
		fmt.Fprintf(s.out, " %s=%.3f", f, v)
	}
	fmt.Fprintln(s.out)
}

func (s *Shell) cmdList() {
	for _, d := range s.client.Sensors() {
		perm := ""
		if d.Permission != "" {
			perm = "  [" + d.Permission + "]"
		}
		s.printf("  %-4d %-22s %v..%v%s\n", int32(d.ID), d.Name, d.MinSamplePeriod, d.MaxSamplePeriod, perm)
	}
}

func (s *Shell) cmdInfo(args []string) error {
	id, err := parseSensor(args)
	if err != nil {
		return err
	}
	done := make(chan sensor.Descriptor, 1)
	if err := s.client.GetSingleSensor(id, func(d sensor.Descriptor, _ error) { done <- d }); err != nil {
		return err
	}
	select {
	case d := <-done:
		s.printf("%s (%d)\n  vendor: %s\n  firmware: %s  hardware: %s\n  range: %g  precision: %g  power: %gmA\n  period: %v..%v\n  fields: %s\n",
			d.Name, int32(d.ID), d.Vendor, d.FirmwareVersion, d.HardwareVersion,
			d.MaxRange, d.Precision, d.Power, d.MinSamplePeriod, d.MaxSamplePeriod, strings.Join(d.Fields, ", "))
		if d.Permission != "" {
			s.printf("  permission: %s\n", d.Permission)
		}
		return nil
	case <-time.After(time.Second):
		return errors.New("descriptor callback not invoked")
	}
}

func nameArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "cb"
}

func (s *Shell) cmdOn(args []string) error {
	id, err := parseSensor(args)
	if err != nil {
		return err
	}
	var opts *client.Options
	if len(args) > 2 {
		iv, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("interval must be an integer number of nanoseconds: %w", err)
		}
		opts = client.WithInterval(iv)
	}
	name := nameArg(args, 1)
	h, err := s.client.On(id, s.callback(name), opts)
	if err != nil {
		return err
	}
	s.printf("subscribed %s to %s (#%d)\n", name, id, h.ID())
	return nil
}

func (s *Shell) cmdOnce(args []string) error {
	id, err := parseSensor(args)
	if err != nil {
		return err
	}
	name := nameArg(args, 1)
	h, err := s.client.Once(id, s.callback(name))
	if err != nil {
		return err
	}
	s.printf("one-shot %s on %s (#%d)\n", name, id, h.ID())
	return nil
}

func (s *Shell) cmdOff(args []string) error {
	id, err := parseSensor(args)
	if err != nil {
		return err
	}
	var cb *subscription.Callback
	if len(args) > 1 {
		cb = s.callback(args[1])
	}
	if err := s.client.Off(id, cb); err != nil {
		return err
	}
	s.printf("%s: %d subscriptions left\n", id, s.client.SubscriptionCount(id))
	return nil
}

func (s *Shell) cmdEmit(ctx context.Context, args []string) error {
	id, err := parseSensor(args)
	if err != nil {
		return err
	}
	if err := s.client.Flush(ctx); err != nil {
		return err
	}
	if !s.driver.Emit(id) {
		return fmt.Errorf("%s is not enabled", id)
	}
	return nil
}

func (s *Shell) cmdFault(args []string) error {
	id, err := parseSensor(args)
	if err != nil {
		return err
	}
	msg := "injected fault"
	if len(args) > 1 {
		msg = strings.Join(args[1:], " ")
	}
	if !s.driver.InjectFault(id, errors.New(msg)) {
		return fmt.Errorf("%s is not enabled", id)
	}
	return nil
}

func (s *Shell) cmdActive(ctx context.Context) error {
	infos, err := s.client.ActiveInfo(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		s.printf("no active sensors\n")
	}
	for _, a := range infos {
		state := "running"
		if a.Suspended {
			state = "suspended"
		}
		s.printf("  %-22s period=%v subscribers=%d %s\n", a.SensorID, a.SamplingPeriod, a.Subscribers, state)
	}
	return nil
}

func (s *Shell) cmdWatch() error {
	s.mu.Lock()
	cb := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if cb != nil {
		if err := s.client.OffActiveInfo(cb); err != nil {
			return err
		}
		s.printf("watch: off\n")
		return nil
	}

	cb = dispatch.NamedActiveInfoCallback("shell", func(ch dispatch.ActiveChange) {
		state := "inactive"
		if ch.Active {
			state = "active"
		}
		s.printf("  ~ %-22s %s period=%v %s\n", ch.SensorID, ch.Op, ch.SamplingPeriod, state)
	})
	if err := s.client.OnActiveInfo(cb); err != nil {
		return err
	}
	s.mu.Lock()
	s.watcher = cb
	s.mu.Unlock()
	s.printf("watch: on\n")
	return nil
}

func (s *Shell) cmdGrant(args []string, grant bool) error {
	if len(args) == 0 {
		return errors.New("permission required")
	}
	if grant {
		s.grants.Grant(args...)
	} else {
		s.grants.Revoke(args...)
	}
	s.printf("granted: %s\n", strings.Join(s.grants.List(), ", "))
	return nil
}
