package interactive

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/client"
	"github.com/sensorkit/sensorkit-go/pkg/driver/sim"
	"github.com/sensorkit/sensorkit-go/pkg/permission"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// syncBuffer guards a bytes.Buffer written from callback goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newShell(t *testing.T) (*Shell, *syncBuffer) {
	t.Helper()
	drv := sim.New(sim.Config{Catalog: sensor.DefaultCatalog()})
	grants := permission.NewGrants()
	c, err := client.New(client.Config{Driver: drv, Permissions: grants})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		drv.Close()
	})

	sh := New(c, drv, grants)
	out := &syncBuffer{}
	sh.SetOutput(out)
	return sh, out
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %q in output:\n%s", want, out.String())
}

func TestExecSubscribeAndEmit(t *testing.T) {
	sh, out := newShell(t)
	ctx := context.Background()

	sh.Exec(ctx, "on barometer press")
	waitForOutput(t, out, "subscribed press to BAROMETER")

	sh.Exec(ctx, "emit barometer")
	waitForOutput(t, out, "[press] BAROMETER")
	waitForOutput(t, out, "pressure=")

	sh.Exec(ctx, "active")
	waitForOutput(t, out, "subscribers=1 running")

	sh.Exec(ctx, "off barometer press")
	waitForOutput(t, out, "BAROMETER: 0 subscriptions left")
}

func TestExecWatchAndReset(t *testing.T) {
	sh, out := newShell(t)
	ctx := context.Background()

	sh.Exec(ctx, "watch")
	waitForOutput(t, out, "watch: on")

	sh.Exec(ctx, "on barometer fast 50000000")
	waitForOutput(t, out, "enable period=50ms active")

	sh.Exec(ctx, "reset")
	waitForOutput(t, out, "reset period=200ms active")

	sh.Exec(ctx, "watch")
	waitForOutput(t, out, "watch: off")
}

func TestExecErrors(t *testing.T) {
	sh, out := newShell(t)
	ctx := context.Background()

	sh.Exec(ctx, "on -1")
	waitForOutput(t, out, "error 401: The parameter invalid.")

	sh.Exec(ctx, "on pedometer_detection")
	waitForOutput(t, out, "error 201: Permission denied.")

	sh.Exec(ctx, "grant ohos.permission.ACTIVITY_MOTION")
	waitForOutput(t, out, "granted: ohos.permission.ACTIVITY_MOTION")

	sh.Exec(ctx, "on pedometer_detection steps")
	waitForOutput(t, out, "subscribed steps to PEDOMETER_DETECTION")

	sh.Exec(ctx, "on barometer neg -5")
	waitForOutput(t, out, "error 14500101: Service exception.")

	sh.Exec(ctx, "on barometer cb fast")
	waitForOutput(t, out, "interval must be an integer")

	sh.Exec(ctx, "emit")
	waitForOutput(t, out, "sensor name or id required")

	sh.Exec(ctx, "bogus")
	waitForOutput(t, out, "Unknown command: bogus")
}

func TestExecInfoAndQuit(t *testing.T) {
	sh, out := newShell(t)
	ctx := context.Background()

	sh.Exec(ctx, "info pedometer")
	waitForOutput(t, out, "pedometer (266)")
	waitForOutput(t, out, "permission: ohos.permission.ACTIVITY_MOTION")

	if sh.Exec(ctx, "") {
		t.Error("empty line must not quit")
	}
	if !sh.Exec(ctx, "quit") {
		t.Error("quit must end the shell")
	}
}
