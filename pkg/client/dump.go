package client

import (
	"fmt"
	"io"
)

// Dump writes a human-readable description of the client: its sensors,
// the active sensors and every subscription.
func (c *Client) Dump(w io.Writer) error {
	p := &dumpWriter{w: w}

	p.printf("client %s\n", c.id)
	p.printf("suspended: %t\n", c.disp.Suspended())

	sensors := c.catalog.All()
	p.printf("\nsensors (%d):\n", len(sensors))
	for _, d := range sensors {
		p.printf("  %-4d %-20s vendor=%s fw=%s hw=%s maxRange=%g precision=%g power=%gmA period=[%v,%v]",
			int32(d.ID), d.ID, d.Vendor, d.FirmwareVersion, d.HardwareVersion,
			d.MaxRange, d.Precision, d.Power, d.MinSamplePeriod, d.MaxSamplePeriod)
		if d.Permission != "" {
			p.printf(" permission=%s", d.Permission)
		}
		p.printf("\n")
	}

	active := c.disp.ActiveInfo()
	p.printf("\nactive (%d):\n", len(active))
	for _, a := range active {
		p.printf("  %-20s period=%v delay=%v subscribers=%d suspended=%t\n",
			a.SensorID, a.SamplingPeriod, a.ReportDelay, a.Subscribers, a.Suspended)
	}

	subs := c.Subscriptions()
	p.printf("\nsubscriptions (%d):\n", len(subs))
	for _, s := range subs {
		interval := "default"
		if iv, ok := s.Interval(); ok {
			interval = fmt.Sprintf("%dns", iv)
		}
		p.printf("  #%-4d %-20s %-10s interval=%s callback=%s delivered=%d state=%s\n",
			s.ID, s.SensorID, s.Mode(), interval, s.Callback.Name(), s.Delivered(), s.State())
	}
	return p.err
}

// dumpWriter remembers the first write error.
type dumpWriter struct {
	w   io.Writer
	err error
}

func (p *dumpWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
