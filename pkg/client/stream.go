package client

import (
	"context"
	"time"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
	"github.com/sensorkit/sensorkit-go/pkg/subscription"
)

// StreamBuffer is the channel capacity of a Stream.
const StreamBuffer = 16

// Stream subscribes continuously to id and returns the events on a channel.
// Cancelling ctx removes the subscription and closes the channel; so does
// closing the client. A slow reader delays only its own stream.
func (c *Client) Stream(ctx context.Context, id sensor.ID, opts *Options) (<-chan subscription.Event, error) {
	out := make(chan subscription.Event, StreamBuffer)
	done := make(chan struct{})

	cb := subscription.NamedCallback("stream", func(ev subscription.Event) {
		select {
		case out <- ev:
		case <-done:
		}
	})

	h, err := c.On(id, cb, opts)
	if err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
		case <-c.closing:
		}
		close(done)
		h.Close()
		h.sub.Deactivate()
		for !h.sub.Idle(time.Second) {
			c.logger.Warn("stream callback still running", "sensor_id", int32(id), "subscription_id", h.ID())
		}
		close(out)
	}()
	return out, nil
}
