package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(paho.Token)
}

func (m *mockClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

type token struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *token {
	t := &token{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *token) Wait() bool {
	<-t.done
	return true
}

func (t *token) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *token) Done() <-chan struct{} { return t.done }
func (t *token) Error() error          { return t.err }

func TestPublish(t *testing.T) {
	c := &mockClient{}
	c.On("Publish", "sensors/barometer", byte(1), true, []byte(`{}`)).Return(doneToken(nil))

	p := New(c, Config{QoS: 1, Retained: true})
	require.NoError(t, p.Publish(context.Background(), "sensors/barometer", []byte(`{}`)))
	c.AssertExpectations(t)
}

func TestPublishError(t *testing.T) {
	c := &mockClient{}
	c.On("Publish", "t", byte(0), false, mock.Anything).Return(doneToken(errors.New("not connected")))

	err := New(c, Config{}).Publish(context.Background(), "t", []byte("x"))
	assert.ErrorContains(t, err, "publish t: not connected")
}

func TestPublishContextCancelled(t *testing.T) {
	c := &mockClient{}
	pending := &token{done: make(chan struct{})}
	c.On("Publish", "t", byte(0), false, mock.Anything).Return(pending)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := New(c, Config{}).Publish(ctx, "t", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose(t *testing.T) {
	c := &mockClient{}
	c.On("Disconnect", uint(250)).Return()

	assert.NoError(t, New(c, Config{}).Close())
	c.AssertExpectations(t)
}

func TestConnectRequiresBroker(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoBroker)
}
