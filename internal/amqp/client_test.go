package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	want := map[int]time.Duration{
		0:  time.Second,
		1:  2 * time.Second,
		3:  8 * time.Second,
		4:  16 * time.Second,
		5:  maxBackoff,
		15: maxBackoff,
	}
	for attempt, d := range want {
		assert.Equal(t, d, exponentialBackoff(attempt), "attempt %d", attempt)
	}
}

func TestIsConnectionError(t *testing.T) {
	for _, err := range []error{
		errors.New("dial tcp: connection refused"),
		errors.New("unexpected EOF"),
		errors.New("write: broken pipe"),
		errors.New("use of closed network connection"),
		fmt.Errorf("publish: %w", amqp091.ErrClosed),
	} {
		assert.True(t, isConnectionError(err), err.Error())
	}
	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errors.New("invalid input")))
}

func TestClient_CircuitBreaker(t *testing.T) {
	c := &Client{exchangeName: "tally", queueName: "ledger_changes"}
	require.False(t, c.isCircuitOpen())

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	assert.False(t, c.isCircuitOpen(), "below the threshold the circuit stays closed")

	c.recordFailure()
	assert.True(t, c.isCircuitOpen())

	ev := core.NewChangeEvent(1, core.EntityTransaction, core.ActionCreated, 123)
	err := c.PublishChange(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")

	c.mu.Lock()
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	c.mu.Unlock()
	assert.False(t, c.isCircuitOpen(), "the circuit half-opens after the timeout")
	assert.Equal(t, StateHalfOpen, c.state)

	c.recordFailure()
	assert.Equal(t, StateOpen, c.state, "a half-open failure reopens the circuit")

	c.recordSuccess()
	assert.Equal(t, StateClosed, c.state)
	assert.Zero(t, c.failureCount)
}

func TestClient_PublishChangeHonoursCancelledContext(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishChange(ctx, core.NewChangeEvent(1, core.EntityBudget, core.ActionUpdated, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	body, err := NewChangeMessage(core.NewChangeEvent(4, core.EntityCategory, core.ActionDeleted, 8)).ToJSON()
	require.NoError(t, err)

	tests := []struct {
		name      string
		body      []byte
		handlerFn ChangeHandler
		wantAck   bool
	}{
		{
			name: "handled message is acked",
			body: body,
			handlerFn: func(_ context.Context, ev core.ChangeEvent) error {
				if ev.OwnerID != 4 || ev.ID != 8 {
					return fmt.Errorf("unexpected event %+v", ev)
				}
				return nil
			},
			wantAck: true,
		},
		{
			name:      "handler failure is rejected",
			body:      body,
			handlerFn: func(context.Context, core.ChangeEvent) error { return errors.New("boom") },
		},
		{
			name: "undecodable body is rejected",
			body: []byte(`{"entity":"transaction"}`),
			handlerFn: func(context.Context, core.ChangeEvent) error {
				t.Fatal("handler must not run for an invalid body")
				return nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: tt.body}, tt.handlerFn)
			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.False(t, ack.requeued, "nothing is ever requeued")
		})
	}
}

func TestChangeMessage_RoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &ChangeMessage{OwnerID: 3, Entity: core.EntityTransaction, Action: core.ActionBulk, Timestamp: at}

	data, err := msg.ToJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"id"`, "a zero id is omitted")

	parsed, err := ChangeMessageFromJSON(data)
	require.NoError(t, err)
	ev := parsed.Event()
	assert.Equal(t, int64(3), ev.OwnerID)
	assert.Equal(t, core.ActionBulk, ev.Action)
	assert.True(t, ev.At.Equal(at))

	assert.False(t, NewChangeMessage(core.ChangeEvent{OwnerID: 1}).Timestamp.IsZero(), "events without a time are stamped")
}

func TestChangeMessage_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `{"owner_id": "x"}`,
		"missing owner":  `{"entity": "transaction", "action": "created"}`,
		"missing entity": `{"owner_id": 1, "action": "created"}`,
	} {
		_, err := ChangeMessageFromJSON([]byte(body))
		assert.Error(t, err, name)
	}
}
