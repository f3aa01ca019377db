package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agromarket/internal/events"
)

type captureClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *captureClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{ID: "t", Type: task.Type()}, nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitEnqueuesTask(t *testing.T) {
	client := &captureClient{}
	notifier := &captureNotifier{}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Client:    client,
		Queue:     "checkout",
		MaxRetry:  3,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return now },
	}

	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "ORD-20260501-abc", events.OrderCreated{OrderID: "ORD-20260501-abc", Amount: 31500})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, now, ev.OccurredAt)
	require.Len(t, client.tasks, 1)
	require.Equal(t, events.TopicOrderCreated, client.tasks[0].Type())
	require.Len(t, client.opts[0], 3)
	require.Len(t, notifier.events, 1)

	decoded, err := events.Decode(client.tasks[0])
	require.NoError(t, err)
	require.Equal(t, ev.ID, decoded.ID)
	require.Equal(t, "ORD-20260501-abc", decoded.AggregateID)

	var payload events.OrderCreated
	require.NoError(t, json.Unmarshal(decoded.Payload, &payload))
	require.Equal(t, int64(31500), payload.Amount)
}

func TestEmitValidation(t *testing.T) {
	bus := events.Bus{Client: &captureClient{}}
	_, err := bus.Emit(context.Background(), " ", "agg", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "agg", "{broken")
	require.Error(t, err)

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), events.TopicOrderCreated, "agg", nil)
	require.Error(t, err)
}

func TestEmitSurfacesFailures(t *testing.T) {
	boom := errors.New("redis down")
	bus := events.Bus{Client: &captureClient{err: boom}}
	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, "agg", nil)
	require.ErrorIs(t, err, boom)

	notifier := &captureNotifier{err: errors.New("notify failed")}
	bus = events.Bus{Client: &captureClient{}, Notifiers: []events.Notifier{notifier}}
	ev, err := bus.Emit(context.Background(), events.TopicPaymentReturned, "agg", map[string]any{"orderId": "x"})
	require.Error(t, err)
	require.NotEmpty(t, ev.ID, "event is still returned once enqueued")
	require.JSONEq(t, `{"orderId":"x"}`, string(ev.Payload))
}
