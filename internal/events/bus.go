package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier reacts to emitted events in-process (metrics, logging).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus publishes domain events as asynq tasks and fans them out to local notifiers.
type Bus struct {
	Client    Enqueuer
	Queue     string
	MaxRetry  int
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit publishes the event and dispatches it to all configured notifiers.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b == nil || b.Client == nil {
		return Event{}, errors.New("events: client not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	if strings.TrimSpace(aggregateID) == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev := Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  b.now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode event: %w", err)
	}
	if _, err := b.Client.EnqueueContext(ctx, asynq.NewTask(topic, data), b.options(ev)...); err != nil {
		return Event{}, fmt.Errorf("events: enqueue: %w", err)
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func (b *Bus) options(ev Event) []asynq.Option {
	opts := []asynq.Option{asynq.TaskID(ev.ID)}
	if b.Queue != "" {
		opts = append(opts, asynq.Queue(b.Queue))
	}
	if b.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(b.MaxRetry))
	}
	return opts
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Decode unpacks the envelope carried by an asynq task.
func Decode(task *asynq.Task) (Event, error) {
	if task == nil {
		return Event{}, errors.New("events: nil task")
	}
	var ev Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("events: decode %s: %w", task.Type(), err)
	}
	if ev.Topic == "" {
		ev.Topic = task.Type()
	}
	return ev, nil
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		return validJSON(v)
	case json.RawMessage:
		return validJSON(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		return validJSON([]byte(v))
	default:
		return json.Marshal(v)
	}
}

func validJSON(v []byte) ([]byte, error) {
	if len(v) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(v) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), v...), nil
}
