package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/db"
)

// TaskTypeFor maps an event topic to its asynq task type.
func TaskTypeFor(topic string) string {
	return "notify:" + strings.ReplaceAll(topic, ".", "_")
}

// Enqueuer publishes notification tasks for emitted domain events. It is
// a side channel: delivery is best-effort with no retries, because a
// missed notification must never hold up or roll back the financial
// record that triggered it.
type Enqueuer struct {
	Client *asynq.Client
	Queue  string
	Log    zerolog.Logger
}

// Notify implements the event bus fan-out by queueing one task per event.
// The event id doubles as the task id so an event emitted twice enqueues
// once.
func (e *Enqueuer) Notify(ctx context.Context, ev db.DomainEvent) error {
	if e == nil || e.Client == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.TaskID(ev.ID.String()),
		asynq.MaxRetry(0),
	}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	_, err = e.Client.EnqueueContext(ctx, asynq.NewTask(TaskTypeFor(ev.Topic), payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
