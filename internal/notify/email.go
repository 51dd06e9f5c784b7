package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/events"
)

// EmailHandler turns queued notification tasks into operations emails.
type EmailHandler struct {
	Email common.EmailSender
	// To is the operations distribution address.
	To  string
	Log zerolog.Logger
}

// Register attaches one handler per supported topic to the mux.
func (h *EmailHandler) Register(mux *asynq.ServeMux) {
	for _, topic := range events.DefaultTopics() {
		mux.HandleFunc(TaskTypeFor(topic), h.Handle)
	}
}

// Handle processes a single notification task.
func (h *EmailHandler) Handle(_ context.Context, task *asynq.Task) error {
	if h == nil || h.Email == nil || h.To == "" {
		return nil
	}
	var ev db.DomainEvent
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		h.Log.Error().Err(err).Str("task", task.Type()).Msg("notification payload unreadable")
		return nil
	}
	subject, body := render(ev)
	if err := h.Email.Send(h.To, subject, body); err != nil {
		// No retry path: log and drop rather than re-queue.
		h.Log.Error().Err(err).Str("topic", ev.Topic).Str("aggregate_id", ev.AggregateID).Msg("notification email failed")
	}
	return nil
}

func render(ev db.DomainEvent) (subject, body string) {
	switch ev.Topic {
	case events.TopicLeadCreated:
		subject = "New lead claimed"
	case events.TopicSaleRecorded:
		subject = "Sale recorded"
		var sale struct {
			AmountCents int64 `json:"amount_cents"`
		}
		if err := json.Unmarshal(ev.Payload, &sale); err == nil && sale.AmountCents > 0 {
			subject = "Sale recorded: $" + comp.Dollars(sale.AmountCents).StringFixed(2)
		}
	case events.TopicSalePaid:
		subject = "Sale marked paid"
	case events.TopicShiftRecorded:
		subject = "Activation shift recorded"
	case events.TopicShiftPaid:
		subject = "Shift marked paid"
	default:
		subject = "CRM event " + ev.Topic
	}
	body = fmt.Sprintf("<p>%s</p><p>Record: <code>%s</code></p><pre>%s</pre>",
		html.EscapeString(subject),
		html.EscapeString(ev.AggregateID),
		html.EscapeString(string(ev.Payload)))
	return subject, body
}
