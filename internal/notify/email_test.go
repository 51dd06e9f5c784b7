package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/events"
)

func TestTaskTypeFor(t *testing.T) {
	if got := TaskTypeFor(events.TopicLeadCreated); got != "notify:lead_created" {
		t.Fatalf("task type = %q", got)
	}
	if got := TaskTypeFor(events.TopicSalePaid); got != "notify:sale_paid" {
		t.Fatalf("task type = %q", got)
	}
}

func TestEmailHandlerSendsForEvent(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	h := &EmailHandler{Email: outbox, To: "ops@greenroute.test", Log: zerolog.Nop()}

	ev := db.DomainEvent{
		ID:          uuid.New(),
		Topic:       events.TopicSaleRecorded,
		AggregateID: "sale-42",
		Payload:     []byte(`{"amount_cents":5000}`),
		OccurredAt:  time.Now(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := h.Handle(context.Background(), asynq.NewTask(TaskTypeFor(ev.Topic), payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(outbox.Outbox) != 1 {
		t.Fatalf("outbox size = %d, want 1", len(outbox.Outbox))
	}
	sent := outbox.Outbox[0]
	if sent.To != "ops@greenroute.test" {
		t.Fatalf("to = %q", sent.To)
	}
	if sent.Subject != "Sale recorded: $50.00" {
		t.Fatalf("subject = %q", sent.Subject)
	}
	if !strings.Contains(sent.HTML, "sale-42") {
		t.Fatal("body should reference the record")
	}
}

func TestEmailHandlerMalformedPayloadIsDropped(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	h := &EmailHandler{Email: outbox, To: "ops@greenroute.test", Log: zerolog.Nop()}

	err := h.Handle(context.Background(), asynq.NewTask("notify:sale_recorded", []byte("{broken")))
	if err != nil {
		t.Fatalf("malformed payload must not surface an error: %v", err)
	}
	if len(outbox.Outbox) != 0 {
		t.Fatal("no email expected for a malformed payload")
	}
}

func TestEmailHandlerUnconfiguredIsNoop(t *testing.T) {
	h := &EmailHandler{}
	if err := h.Handle(context.Background(), asynq.NewTask("notify:lead_created", nil)); err != nil {
		t.Fatalf("unconfigured handler: %v", err)
	}
}
