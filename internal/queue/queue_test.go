package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRoutingKeys(t *testing.T) {
	keys := RoutingKeys()
	if len(keys) != 3 {
		t.Fatalf("RoutingKeys len = %d, want 3", len(keys))
	}

	expected := map[string]struct{}{
		"budget.allocated": {},
		"budget.cancelled": {},
		"budget.expired":   {},
	}

	for _, key := range keys {
		if _, ok := expected[key]; !ok {
			t.Fatalf("unexpected routing key: %s", key)
		}
	}
}

func TestDLQName(t *testing.T) {
	if got := DLQName(BudgetEventsQueue); got != "dlq.budget.events" {
		t.Fatalf("DLQName = %s, want dlq.budget.events", got)
	}
}

func TestBudgetEventMessageValidate(t *testing.T) {
	msg := BudgetEventMessage{
		EventID:  "e1",
		Type:     domain.BudgetEventAllocated,
		PolicyID: "policy-1",
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.EventID = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty event id")
	}

	msg.EventID = "e1"
	msg.Type = domain.BudgetEventType("refunded")
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for invalid type")
	}

	msg.Type = domain.BudgetEventCancelled
	msg.PolicyID = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty policy id")
	}
}

func TestMessageFromEventRoundTrip(t *testing.T) {
	event := domain.BudgetEvent{
		EventID:          "e1",
		Type:             domain.BudgetEventAllocated,
		PolicyID:         "policy-1",
		EnterpriseID:     "ent-1",
		ContentKey:       "course-v1:edX+DemoX",
		Allocated:        2,
		AlreadyAllocated: 1,
		OccurredAt:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	msg := MessageFromEvent(event, "corr-1")
	if msg.CorrelationID != "corr-1" {
		t.Fatalf("CorrelationID = %q, want corr-1", msg.CorrelationID)
	}
	if got := msg.ToDomain(); got != event {
		t.Fatalf("ToDomain() = %+v, want %+v", got, event)
	}

	publishing, err := newPublishing(msg)
	if err != nil {
		t.Fatalf("newPublishing() error = %v", err)
	}
	if publishing.MessageId != "e1" || publishing.Type != "allocated" || publishing.CorrelationId != "corr-1" {
		t.Fatalf("publishing headers = %+v", publishing)
	}
	if publishing.DeliveryMode != amqp.Persistent {
		t.Fatalf("DeliveryMode = %d, want persistent", publishing.DeliveryMode)
	}
	if !publishing.Timestamp.Equal(event.OccurredAt) {
		t.Fatalf("Timestamp = %s, want %s", publishing.Timestamp, event.OccurredAt)
	}
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
	reject  int
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reject++
	return nil
}

func newDelivery(t *testing.T, ack amqp.Acknowledger, body any, redelivered bool) amqp.Delivery {
	t.Helper()

	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
	}
	return amqp.Delivery{Acknowledger: ack, Body: raw, Redelivered: redelivered, RoutingKey: "budget.allocated"}
}

func TestHandleDelivery(t *testing.T) {
	t.Parallel()

	valid := BudgetEventMessage{EventID: "e1", Type: domain.BudgetEventAllocated, PolicyID: "policy-1", CorrelationID: "corr-1"}
	failing := func(context.Context, BudgetEventMessage) error { return errors.New("redis down") }

	tests := []struct {
		name        string
		body        any
		redelivered bool
		handler     MessageHandler
		wantAck     int
		wantNack    int
		wantReject  int
	}{
		{name: "invalid json is rejected", body: []byte("{"), wantReject: 1},
		{name: "invalid payload is rejected", body: BudgetEventMessage{EventID: "e1"}, wantReject: 1},
		{name: "handled message is acked", body: valid, wantAck: 1},
		{name: "first failure is requeued", body: valid, handler: failing, wantNack: 1},
		{name: "redelivered failure is dead-lettered", body: valid, redelivered: true, handler: failing, wantReject: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ack := &fakeAcknowledger{}
			handler := tt.handler
			if handler == nil {
				handler = func(ctx context.Context, msg BudgetEventMessage) error {
					if id, _ := observability.CorrelationIDFromContext(ctx); id != "corr-1" {
						t.Errorf("correlation id = %q, want corr-1", id)
					}
					return nil
				}
			}

			c := NewRabbitMQConsumer(nil, 0, nil)
			if err := c.handleDelivery(context.Background(), newDelivery(t, ack, tt.body, tt.redelivered), handler); err != nil {
				t.Fatalf("handleDelivery() error = %v", err)
			}

			if ack.acked != tt.wantAck || ack.nacked != tt.wantNack || ack.reject != tt.wantReject {
				t.Fatalf("ack/nack/reject = %d/%d/%d, want %d/%d/%d",
					ack.acked, ack.nacked, ack.reject, tt.wantAck, tt.wantNack, tt.wantReject)
			}
			if tt.wantNack > 0 && !ack.requeue {
				t.Fatal("nack should requeue")
			}
		})
	}
}

func TestPublisherNotInitialized(t *testing.T) {
	var p *RabbitMQPublisher
	err := p.Publish(context.Background(), BudgetEventMessage{EventID: "e1", Type: domain.BudgetEventAllocated, PolicyID: "p"})
	if err == nil {
		t.Fatal("expected error for nil publisher")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
