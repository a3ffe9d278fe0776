// Package events defines the domain events published after a core transaction commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventInvoiceCreated       = "InvoiceCreated"
	EventInvoicePaid          = "InvoicePaid"
	EventPrescriptionReviewed = "PrescriptionReviewed"
)

const (
	TopicOrderCreated         = "pharmacy.order.created"
	TopicOrderStatusChanged   = "pharmacy.order.status"
	TopicInvoiceCreated       = "pharmacy.invoice.created"
	TopicInvoicePaid          = "pharmacy.invoice.paid"
	TopicPrescriptionReviewed = "pharmacy.prescription.reviewed"
)

// Envelope wraps every event payload.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	MedicineID     int64 `json:"medicine_id"`
	Quantity       int64 `json:"quantity"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

type OrderCreatedPayload struct {
	OrderID    int64       `json:"order_id"`
	PatientID  int64       `json:"patient_id"`
	Items      []ItemPrice `json:"items"`
	TotalCents int64       `json:"total_cents"`
}

type OrderStatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type InvoicePayload struct {
	InvoiceID       int64  `json:"invoice_id"`
	InvoiceNumber   string `json:"invoice_number"`
	PatientID       int64  `json:"patient_id"`
	OrderID         *int64 `json:"order_id,omitempty"`
	TotalCents      int64  `json:"total_cents"`
	AmountPaidCents int64  `json:"amount_paid_cents"`
	Status          string `json:"status"`
}

type PrescriptionReviewedPayload struct {
	PrescriptionID int64  `json:"prescription_id"`
	PatientID      int64  `json:"patient_id"`
	PharmacistID   int64  `json:"pharmacist_id"`
	Status         string `json:"status"`
}

// PartitionKey keeps all events of one entity in order.
func PartitionKey(id int64) string { return fmt.Sprintf("%d", id) }

// NewEnvelope builds a version 1 envelope around payload.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Publisher delivers envelopes. Implementations must not block the caller
// indefinitely; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, env Envelope)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, Envelope) {}

// Emitter stamps the producer name and publishes through a Publisher.
type Emitter struct {
	Publisher Publisher
	Producer  string
}

// Emit publishes payload on topic keyed by entityID. A nil Emitter does nothing.
func (e *Emitter) Emit(ctx context.Context, topic, eventType string, entityID int64, payload any) {
	if e == nil || e.Publisher == nil {
		return
	}
	key := PartitionKey(entityID)
	env, err := NewEnvelope(eventType, e.Producer, key, payload)
	if err != nil {
		log.Printf("events: %v", err)
		return
	}
	e.Publisher.Publish(ctx, topic, key, env)
}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

// Recorded is one captured publication.
type Recorded struct {
	Topic    string
	Key      string
	Envelope Envelope
}

func (r *Recorder) Publish(_ context.Context, topic, key string, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Topic: topic, Key: key, Envelope: env})
}

// Topics returns the topics published so far, in order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Topic)
	}
	return out
}

// Unwrap decodes the envelope payload.
func Unwrap[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
