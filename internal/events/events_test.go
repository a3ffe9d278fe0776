package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterWrapsPayload(t *testing.T) {
	rec := &Recorder{}
	em := &Emitter{Publisher: rec, Producer: "pharmacy-api"}

	em.Emit(context.Background(), TopicOrderCreated, EventOrderCreated, 12, OrderCreatedPayload{OrderID: 12, PatientID: 3, TotalCents: 100000})

	require.Len(t, rec.Events, 1)
	got := rec.Events[0]
	assert.Equal(t, TopicOrderCreated, got.Topic)
	assert.Equal(t, "12", got.Key)
	assert.Equal(t, EventOrderCreated, got.Envelope.EventType)
	assert.Equal(t, 1, got.Envelope.EventVersion)
	assert.Equal(t, "pharmacy-api", got.Envelope.Producer)
	assert.NotEmpty(t, got.Envelope.EventID)

	p, err := Unwrap[OrderCreatedPayload](got.Envelope)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.PatientID)
	assert.Equal(t, int64(100000), p.TotalCents)
}

func TestNilEmitterIsSilent(t *testing.T) {
	var em *Emitter
	assert.NotPanics(t, func() {
		em.Emit(context.Background(), TopicInvoicePaid, EventInvoicePaid, 1, InvoicePayload{})
	})
}
