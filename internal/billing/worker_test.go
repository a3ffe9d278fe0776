package billing_test

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/billing"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbtest"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	kafkax "github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/kafka"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

func TestWorkerInvoicesOrderOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)

	require.Len(t, f.events.Events, 1)
	rec := f.events.Events[0]
	msg, err := kafkax.EncodeMessage(rec.Topic, rec.Key, rec.Envelope)
	require.NoError(t, err)

	w := &billing.Worker{Generator: f.gen, Actor: session.System(0), ServiceName: "billing"}
	require.NoError(t, w.HandleOrderCreated(ctx, msg))
	require.NoError(t, w.HandleOrderCreated(ctx, msg))

	assert.Equal(t, 1, dbtest.Count(t, f.db.DB, "invoices"))
	list, err := f.gen.ListByPatient(ctx, clerk, o.PatientID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 112000, list[0].TotalCents)
}

func TestWorkerIgnoresOtherMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := &billing.Worker{Generator: f.gen, Actor: session.System(0), ServiceName: "billing"}

	require.NoError(t, w.HandleOrderCreated(ctx, kafkago.Message{Value: []byte("not json")}))

	env, err := events.NewEnvelope(events.EventInvoicePaid, "test", "1", events.InvoicePayload{InvoiceID: 1})
	require.NoError(t, err)
	msg, err := kafkax.EncodeMessage(events.TopicOrderCreated, "1", env)
	require.NoError(t, err)
	require.NoError(t, w.HandleOrderCreated(ctx, msg))

	env, err = events.NewEnvelope(events.EventOrderCreated, "test", "77", events.OrderCreatedPayload{OrderID: 77})
	require.NoError(t, err)
	msg, err = kafkax.EncodeMessage(events.TopicOrderCreated, "77", env)
	require.NoError(t, err)
	require.NoError(t, w.HandleOrderCreated(ctx, msg))

	assert.Equal(t, 0, dbtest.Count(t, f.db.DB, "invoices"))
}
