package billing

import (
	"context"
	"errors"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	kafkax "github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/kafka"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/redisx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

// Worker invoices orders as their OrderCreated events arrive.
type Worker struct {
	Generator   *Generator
	Cache       *redisx.Cache
	Actor       session.Actor
	ServiceName string
}

// HandleOrderCreated is installed as the consumer handler. Redeliveries are
// absorbed by the Redis dedup key and, past its TTL, by the order's payment
// status: an order that is already invoiced counts as done.
func (w *Worker) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		log.Printf("billing: drop undecodable message %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
		return nil
	}
	if env.EventType != events.EventOrderCreated {
		return nil
	}

	dkey := redisx.DedupKey(w.ServiceName, env.EventID)
	if !w.Cache.Claim(ctx, dkey, redisx.TTLDedup) {
		return nil
	}

	p, err := events.Unwrap[events.OrderCreatedPayload](env)
	if err != nil {
		log.Printf("billing: drop event %s: %v", env.EventID, err)
		return nil
	}

	inv, err := w.Generator.FromOrder(ctx, w.Actor, p.OrderID, 0)
	switch {
	case err == nil:
		log.Printf("billing: order %d invoiced as %s total %s", p.OrderID, inv.Number, inv.TotalCents)
		return nil
	case errors.Is(err, apperr.ErrAlreadyInvoiced),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrInvalidTransition):
		log.Printf("billing: skip order %d: %v", p.OrderID, err)
		return nil
	default:
		// Let the next delivery retry.
		w.Cache.Delete(ctx, dkey)
		return err
	}
}
