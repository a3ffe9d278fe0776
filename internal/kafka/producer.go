package kafka

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
)

// Producer publishes envelopes asynchronously. Each message names its own topic.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start drains the inbox until Close is called.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				log.Printf("kafka: write %s: %v", m.Topic, err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Printf("kafka: close writer: %v", err)
		}
	}()
}

// Publish implements events.Publisher. A full inbox drops the event rather than blocking the caller.
func (p *Producer) Publish(_ context.Context, topic, key string, env events.Envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		log.Printf("kafka: marshal %s: %v", env.EventType, err)
		return
	}
	m := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("kafka: producer closed, dropping %s", env.EventType)
		return
	}
	select {
	case p.inbox <- m:
	default:
		log.Printf("kafka: inbox full, dropping %s for %s", env.EventType, key)
	}
}

// Close stops accepting events; queued ones are flushed.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed blocks until the queued events are flushed.
func (p *Producer) WaitClosed() { <-p.closeCh }
