package kafka

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 10 * time.Second
)

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches messages and fans them out to the workers until ctx ends.
// A partition always lands on the same worker, so its messages are handled in
// offset order, and a failing message is retried until it succeeds before
// anything after it is committed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !handleUntilDone(ctx, h, m, time.Sleep) {
					// ctx ended; the uncommitted offset is redelivered
					// to whoever owns the partition next.
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					log.Printf("kafka: commit %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
				}
			}
		}(queues[i])
	}
	defer wg.Wait()
	defer func() {
		for _, q := range queues {
			close(q)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[workerFor(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func workerFor(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

// handleUntilDone runs h until it succeeds, backing off between failures. It
// reports false when ctx ends first.
func handleUntilDone(ctx context.Context, h Handler, m kafka.Message, sleep func(time.Duration)) bool {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return false
		}
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log.Printf("kafka: handle %s/%d@%d (retry in %s): %v", m.Topic, m.Partition, m.Offset, backoff, err)
		sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}
