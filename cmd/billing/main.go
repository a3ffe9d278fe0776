package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/billing"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/config"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	kafkax "github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/kafka"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/redisx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatalf("config: KAFKA_BROKERS is required for the billing consumer")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, closeDB, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer closeDB()

	// Redis
	var cache *redisx.Cache
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		cache = redisx.NewCache(rdb)
	}

	// Invoice events go back out on the bus.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start()
	service := cfg.ServiceName + "-billing"
	emitter := &events.Emitter{Publisher: prod, Producer: service}

	worker := &billing.Worker{
		Generator:   billing.NewGenerator(db, activity.NewLog(db.DB), emitter, cfg.TaxRate),
		Cache:       cache,
		Actor:       session.System(cfg.BillingClerkID),
		ServiceName: service,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.BillingGroup, events.TopicOrderCreated, cfg.BillingWorkers)
	log.Printf("billing consumer started: group=%s topic=%s workers=%d", cfg.BillingGroup, events.TopicOrderCreated, cfg.BillingWorkers)
	if err := cons.Start(ctx, worker.HandleOrderCreated); err != nil {
		log.Printf("consumer exit: %v", err)
	}

	log.Println("shutting down consumer...")
	prod.Close()
	prod.WaitClosed()
}
