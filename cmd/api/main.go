package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/auth"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/billing"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/cart"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/config"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/httpx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/inventory"
	kafkax "github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/kafka"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/orders"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/prescriptions"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/redisx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
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

	// Kafka producer
	var publisher events.Publisher = events.Nop{}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start()
		publisher = prod
	}
	emitter := &events.Emitter{Publisher: publisher, Producer: cfg.ServiceName}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, auth.DefaultTTL)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	actions := activity.NewLog(db.DB)
	ledger := inventory.NewLedger(db, actions)
	engine := orders.NewEngine(db, ledger, actions, emitter, orders.Config{
		RequirePrescriptionApproval: cfg.RequirePrescriptionApproval,
	})
	generator := billing.NewGenerator(db, actions, emitter, cfg.TaxRate)

	if cfg.SeedCatalog != "" {
		if err := seedCatalog(ctx, ledger, cfg.SeedCatalog); err != nil {
			log.Fatalf("seed catalog: %v", err)
		}
	}

	router := httpx.NewRouter(cfg.CORSOrigins)
	handlers := &httpx.Handlers{
		Auth:          &httpx.Authenticator{Issuer: issuer},
		Cart:          &httpx.CartHandler{Store: cart.NewStore(db, actions)},
		Orders:        &httpx.OrdersHandler{Engine: engine, Cache: cache},
		Invoices:      &httpx.InvoicesHandler{Generator: generator, Cache: cache},
		Prescriptions: &httpx.PrescriptionsHandler{Workflow: prescriptions.NewWorkflow(db, actions, emitter)},
		Medicines:     &httpx.MedicinesHandler{Ledger: ledger},
		Activity:      &httpx.ActivityHandler{Log: actions},
	}
	handlers.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	if prod != nil {
		prod.Close()      // close inbox, flush and close writer
		prod.WaitClosed() // drain
	}
}

func seedCatalog(ctx context.Context, ledger *inventory.Ledger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := ledger.ImportCSV(ctx, session.System(0), f)
	if err != nil {
		return err
	}
	log.Printf("catalog %s: imported=%d skipped=%d", path, res.Imported, res.Skipped)
	return nil
}
