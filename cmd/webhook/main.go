package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/clock"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/config"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/reconcile"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-storefront-checkout.git/migrations"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.StripeWebhookSecret == "" {
		log.Fatal("STRIPE_WEBHOOK_SECRET is required")
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	prod.Start(ctx)

	// Service & handler
	svc := &reconcile.Service{
		Store:         &orders.Repo{DB: db},
		Redis:         rdb,
		Producer:      prod,
		Clock:         clock.NewSystem(),
		WebhookSecret: cfg.StripeWebhookSecret,
		ServiceName:   cfg.ServiceName + "-webhook",
	}
	router := httpx.NewRouter()
	wh := &httpx.WebhookHandler{Reconciler: svc}
	wh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("webhook listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	prod.WaitClosed()
}
