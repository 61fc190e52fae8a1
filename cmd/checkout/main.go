package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/clock"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/config"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/payments"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-storefront-checkout.git/migrations"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v79"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stripe.Key = cfg.StripeAPIKey

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
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	prod.Start(ctx)

	// Repo, service & handler
	repo := &orders.Repo{DB: db}
	svc := &checkout.Service{
		Store:         repo,
		Payments:      payments.StripeClient{},
		Redis:         rdb,
		Producer:      prod,
		Clock:         clock.NewSystem(),
		Currency:      cfg.Currency,
		PublicBaseURL: cfg.PublicBaseURL,
		ServiceName:   cfg.ServiceName,
	}
	router := httpx.NewRouter()
	ch := &httpx.CheckoutHandler{
		Checkout: svc,
		Statuses: repo,
		Redis:    rdb,
	}
	ch.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
