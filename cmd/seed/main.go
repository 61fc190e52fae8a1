package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/config"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout.git/migrations"
	"github.com/joho/godotenv"
)

// seedProduct is the catalog entry as authored: price in decimal currency
// units. The conversion to cents happens once, at the upsert.
type seedProduct struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    *int    `json:"stock,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

func parseProducts(b []byte) ([]seedProduct, error) {
	var out []seedProduct
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	for _, p := range out {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("product needs id and name: %+v", p)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("negative price for %s", p.ID)
		}
	}
	return out, nil
}

func main() {
	_ = godotenv.Load()

	file := flag.String("file", "products.json", "JSON file of products to upsert")
	flag.Parse()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	products, err := parseProducts(b)
	if err != nil {
		log.Fatalf("parse %s: %v", *file, err)
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	for _, p := range products {
		if _, err := db.Exec(ctx, `
			INSERT INTO products(id, name, price_cents, stock, image_url)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE
			SET name=$2, price_cents=$3, stock=$4, image_url=$5, updated_at=NOW()
		`, p.ID, p.Name, money.FromFloat(p.Price), p.Stock, p.ImageURL); err != nil {
			log.Fatalf("upsert %s: %v", p.ID, err)
		}
	}
	log.Printf("seeded %d products", len(products))
}
