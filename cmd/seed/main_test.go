package main

import (
	"testing"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
)

func TestParseProducts(t *testing.T) {
	t.Run("valid catalog", func(t *testing.T) {
		b := []byte(`[
			{"id":"p1","name":"Mug","price":9.99,"stock":5},
			{"id":"p2","name":"Download","price":4.50}
		]`)
		ps, err := parseProducts(b)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(ps) != 2 {
			t.Fatalf("expected 2 products, got %d", len(ps))
		}
		if money.FromFloat(ps[0].Price) != 999 {
			t.Fatalf("expected 999 cents for p1, got %d", money.FromFloat(ps[0].Price))
		}
		if ps[1].Stock != nil {
			t.Fatalf("absent stock must stay untracked")
		}
	})

	t.Run("missing id is rejected", func(t *testing.T) {
		if _, err := parseProducts([]byte(`[{"name":"Mug","price":9.99}]`)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		if _, err := parseProducts([]byte(`[{"id":"p1","name":"Mug","price":-1}]`)); err == nil {
			t.Fatal("expected error")
		}
	})
}
