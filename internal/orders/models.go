package orders

import (
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
)

// Product carries the slice of the inventory row this system reads; the
// row's bookkeeping columns stay with the inventory subsystem.
type Product struct {
	ID         string
	Name       string
	PriceCents money.Cents
	Stock      *int // nil = stock not tracked
	ImageURL   string
}

// Tracks reports whether the product carries a finite stock count.
func (p Product) Tracks() bool { return p.Stock != nil }

type Order struct {
	ID              string
	UserID          string
	Email           string
	UserName        string
	Items           []OrderItem
	SubtotalCents   money.Cents
	GSTCents        money.Cents
	PSTCents        money.Cents
	TotalTaxCents   money.Cents
	TotalCents      money.Cents
	Status          Status
	SessionID       string
	PaymentIntentID string
	CreatedAt       time.Time
	PaidAt          *time.Time
}

// OrderItem is a snapshot of the product at order time; later price or name
// changes on the product do not touch it.
type OrderItem struct {
	ProductID      string
	ProductName    string
	Qty            int
	UnitPriceCents money.Cents
}
