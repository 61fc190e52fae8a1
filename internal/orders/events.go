package orders

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type ItemSnapshot struct {
	ProductID      string      `json:"product_id"`
	ProductName    string      `json:"product_name"`
	Qty            int         `json:"qty"`
	UnitPriceCents money.Cents `json:"unit_price_cents"`
}

type OrderCreatedPayload struct {
	OrderID       string         `json:"order_id"`
	UserID        string         `json:"user_id"`
	Email         string         `json:"email"`
	Items         []ItemSnapshot `json:"items"`
	SubtotalCents money.Cents    `json:"subtotal_cents"`
	SessionID     string         `json:"session_id,omitempty"`
}

type OrderPaidPayload struct {
	OrderID         string      `json:"order_id"`
	UserID          string      `json:"user_id"`
	SubtotalCents   money.Cents `json:"subtotal_cents"`
	TotalTaxCents   money.Cents `json:"total_tax_cents"`
	TotalCents      money.Cents `json:"total_cents"`
	PaymentIntentID string      `json:"payment_intent_id"`
}
