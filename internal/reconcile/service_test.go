package reconcile

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/clock"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/orders"
)

const testSecret = "whsec_test_secret"

// sign builds a Stripe-Signature header for payload: v1 is the hex HMAC-SHA256
// of "<timestamp>.<payload>" under the shared secret.
func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedEvent(eventID, orderID string, total, subtotal int64) []byte {
	meta := ""
	if orderID != "" {
		meta = fmt.Sprintf(`"order_id":%q`, orderID)
	}
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"checkout.session.completed","data":{"object":{"id":"cs_1","amount_total":%d,"amount_subtotal":%d,"payment_intent":"pi_123","metadata":{%s}}}}`,
		eventID, total, subtotal, meta))
}

type fakeStore struct {
	orders      map[string]*orders.Order
	stock       map[string]*int
	markPaidErr error
	paidCalls   int
}

func (f *fakeStore) GetOrder(_ context.Context, orderID string) (orders.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return *o, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, in orders.MarkPaidInput) (bool, error) {
	if f.markPaidErr != nil {
		return false, f.markPaidErr
	}
	f.paidCalls++
	o := f.orders[in.OrderID]
	if o.Status != orders.StatusPending {
		return false, nil
	}
	o.Status = orders.StatusPaid
	o.TotalTaxCents = in.TotalTaxCents
	o.TotalCents = in.TotalCents
	o.PaymentIntentID = in.PaymentIntentID
	o.PaidAt = &in.PaidAt
	for _, it := range o.Items {
		if s, ok := f.stock[it.ProductID]; ok && s != nil {
			*s -= it.Qty
		}
	}
	return true, nil
}

func newStoreWithOrder() *fakeStore {
	stock := 5
	return &fakeStore{
		orders: map[string]*orders.Order{
			"ord-1": {
				ID:            "ord-1",
				UserID:        "u1",
				Email:         "u1@example.com",
				Status:        orders.StatusPending,
				SubtotalCents: 1998,
				Items: []orders.OrderItem{
					{ProductID: "p1", ProductName: "Mug", Qty: 2, UnitPriceCents: 999},
				},
			},
		},
		stock: map[string]*int{"p1": &stock},
	}
}

func newService(store *fakeStore) *Service {
	return &Service{
		Store:         store,
		Clock:         clock.NewFixed(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		WebhookSecret: testSecret,
		ServiceName:   "checkout-api-webhook",
	}
}

func TestHandleEvent(t *testing.T) {
	t.Parallel()

	t.Run("invalid signature mutates nothing", func(t *testing.T) {
		store := newStoreWithOrder()
		svc := newService(store)
		payload := completedEvent("evt_1", "ord-1", 2258, 1998)

		_, err := svc.HandleEvent(context.Background(), payload, sign(payload, "whsec_wrong"))
		if !errors.Is(err, ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
		if store.orders["ord-1"].Status != orders.StatusPending {
			t.Fatalf("order must stay pending")
		}
		if *store.stock["p1"] != 5 {
			t.Fatalf("stock must be untouched")
		}
	})

	t.Run("tampered payload fails verification", func(t *testing.T) {
		store := newStoreWithOrder()
		svc := newService(store)
		payload := completedEvent("evt_1", "ord-1", 2258, 1998)
		header := sign(payload, testSecret)
		tampered := completedEvent("evt_1", "ord-1", 1, 1998)

		_, err := svc.HandleEvent(context.Background(), tampered, header)
		if !errors.Is(err, ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("foreign event types are acknowledged and ignored", func(t *testing.T) {
		store := newStoreWithOrder()
		svc := newService(store)
		payload := []byte(`{"id":"evt_2","type":"payment_intent.created","data":{"object":{}}}`)

		out, err := svc.HandleEvent(context.Background(), payload, sign(payload, testSecret))
		if err != nil {
			t.Fatalf("expected ack, got %v", err)
		}
		if out != OutcomeIgnored {
			t.Fatalf("expected OutcomeIgnored, got %v", out)
		}
	})

	t.Run("missing order metadata is a benign ack", func(t *testing.T) {
		svc := newService(newStoreWithOrder())
		payload := completedEvent("evt_3", "", 2258, 1998)

		out, err := svc.HandleEvent(context.Background(), payload, sign(payload, testSecret))
		if err != nil || out != OutcomeIgnored {
			t.Fatalf("expected benign ack, got %v / %v", out, err)
		}
	})

	t.Run("unknown order is a benign ack", func(t *testing.T) {
		store := newStoreWithOrder()
		svc := newService(store)
		payload := completedEvent("evt_4", "ord-ghost", 2258, 1998)

		out, err := svc.HandleEvent(context.Background(), payload, sign(payload, testSecret))
		if err != nil || out != OutcomeIgnored {
			t.Fatalf("expected benign ack, got %v / %v", out, err)
		}
		if *store.stock["p1"] != 5 {
			t.Fatalf("stock must be untouched")
		}
	})

	t.Run("completed session pays the order and decrements stock", func(t *testing.T) {
		store := newStoreWithOrder()
		svc := newService(store)
		payload := completedEvent("evt_5", "ord-1", 2258, 1998)

		out, err := svc.HandleEvent(context.Background(), payload, sign(payload, testSecret))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out != OutcomePaid {
			t.Fatalf("expected OutcomePaid, got %v", out)
		}

		o := store.orders["ord-1"]
		if o.Status != orders.StatusPaid {
			t.Fatalf("expected PAID, got %s", o.Status)
		}
		if o.TotalCents != 2258 {
			t.Fatalf("expected total 2258, got %d", o.TotalCents)
		}
		if o.TotalTaxCents != money.Cents(260) {
			t.Fatalf("expected tax 2.60, got %s", o.TotalTaxCents)
		}
		if o.PaymentIntentID != "pi_123" {
			t.Fatalf("expected payment intent pi_123, got %q", o.PaymentIntentID)
		}
		if o.PaidAt == nil || !o.PaidAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected paid_at %v", o.PaidAt)
		}
		if *store.stock["p1"] != 3 {
			t.Fatalf("expected stock 3, got %d", *store.stock["p1"])
		}
	})

	t.Run("api version drift never fails verification", func(t *testing.T) {
		store := newStoreWithOrder()
		svc := newService(store)
		// Deliveries carry whatever version the endpoint is configured
		// for; only the signature decides authenticity.
		payload := []byte(`{"id":"evt_8","api_version":"2023-10-16","type":"checkout.session.completed","data":{"object":{"id":"cs_1","amount_total":2258,"amount_subtotal":1998,"payment_intent":"pi_123","metadata":{"order_id":"ord-1"}}}}`)

		out, err := svc.HandleEvent(context.Background(), payload, sign(payload, testSecret))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out != OutcomePaid {
			t.Fatalf("expected OutcomePaid, got %v", out)
		}
		if store.orders["ord-1"].Status != orders.StatusPaid {
			t.Fatalf("order must be paid")
		}
	})

	t.Run("duplicate delivery never double-decrements", func(t *testing.T) {
		store := newStoreWithOrder()
		svc := newService(store)
		payload := completedEvent("evt_6", "ord-1", 2258, 1998)
		header := sign(payload, testSecret)

		if _, err := svc.HandleEvent(context.Background(), payload, header); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		out, err := svc.HandleEvent(context.Background(), payload, header)
		if err != nil {
			t.Fatalf("redelivery must ack, got %v", err)
		}
		if out != OutcomeAlreadyPaid {
			t.Fatalf("expected OutcomeAlreadyPaid, got %v", out)
		}
		if *store.stock["p1"] != 3 {
			t.Fatalf("stock decremented twice: %d", *store.stock["p1"])
		}
	})

	t.Run("store failure surfaces so the processor redelivers", func(t *testing.T) {
		store := newStoreWithOrder()
		store.markPaidErr = errors.New("commit failed")
		svc := newService(store)
		payload := completedEvent("evt_7", "ord-1", 2258, 1998)

		_, err := svc.HandleEvent(context.Background(), payload, sign(payload, testSecret))
		if err == nil || errors.Is(err, ErrBadSignature) {
			t.Fatalf("expected processing error, got %v", err)
		}
		if store.orders["ord-1"].Status != orders.StatusPending {
			t.Fatalf("failed batch must leave the order pending")
		}
	})
}
