package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/clock"
	kafkax "github.com/ariefcatur/go-storefront-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ErrBadSignature marks an event whose signature did not verify; nothing in
// the payload was trusted or touched.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Store is what the reconciler needs from the store of record.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
	MarkPaid(ctx context.Context, in orders.MarkPaidInput) (bool, error)
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store         Store
	Redis         *redis.Client  // optional dedup fast path + status cache
	Producer      EventPublisher // optional lifecycle events
	Clock         clock.Clock
	WebhookSecret string
	ServiceName   string
}

// Outcome says what a successfully acknowledged delivery actually did.
type Outcome int

const (
	// OutcomeIgnored: foreign event type, missing metadata, or unknown
	// order. Acknowledged so the processor stops redelivering.
	OutcomeIgnored Outcome = iota
	// OutcomeAlreadyPaid: duplicate delivery; the paid transaction matched
	// zero pending rows, no stock was decremented again.
	OutcomeAlreadyPaid
	// OutcomePaid: the order transitioned to PAID in this delivery.
	OutcomePaid
)

// HandleEvent authenticates one processor delivery and, for a completed
// session matching a pending order, applies the paid transition and the stock
// decrements as a single transaction. Any returned error tells the processor
// to redeliver; its retry policy is the recovery mechanism.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	// Verification must not couple to the library's pinned API version:
	// the processor upgrades event schemas per endpoint, and a version
	// drift is not a forged signature.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		return OutcomeIgnored, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return OutcomeIgnored, fmt.Errorf("decode session: %w", err)
	}

	orderID := cs.Metadata["order_id"]
	if orderID == "" {
		// Not a session this system created.
		return OutcomeIgnored, nil
	}

	// Dedup fast path. Key is written only after a commit, so a delivery
	// that failed midway is still retryable.
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, event.ID)
	if s.Redis != nil {
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return OutcomeAlreadyPaid, nil
		}
	}

	o, err := s.Store.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		// Replayed or foreign event; ack and move on.
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("load order %s: %w", orderID, err)
	}
	// Cheap pre-check; the status predicate inside MarkPaid is the
	// authoritative guard under concurrent deliveries.
	if !orders.CanTransition(o.Status, orders.StatusPaid) {
		return OutcomeAlreadyPaid, nil
	}

	total := money.Cents(cs.AmountTotal)
	subtotal := money.Cents(cs.AmountSubtotal)
	// Combined tax is the only tax this system derives; the GST/PST split
	// stays zero (known limitation of the upstream data).
	tax := total - subtotal

	var intentID string
	if cs.PaymentIntent != nil {
		intentID = cs.PaymentIntent.ID
	}

	applied, err := s.Store.MarkPaid(ctx, orders.MarkPaidInput{
		OrderID:         o.ID,
		TotalTaxCents:   tax,
		TotalCents:      total,
		PaymentIntentID: intentID,
		PaidAt:          s.Clock.Now(),
	})
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("mark paid %s: %w", o.ID, err)
	}
	if !applied {
		return OutcomeAlreadyPaid, nil
	}

	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
		_ = s.Redis.Set(ctx, key, `{"status":"PAID"}`, redisx.TTLStatusCache).Err()
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	s.publishPaid(o, subtotal, tax, total, intentID)

	return OutcomePaid, nil
}

func (s *Service) publishPaid(o orders.Order, subtotal, tax, total money.Cents, intentID string) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPaidPayload{
			OrderID:         o.ID,
			UserID:          o.UserID,
			SubtotalCents:   subtotal,
			TotalTaxCents:   tax,
			TotalCents:      total,
			PaymentIntentID: intentID,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
