package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/clock"
	kafkax "github.com/ariefcatur/go-storefront-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/payments"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Store is what the initiator needs from the store of record.
type Store interface {
	GetProducts(ctx context.Context, ids []string) (map[string]orders.Product, error)
	CreateOrder(ctx context.Context, o orders.Order) error
	SetSessionID(ctx context.Context, orderID, sessionID string) error
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store         Store
	Payments      payments.SessionCreator
	Redis         *redis.Client  // optional status cache
	Producer      EventPublisher // optional lifecycle events
	Clock         clock.Clock
	Currency      string
	PublicBaseURL string
	ServiceName   string
}

type CartEntry struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type Buyer struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type StartInput struct {
	Cart    []CartEntry
	Buyer   Buyer
	Origin  string // originating domain for redirect targets; empty falls back to PublicBaseURL
	TraceID string
}

type StartResult struct {
	OrderID string
	URL     string
}

// Start validates the cart against live product rows, persists a PENDING
// order, then asks the processor for a hosted session. The order write
// commits before any processor call: the order's existence is the source of
// truth, not the session's.
func (s *Service) Start(ctx context.Context, in StartInput) (StartResult, error) {
	if in.Buyer.UID == "" || in.Buyer.Email == "" {
		return StartResult{}, orders.ErrMissingBuyer
	}

	ids := make([]string, 0, len(in.Cart))
	for _, e := range in.Cart {
		ids = append(ids, e.ID)
	}
	products, err := s.Store.GetProducts(ctx, ids)
	if err != nil {
		return StartResult{}, fmt.Errorf("load products: %w", err)
	}

	var items []orders.OrderItem
	var subtotal money.Cents
	for _, e := range in.Cart {
		p, ok := products[e.ID]
		if !ok {
			// Unknown id: drop silently, the cart is only trusted as far
			// as its ids resolve.
			continue
		}
		qty := e.Quantity
		if qty < 1 {
			qty = 1
		}
		if p.Tracks() && *p.Stock < qty {
			return StartResult{}, &orders.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: qty,
				Available: *p.Stock,
			}
		}
		// Harga selalu dari row produk, bukan dari client.
		items = append(items, orders.OrderItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Qty:            qty,
			UnitPriceCents: p.PriceCents,
		})
		subtotal += p.PriceCents.Mul(qty)
	}
	if len(items) == 0 {
		return StartResult{}, orders.ErrEmptyCart
	}

	order := orders.Order{
		ID:            uuid.NewString(),
		UserID:        in.Buyer.UID,
		Email:         in.Buyer.Email,
		UserName:      in.Buyer.Name,
		Items:         items,
		SubtotalCents: subtotal,
		Status:        orders.StatusPending,
		CreatedAt:     s.Clock.Now(),
	}
	if err := s.Store.CreateOrder(ctx, order); err != nil {
		return StartResult{}, fmt.Errorf("create order: %w", err)
	}
	log.Printf("order %s pending: %d item(s), subtotal %s", order.ID, len(items), order.SubtotalCents)

	base := in.Origin
	if base == "" {
		base = s.PublicBaseURL
	}
	lines := make([]payments.SessionLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, payments.SessionLine{
			Name:      it.ProductName,
			UnitPrice: it.UnitPriceCents,
			Qty:       it.Qty,
		})
	}
	sess, err := s.Payments.CreateSession(ctx, payments.SessionInput{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Email:      order.Email,
		Currency:   s.Currency,
		SuccessURL: base + "/checkout/success?order_id=" + order.ID,
		CancelURL:  base + "/checkout/cancel?order_id=" + order.ID,
		Lines:      lines,
	})
	if err != nil {
		// The order stays persisted without a session; it simply never gets
		// paid, same as any other orphan.
		return StartResult{}, err
	}

	if err := s.Store.SetSessionID(ctx, order.ID, sess.ID); err != nil {
		log.Printf("order %s: link session %s: %v", order.ID, sess.ID, err)
	}

	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, order.ID)
		_ = s.Redis.Set(ctx, key, `{"status":"PENDING"}`, redisx.TTLStatusCache).Err()
	}
	s.publishCreated(order, sess.ID, in.TraceID)

	return StartResult{OrderID: order.ID, URL: sess.URL}, nil
}

func (s *Service) publishCreated(o orders.Order, sessionID, trace string) {
	if s.Producer == nil {
		return
	}
	snaps := make([]orders.ItemSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		snaps = append(snaps, orders.ItemSnapshot{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Qty:            it.Qty,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:       o.ID,
			UserID:        o.UserID,
			Email:         o.Email,
			Items:         snaps,
			SubtotalCents: o.SubtotalCents,
			SessionID:     sessionID,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
