package payments

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

type SessionLine struct {
	Name      string
	UnitPrice money.Cents
	Qty       int
}

type SessionInput struct {
	OrderID    string
	UserID     string
	Email      string
	Currency   string
	SuccessURL string
	CancelURL  string
	Lines      []SessionLine
}

type Session struct {
	ID  string
	URL string
}

// SessionCreator is the slice of the processor the checkout service needs;
// tests swap in a fake.
type SessionCreator interface {
	CreateSession(ctx context.Context, in SessionInput) (Session, error)
}

// StripeClient creates hosted Checkout Sessions. The API key is process-wide
// (stripe.Key), set once at startup.
type StripeClient struct{}

func (StripeClient) CreateSession(ctx context.Context, in SessionInput) (Session, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.Lines))
	for _, l := range in.Lines {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(l.Qty)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(in.Currency),
				UnitAmount: stripe.Int64(int64(l.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(in.Email),
		SuccessURL:    stripe.String(in.SuccessURL),
		CancelURL:     stripe.String(in.CancelURL),
		LineItems:     items,
	}
	params.Context = ctx
	// The metadata travels with the completion event; it is the only link
	// the reconciler has back to the order.
	params.AddMetadata("order_id", in.OrderID)
	params.AddMetadata("user_id", in.UserID)

	s, err := session.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}
