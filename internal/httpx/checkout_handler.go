package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// CheckoutStarter is the slice of the checkout service the handler needs.
type CheckoutStarter interface {
	Start(ctx context.Context, in checkout.StartInput) (checkout.StartResult, error)
}

type StatusReader interface {
	GetOrderStatus(ctx context.Context, orderID string) (orders.Status, error)
}

type CheckoutHandler struct {
	Checkout CheckoutStarter
	Statuses StatusReader
	Redis    *redis.Client
}

type CheckoutReq struct {
	Cart []checkout.CartEntry `json:"cart"`
	User checkout.Buyer       `json:"user"`
}

type CheckoutResp struct {
	URL     string `json:"url"`
	OrderID string `json:"order_id"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.startCheckout)
	r.Get("/orders/{id}", h.getOrderStatus)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *CheckoutHandler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Start(ctx, checkout.StartInput{
		Cart:    req.Cart,
		Buyer:   req.User,
		Origin:  r.Header.Get("Origin"),
		TraceID: r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		var stockErr *orders.InsufficientStockError
		switch {
		case errors.Is(err, orders.ErrEmptyCart),
			errors.Is(err, orders.ErrMissingBuyer),
			errors.As(err, &stockErr):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResp{URL: res.URL, OrderID: res.OrderID})
}

// getOrderStatus is the poll target for clients returning from the processor
// redirect: cache first, DB fallback, re-prime cache.
func (h *CheckoutHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	status, err := h.Statuses.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	body := map[string]any{"status": status}
	b, _ := json.Marshal(body)
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
