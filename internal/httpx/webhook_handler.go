package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/reconcile"
	"github.com/go-chi/chi/v5"
)

// Stripe caps event payloads at 64 KiB; anything larger is not ours.
const maxEventBytes = 65536

type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte, sigHeader string) (reconcile.Outcome, error)
}

type WebhookHandler struct {
	Reconciler EventHandler
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhook", h.handleEvent)
}

func (h *WebhookHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusInternalServerError)
		return
	}

	_, err = h.Reconciler.HandleEvent(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, reconcile.ErrBadSignature) {
			http.Error(w, "signature verification failed", http.StatusBadRequest)
			return
		}
		// 5xx tells the processor to redeliver later.
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Every benign no-op acks with 200 too, or the processor would retry
	// the event indefinitely.
	w.WriteHeader(http.StatusOK)
}
