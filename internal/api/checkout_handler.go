package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-backend/internal/checkout"
	"github.com/safar/go-shop-backend/internal/payment"
)

const maxWebhookBodySize = 1 << 20 // 1MB

// CheckoutService is what the HTTP layer needs from the checkout
// orchestrator.
type CheckoutService interface {
	CreateSession(ctx context.Context, userID int64, req checkout.CreateSessionRequest) (*checkout.SessionResult, error)
	OrderBySession(ctx context.Context, sessionID string) (*checkout.OrderSnapshot, error)
}

// WebhookReconciler is what the HTTP layer needs from the settlement
// reconciler.
type WebhookReconciler interface {
	HandleWebhook(ctx context.Context, sigHeader string, payload []byte) error
}

type CheckoutHandler struct {
	service    CheckoutService
	reconciler WebhookReconciler
	logger     zerolog.Logger
}

func NewCheckoutHandler(service CheckoutService, reconciler WebhookReconciler, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service:    service,
		reconciler: reconciler,
		logger:     logger,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())

	var req checkout.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ShippingAddress == "" || req.SuccessURL == "" || req.CancelURL == "" {
		respondError(w, http.StatusBadRequest, "invalid_request",
			"shipping_address, success_url and cancel_url are required")
		return
	}

	result, err := h.service.CreateSession(r.Context(), userID, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// POST /api/v1/webhooks/stripe
//
// The body is consumed as raw bytes; signature verification happens on
// exactly what was received. Only an authenticity failure is answered
// with a non-2xx, since that is the boundary that controls provider
// retries.
func (h *CheckoutHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unable to read request body")
		return
	}

	err = h.reconciler.HandleWebhook(r.Context(), r.Header.Get("Stripe-Signature"), payload)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
			return
		}
		h.logger.Error().Err(err).Msg("webhook processing failed")
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// GET /api/v1/success?session_id=...
//
// A missing session id is a generic success acknowledgment; there is no
// order to show. A session id without a matching order is not-found.
func (h *CheckoutHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "payment processed",
			"data":    nil,
		})
		return
	}

	snapshot, err := h.service.OrderBySession(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "payment completed",
		"data":    snapshot,
	})
}

// GET /api/v1/cancel
func (h *CheckoutHandler) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"message": "payment canceled by user",
		"data": map[string]string{
			"reason":      "USER_CANCELLED",
			"description": "the checkout was canceled; the cart is still available",
		},
	})
}
