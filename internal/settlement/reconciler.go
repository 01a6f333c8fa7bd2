// Package settlement reconciles asynchronous payment-processor webhook
// events into order and inventory state.
//
// Deliveries carry no ordering guarantee and may repeat. Every mutation
// is keyed off the order's current status rather than an assumed event
// sequence, so applying the same event twice produces the side effects
// exactly once.
package settlement

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/payment"
	"github.com/safar/go-shop-backend/internal/store"
)

type Reconciler struct {
	db       *sql.DB
	payments payment.Provider
	logger   zerolog.Logger
}

func NewReconciler(db *sql.DB, payments payment.Provider, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		db:       db,
		payments: payments,
		logger:   logger.With().Str("component", "settlement").Logger(),
	}
}

// HandleWebhook verifies a delivery against its raw bytes and applies
// the corresponding projection. It returns payment.ErrInvalidSignature
// before touching any state when authentication fails; that is the only
// error the HTTP boundary turns into a non-2xx response, because a
// non-2xx is what makes the processor retry.
func (r *Reconciler) HandleWebhook(ctx context.Context, sigHeader string, payload []byte) error {
	event, err := r.payments.VerifyWebhook(payload, sigHeader)
	if err != nil {
		return err
	}

	switch event.Type {
	case payment.EventCheckoutCompleted:
		return r.handleCheckoutCompleted(ctx, event)
	case payment.EventPaymentSucceeded:
		r.logger.Info().
			Str("payment_id", event.PaymentID).
			Msg("payment succeeded")
		return nil
	case payment.EventPaymentFailed:
		return r.handlePaymentFailed(ctx, event)
	default:
		// Unknown and future event types are acknowledged untouched;
		// failing here would only trigger a provider retry storm.
		r.logger.Warn().
			Str("event_type", event.RawType).
			Msg("unhandled webhook event type")
		return nil
	}
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event *payment.Event) error {
	if event.OrderID == "" {
		r.logger.Error().
			Str("session_id", event.SessionID).
			Msg("checkout completed event without order id in metadata")
		return nil
	}

	result, err := store.SettleOrder(ctx, r.db, event.OrderID, event.PaymentID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			r.logger.Error().
				Str("order_id", event.OrderID).
				Str("session_id", event.SessionID).
				Msg("checkout completed for unknown order")
			return nil
		}
		return err
	}

	if result.AlreadySettled {
		r.logger.Info().
			Str("order_id", event.OrderID).
			Msg("order already settled, skipping")
		return nil
	}

	r.logger.Info().
		Str("order_id", event.OrderID).
		Str("payment_id", event.PaymentID).
		Int64("user_id", result.UserID).
		Msg("order settled")
	return nil
}

func (r *Reconciler) handlePaymentFailed(ctx context.Context, event *payment.Event) error {
	canceled, err := store.CancelOrderByPaymentID(ctx, r.db, event.PaymentID)
	if err != nil {
		return err
	}

	if canceled {
		r.logger.Info().
			Str("payment_id", event.PaymentID).
			Msg("order canceled after failed payment")
	} else {
		r.logger.Info().
			Str("payment_id", event.PaymentID).
			Msg("payment failed for no pending order, nothing to cancel")
	}
	return nil
}
