// Package checkout turns a mutable cart into an immutable pending order
// and opens a hosted payment session for it.
package checkout

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/safar/go-shop-backend/internal/payment"
	"github.com/safar/go-shop-backend/internal/store"
	"github.com/shopspring/decimal"
)

// InsufficientStockError names the first product whose current stock no
// longer covers the requested quantity. It unwraps to
// database.ErrInsufficientStock.
type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

func (e *InsufficientStockError) Unwrap() error {
	return database.ErrInsufficientStock
}

type CreateSessionRequest struct {
	ShippingAddress string `json:"shipping_address"`
	SuccessURL      string `json:"success_url"`
	CancelURL       string `json:"cancel_url"`
}

type SessionResult struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"url"`
	OrderID     string `json:"order_id"`
}

type Service struct {
	db       *sql.DB
	payments payment.Provider
	logger   zerolog.Logger
}

func NewService(db *sql.DB, payments payment.Provider, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		payments: payments,
		logger:   logger.With().Str("component", "checkout").Logger(),
	}
}

// CreateSession validates the user's cart, snapshots it into a PENDING
// order, and opens a payment session correlated to the order through
// processor-side metadata.
//
// The sequencing matters: the order exists before the session is
// requested, and the session id is recorded as soon as the processor
// returns it. If the processor call fails the order stays PENDING with
// no session reference; orders are append-only, so no compensating
// delete happens.
func (s *Service) CreateSession(ctx context.Context, userID int64, req CreateSessionRequest) (*SessionResult, error) {
	user, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	cart, err := store.GetOrCreateCart(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	if len(cart.Items) == 0 {
		return nil, database.ErrEmptyCart
	}

	// Stock may have moved since items were added. This check is
	// provisional: nothing is reserved for abandoned checkouts, the
	// decrement happens at settlement.
	for _, item := range cart.Items {
		if item.Product.StockQuantity < item.Quantity {
			return nil, &InsufficientStockError{ProductName: item.Product.Name}
		}
	}

	orderItems := make([]store.OrderItemRequest, 0, len(cart.Items))
	lineItems := make([]payment.LineItem, 0, len(cart.Items))
	minorUnits := decimal.NewFromInt(100)
	for _, item := range cart.Items {
		// Price is taken fresh here; the order keeps this snapshot no
		// matter what happens to the product later.
		orderItems = append(orderItems, store.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Product.Price,
		})
		lineItems = append(lineItems, payment.LineItem{
			Name:        item.Product.Name,
			Description: item.Product.Description,
			UnitAmount:  item.Product.Price.Mul(minorUnits).Round(0).IntPart(),
			Quantity:    int64(item.Quantity),
		})
	}

	order, err := store.CreateOrder(ctx, s.db, store.CreateOrderRequest{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		Items:           orderItems,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.payments.CreateSession(ctx, payment.CreateSessionParams{
		OrderID:       order.ID,
		UserID:        userID,
		CustomerEmail: user.Email,
		SuccessURL:    req.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     req.CancelURL,
		LineItems:     lineItems,
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("order_id", order.ID).
			Int64("user_id", userID).
			Msg("payment session creation failed, order left pending")
		return nil, fmt.Errorf("open payment session for order %s: %w", order.ID, err)
	}

	if err := store.SetSessionID(ctx, s.db, order.ID, session.ID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("session_id", session.ID).
		Int64("user_id", userID).
		Str("total", order.TotalAmount.String()).
		Msg("checkout session created")

	return &SessionResult{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		OrderID:     order.ID,
	}, nil
}

// OrderSnapshot is the read-only view served to the payment landing
// pages, looked up by the processor's session id.
type OrderSnapshot struct {
	OrderID         string             `json:"order_id"`
	OrderNumber     string             `json:"order_number"`
	Status          models.OrderStatus `json:"status"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	ShippingAddress string             `json:"shipping_address"`
	Items           []models.OrderItem `json:"items"`
	Contact         MaskedContact      `json:"contact"`
}

type MaskedContact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Service) OrderBySession(ctx context.Context, sessionID string) (*OrderSnapshot, error) {
	order, err := store.GetOrderBySessionID(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := store.GetUser(ctx, s.db, order.UserID)
	if err != nil {
		return nil, err
	}

	return &OrderSnapshot{
		OrderID:         order.ID,
		OrderNumber:     OrderNumber(order.ID),
		Status:          order.Status,
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		Items:           order.Items,
		Contact: MaskedContact{
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
	}, nil
}
