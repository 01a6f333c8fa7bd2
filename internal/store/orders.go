package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID          int64
	ShippingAddress string
	Items           []OrderItemRequest
}

// OrderItemRequest carries the unit price captured at checkout time.
// The snapshot is what the order keeps, independent of later product
// price changes.
type OrderItemRequest struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateOrder persists a new PENDING order with its item snapshot in a
// single transaction. Inventory is not touched; decrements happen at
// settlement.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, database.ErrEmptyCart
	}

	orderID := uuid.NewString()
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		totalAmount := decimal.Zero
		for _, item := range req.Items {
			totalAmount = totalAmount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order = &models.Order{ID: orderID}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (id, user_id, status, total_amount, shipping_address, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			 RETURNING id, user_id, status, total_amount, shipping_address, created_at, updated_at`,
			orderID, req.UserID, models.OrderStatusPending, totalAmount, req.ShippingAddress).Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.TotalAmount,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range req.Items {
			subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

			var created models.OrderItem
			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 RETURNING id, order_id, product_id, quantity, unit_price, subtotal, created_at`,
				orderID, item.ProductID, item.Quantity, item.UnitPrice, subtotal).Scan(
				&created.ID,
				&created.OrderID,
				&created.ProductID,
				&created.Quantity,
				&created.UnitPrice,
				&created.Subtotal,
				&created.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.Items = append(order.Items, created)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id string) (*models.Order, error) {
	return getOrderBy(ctx, db, "id = $1", id)
}

func GetOrderBySessionID(ctx context.Context, db *sql.DB, sessionID string) (*models.Order, error) {
	return getOrderBy(ctx, db, "stripe_session_id = $1", sessionID)
}

func getOrderBy(ctx context.Context, db *sql.DB, where string, arg any) (*models.Order, error) {
	order := &models.Order{}
	var sessionID, paymentID sql.NullString

	query := `
		SELECT id, user_id, status, total_amount, shipping_address,
		       stripe_session_id, stripe_payment_id, created_at, updated_at
		FROM orders
		WHERE ` + where

	err := db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress,
		&sessionID,
		&paymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	order.StripeSessionID = sessionID.String
	order.StripePaymentID = paymentID.String

	items, err := getOrderItems(ctx, db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func getOrderItems(ctx context.Context, db *sql.DB, orderID string) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ListOrdersByUser walks a user's order history newest first with a
// keyset cursor over (created_at, id).
func ListOrdersByUser(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, user_id, status, total_amount, shipping_address,
		       stripe_session_id, stripe_payment_id, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		var sessionID, paymentID sql.NullString
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.TotalAmount,
			&order.ShippingAddress,
			&sessionID,
			&paymentID,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		order.StripeSessionID = sessionID.String
		order.StripePaymentID = paymentID.String
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// SetSessionID records the processor session reference on an order after
// the session has been opened.
func SetSessionID(ctx context.Context, db *sql.DB, orderID, sessionID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET stripe_session_id = $1, updated_at = NOW()
		 WHERE id = $2`,
		sessionID, orderID)
	if err != nil {
		return fmt.Errorf("set session id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

type SettleResult struct {
	AlreadySettled bool
	UserID         int64
}

// SettleOrder applies a completed checkout to durable state as one
// atomic unit: the PENDING->PAID transition, the per-line stock
// decrements, and the cart clear commit together or not at all.
//
// The order row is locked first and the transition is guarded on the
// current status, so replaying the same event is a no-op: the second
// delivery sees a non-PENDING order and commits nothing.
func SettleOrder(ctx context.Context, db *sql.DB, orderID, paymentID string) (*SettleResult, error) {
	result := &SettleResult{}

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var userID int64
		var status models.OrderStatus

		err := tx.QueryRowContext(ctx,
			`SELECT user_id, status
			 FROM orders
			 WHERE id = $1
			 FOR UPDATE`,
			orderID).Scan(&userID, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		result.UserID = userID

		if status != models.OrderStatusPending {
			// Already settled or independently canceled.
			result.AlreadySettled = true
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders
			 SET status = $1, stripe_payment_id = $2, updated_at = NOW()
			 WHERE id = $3`,
			models.OrderStatusPaid, paymentID, orderID)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		items, err := settleOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}

		// Decrement in product-id order so concurrent settlements with
		// overlapping lines cannot deadlock.
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		for _, item := range items {
			if err := DecrementStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("settle order %s: %w", orderID, err)
			}
		}

		return ClearCartTx(ctx, tx, userID)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func settleOrderItems(ctx context.Context, tx *sql.Tx, orderID string) ([]models.OrderItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, quantity
		 FROM order_items
		 WHERE order_id = $1`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// CancelOrderByPaymentID drives a PENDING order to CANCELED by its
// processor payment reference. The status guard lives in the UPDATE;
// a replayed or out-of-order event affects no rows.
func CancelOrderByPaymentID(ctx context.Context, db *sql.DB, paymentID string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, updated_at = NOW()
		 WHERE stripe_payment_id = $2
		   AND status = $3`,
		models.OrderStatusCanceled, paymentID, models.OrderStatusPending)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
