package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/shopspring/decimal"
)

// GetOrCreateCart returns the user's cart, creating an empty one on
// first use. Carts are never deleted, only cleared.
func GetOrCreateCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	query := `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1`

	err := db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		insert := `
			INSERT INTO carts (user_id, created_at, updated_at)
			VALUES ($1, NOW(), NOW())
			ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			RETURNING id, user_id, created_at, updated_at`
		err = db.QueryRowContext(ctx, insert, userID).Scan(
			&cart.ID,
			&cart.UserID,
			&cart.CreatedAt,
			&cart.UpdatedAt,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}

	if err := loadCartItems(ctx, db, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

func loadCartItems(ctx context.Context, db *sql.DB, cart *models.Cart) error {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		       p.id, p.sku, p.name, p.description, p.price, p.stock_quantity, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	rows, err := db.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		product := &models.Product{}
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&item.CreatedAt,
			&item.UpdatedAt,
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.StockQuantity,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan cart item: %w", err)
		}
		item.Product = product
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	cart.Items = items
	cart.Total = total
	return nil
}

// AddItem adds a product to the user's cart, merging quantities when the
// product is already present. The stock check here is provisional;
// inventory is only decremented at settlement.
func AddItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) (*models.Cart, error) {
	product, err := GetProduct(ctx, db, productID)
	if err != nil {
		return nil, err
	}

	cart, err := GetOrCreateCart(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	newQuantity := quantity
	for _, item := range cart.Items {
		if item.ProductID == productID {
			newQuantity += item.Quantity
			break
		}
	}

	if product.StockQuantity < newQuantity {
		return nil, fmt.Errorf("%w: %s", database.ErrInsufficientStock, product.Name)
	}

	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`

	if _, err := db.ExecContext(ctx, query, cart.ID, productID, quantity); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return GetOrCreateCart(ctx, db, userID)
}

func UpdateItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) (*models.Cart, error) {
	product, err := GetProduct(ctx, db, productID)
	if err != nil {
		return nil, err
	}

	if product.StockQuantity < quantity {
		return nil, fmt.Errorf("%w: %s", database.ErrInsufficientStock, product.Name)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE cart_items ci
		 SET quantity = $1, updated_at = NOW()
		 FROM carts c
		 WHERE ci.cart_id = c.id
		   AND c.user_id = $2
		   AND ci.product_id = $3`,
		quantity, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, database.ErrCartItemNotFound
	}

	return GetOrCreateCart(ctx, db, userID)
}

func RemoveItem(ctx context.Context, db *sql.DB, userID, productID int64) (*models.Cart, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items ci
		 USING carts c
		 WHERE ci.cart_id = c.id
		   AND c.user_id = $1
		   AND ci.product_id = $2`,
		userID, productID)
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, database.ErrCartItemNotFound
	}

	return GetOrCreateCart(ctx, db, userID)
}

func ClearCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	return GetOrCreateCart(ctx, db, userID)
}

// ClearCartTx empties the user's cart inside the caller's transaction so
// the clear commits or rolls back with the rest of the settlement unit.
func ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`,
		userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
