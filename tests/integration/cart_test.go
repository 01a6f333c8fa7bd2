package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/store"
	"github.com/shopspring/decimal"
)

func TestCartLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "cart@example.com", "Cart", "Owner")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	mug, err := store.CreateProduct(ctx, db, "CRT-001", "Mug", "", decimal.RequireFromString("4.50"), 20)
	if err != nil {
		t.Fatalf("Create mug: %v", err)
	}

	bowl, err := store.CreateProduct(ctx, db, "CRT-002", "Bowl", "", decimal.RequireFromString("6.00"), 20)
	if err != nil {
		t.Fatalf("Create bowl: %v", err)
	}

	// A fresh user starts with an empty cart, created on first access.
	cart, err := store.GetOrCreateCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("Expected empty cart, got %d items", len(cart.Items))
	}
	if !cart.Total.IsZero() {
		t.Errorf("Expected zero total, got %s", cart.Total)
	}

	// Adding the same product twice merges into one line.
	if _, err := store.AddItem(ctx, db, user.ID, mug.ID, 2); err != nil {
		t.Fatalf("Add mug: %v", err)
	}
	cart, err = store.AddItem(ctx, db, user.ID, mug.ID, 1)
	if err != nil {
		t.Fatalf("Add mug again: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected 1 merged line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Errorf("Expected merged quantity 3, got %d", cart.Items[0].Quantity)
	}

	cart, err = store.AddItem(ctx, db, user.ID, bowl.ID, 1)
	if err != nil {
		t.Fatalf("Add bowl: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(cart.Items))
	}

	// 3 x 4.50 + 1 x 6.00
	if !cart.Total.Equal(decimal.RequireFromString("19.50")) {
		t.Errorf("Expected total 19.50, got %s", cart.Total)
	}

	// Update replaces the quantity rather than adding to it.
	cart, err = store.UpdateItem(ctx, db, user.ID, mug.ID, 1)
	if err != nil {
		t.Fatalf("Update mug: %v", err)
	}
	for _, item := range cart.Items {
		if item.ProductID == mug.ID && item.Quantity != 1 {
			t.Errorf("Expected quantity 1 after update, got %d", item.Quantity)
		}
	}

	cart, err = store.RemoveItem(ctx, db, user.ID, bowl.ID)
	if err != nil {
		t.Fatalf("Remove bowl: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected 1 line after removal, got %d", len(cart.Items))
	}

	cart, err = store.ClearCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Clear cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Errorf("Expected empty cart after clear, got %d items", len(cart.Items))
	}
}

func TestAddItemChecksStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "stock@example.com", "Stock", "Check")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "CRT-003", "Rare", "", decimal.RequireFromString("99.00"), 2)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 3); !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock, got: %v", err)
	}

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add within stock: %v", err)
	}

	// The merged quantity would exceed stock.
	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 1); !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock on merge, got: %v", err)
	}
}

func TestCartUnknownReferences(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "refs@example.com", "Ref", "Check")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	if _, err := store.AddItem(ctx, db, user.ID, 999999, 1); !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}

	if _, err := store.UpdateItem(ctx, db, user.ID, 999999, 1); !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "CRT-004", "Plate", "", decimal.RequireFromString("3.00"), 5)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	// The product exists but was never added to this user's cart.
	if _, err := store.UpdateItem(ctx, db, user.ID, product.ID, 2); !errors.Is(err, database.ErrCartItemNotFound) {
		t.Errorf("Expected cart item not found, got: %v", err)
	}
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	alice, err := store.CreateUser(ctx, db, "alice@example.com", "Alice", "A")
	if err != nil {
		t.Fatalf("Create alice: %v", err)
	}
	bob, err := store.CreateUser(ctx, db, "bob@example.com", "Bob", "B")
	if err != nil {
		t.Fatalf("Create bob: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "CRT-005", "Shared", "", decimal.RequireFromString("1.00"), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	if _, err := store.AddItem(ctx, db, alice.ID, product.ID, 4); err != nil {
		t.Fatalf("Add to alice's cart: %v", err)
	}

	bobCart, err := store.GetOrCreateCart(ctx, db, bob.ID)
	if err != nil {
		t.Fatalf("Get bob's cart: %v", err)
	}
	if len(bobCart.Items) != 0 {
		t.Errorf("Bob's cart should be empty, got %d items", len(bobCart.Items))
	}

	if _, err := store.ClearCart(ctx, db, bob.ID); err != nil {
		t.Fatalf("Clear bob's cart: %v", err)
	}

	aliceCart, err := store.GetOrCreateCart(ctx, db, alice.ID)
	if err != nil {
		t.Fatalf("Get alice's cart: %v", err)
	}
	if len(aliceCart.Items) != 1 {
		t.Errorf("Alice's cart should keep its item, got %d items", len(aliceCart.Items))
	}
}
