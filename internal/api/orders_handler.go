package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/store"
)

type OrdersHandler struct {
	db *sql.DB
}

func NewOrdersHandler(db *sql.DB) *OrdersHandler {
	return &OrdersHandler{db: db}
}

// GET /api/v1/orders?cursor=...&limit=...
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListOrdersByUser(r.Context(), h.db, getUserID(r.Context()),
		r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// GET /api/v1/orders/{orderID}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := store.GetOrder(r.Context(), h.db, chi.URLParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// An order belonging to another user is never shown, and never
	// silently treated as success.
	if order.UserID != getUserID(r.Context()) {
		respondDomainError(w, database.ErrForbidden)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
