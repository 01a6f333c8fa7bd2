package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-shop-backend/internal/store"
	"github.com/shopspring/decimal"
)

// ProductsHandler serves the minimal catalog surface the checkout
// pipeline needs: products exist so stock and prices exist.
type ProductsHandler struct {
	db *sql.DB
}

func NewProductsHandler(db *sql.DB) *ProductsHandler {
	return &ProductsHandler{db: db}
}

// POST /api/v1/products
func (h *ProductsHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU         string  `json:"sku"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Stock       int     `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.SKU == "" || req.Name == "" || req.Price < 0 || req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "sku, name, non-negative price and stock are required")
		return
	}

	product, err := store.CreateProduct(r.Context(), h.db, req.SKU, req.Name, req.Description,
		decimal.NewFromFloat(req.Price), req.Stock)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

// GET /api/v1/products?page=...&page_size=...
func (h *ProductsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	result, err := store.ListProducts(r.Context(), h.db, page, pageSize)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GET /api/v1/products/{productID}
func (h *ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid product id")
		return
	}

	product, err := store.GetProduct(r.Context(), h.db, productID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}
