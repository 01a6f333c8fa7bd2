package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/go-shop-backend/internal/database"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: code, Message: message})
}

// respondDomainError maps store/service sentinels onto client-facing
// responses. Anything unrecognized is an internal error; the message is
// not leaked.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, database.ErrInsufficientStock):
		respondError(w, http.StatusBadRequest, "insufficient_stock", err.Error())
	case errors.Is(err, database.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, database.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, database.ErrCartItemNotFound):
		respondError(w, http.StatusNotFound, "cart_item_not_found", "cart item not found")
	case errors.Is(err, database.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, database.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "order belongs to another user")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
