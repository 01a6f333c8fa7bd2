package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Router struct {
	Checkout *CheckoutHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
	Products *ProductsHandler
}

func NewRouter(rt Router, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Processor callbacks and landing pages carry no user identity.
		r.Post("/webhooks/stripe", rt.Checkout.StripeWebhook)
		r.Get("/success", rt.Checkout.PaymentSuccess)
		r.Get("/cancel", rt.Checkout.PaymentCancel)

		r.Get("/products", rt.Products.ListProducts)
		r.Get("/products/{productID}", rt.Products.GetProduct)
		r.Post("/products", rt.Products.CreateProduct)

		r.Group(func(r chi.Router) {
			r.Use(UserAuthMiddleware)

			r.Post("/checkout", rt.Checkout.CreateSession)

			r.Get("/cart", rt.Cart.GetCart)
			r.Post("/cart/items", rt.Cart.AddItem)
			r.Put("/cart/items/{productID}", rt.Cart.UpdateItem)
			r.Delete("/cart/items/{productID}", rt.Cart.RemoveItem)
			r.Delete("/cart", rt.Cart.ClearCart)

			r.Get("/orders", rt.Orders.ListOrders)
			r.Get("/orders/{orderID}", rt.Orders.GetOrder)
		})
	})

	return r
}
