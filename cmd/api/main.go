package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-backend/internal/api"
	"github.com/safar/go-shop-backend/internal/checkout"
	"github.com/safar/go-shop-backend/internal/config"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/payment"
	"github.com/safar/go-shop-backend/internal/settlement"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	logger.Info().Msg("connected to database")

	provider := payment.NewStripeProvider(cfg.Stripe)

	checkoutService := checkout.NewService(db, provider, logger)
	reconciler := settlement.NewReconciler(db, provider, logger)

	router := api.NewRouter(api.Router{
		Checkout: api.NewCheckoutHandler(checkoutService, reconciler, logger),
		Cart:     api.NewCartHandler(db),
		Orders:   api.NewOrdersHandler(db),
		Products: api.NewProductsHandler(db),
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		<-sigChan
		logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
		close(shutdownDone)
	}()

	logger.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
	<-shutdownDone
}
