// Package main runs onboardd, the onboarding service in front of the CMS
// backend: signup flows, the challenge payment handoff, and market quotes
// for the signup screens.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/config"
	"github.com/BitFund-Trading/onboarding_layer/internal/database"
	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
	"github.com/BitFund-Trading/onboarding_layer/internal/marketdata"
	"github.com/BitFund-Trading/onboarding_layer/internal/metrics"
	"github.com/BitFund-Trading/onboarding_layer/internal/payment"
	"github.com/BitFund-Trading/onboarding_layer/internal/session"
	"github.com/BitFund-Trading/onboarding_layer/internal/signup"
)

func main() {
	log := logging.New("onboardd")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("configuration error")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("onboardd")

	var store *database.Store
	if cfg.DatabaseURL != "" {
		store, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Error("database connection failed")
			os.Exit(1)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			log.WithError(err).Error("database migration failed")
			os.Exit(1)
		}
	} else {
		log.Warn("DATABASE_URL not set; payment handoffs are not persisted")
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.SessionFile != "" {
		sessions = session.NewFileStore(cfg.SessionFile)
	}

	cmsClient := cms.NewClient(cfg.BackendURL, cfg.RequestTimeout, log)
	plans := signup.LoadPlansOrDefault(cfg.PlansFile)
	deps := signup.NewDeps(cmsClient, sessions, log, m, plans)

	var provider payment.CheckoutProvider
	if cfg.StripeSecretKey != "" {
		provider = payment.NewStripeProvider(cfg.StripeSecretKey)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set; challenge checkout is disabled")
	}

	var checkoutStore payment.CheckoutStore
	if store != nil {
		checkoutStore = store
	}
	payments := payment.NewService(payment.Config{
		Plans:    plans,
		Provider: provider,
		CMS:      cmsClient,
		Store:    checkoutStore,
		Log:      log,
		Metrics:  m,
		Origin:   cfg.PublicOrigin,
	})

	quotes := marketdata.NewPoller(marketdata.PollerConfig{
		Interval: cfg.MarketPollInterval,
		Log:      log,
	})
	if err := quotes.Start(ctx); err != nil {
		log.WithError(err).Warn("market data poller failed to start")
	}
	defer quotes.Stop()

	srv := newServer(serverDeps{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		deps:     deps,
		payments: payments,
		quotes:   quotes,
		store:    store,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("onboardd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}
