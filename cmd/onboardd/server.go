package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/BitFund-Trading/onboarding_layer/internal/config"
	"github.com/BitFund-Trading/onboarding_layer/internal/database"
	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
	"github.com/BitFund-Trading/onboarding_layer/internal/marketdata"
	"github.com/BitFund-Trading/onboarding_layer/internal/metrics"
	"github.com/BitFund-Trading/onboarding_layer/internal/middleware"
	"github.com/BitFund-Trading/onboarding_layer/internal/payment"
	"github.com/BitFund-Trading/onboarding_layer/internal/signup"
)

// serverDeps carries everything the HTTP layer needs.
type serverDeps struct {
	cfg      *config.Config
	log      *logging.Logger
	metrics  *metrics.Metrics
	deps     *signup.Deps
	payments *payment.Service
	quotes   *marketdata.Poller
	store    *database.Store
}

type server struct {
	serverDeps
	flows map[string]signup.Flow
}

func newServer(d serverDeps) *server {
	return &server{
		serverDeps: d,
		flows: map[string]signup.Flow{
			"challenger":    signup.NewChallengerFlow(d.deps),
			"trader":        signup.NewTraderFlow(d.deps),
			"institutional": signup.NewInstitutionalFlow(d.deps),
		},
	}
}

// publicPaths pass through the auth middleware without a token: signup
// creates the account that tokens are issued for.
func (s *server) publicPaths() []string {
	paths := []string{
		"/health",
		"/metrics",
		"/api/market/quotes",
		"/api/market/ohlc/",
		"/api/challenge-plans",
	}
	for name := range s.flows {
		paths = append(paths, "/api/signup/"+name)
	}
	return paths
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	r.HandleFunc("/api/signup/{flow}", s.handleSignup).Methods("POST")
	r.HandleFunc("/api/signup/{flow}/steps", s.handleSteps).Methods("GET")
	r.HandleFunc("/api/signup/{flow}/validate", s.handleValidateStep).Methods("POST")
	r.HandleFunc("/api/challenge-plans", s.handlePlans).Methods("GET")
	r.HandleFunc("/api/market/quotes", s.handleQuotes).Methods("GET")
	r.HandleFunc("/api/market/ohlc/{instrument}", s.handleCandles).Methods("GET")

	r.HandleFunc("/api/create-challenge-checkout-session", s.handleCreateCheckout).Methods("POST")
	r.HandleFunc("/api/verify-challenge-payment", s.handleVerifyPayment).Methods("POST")
	r.HandleFunc("/api/create-mt5-demo-account", s.handleProvision).Methods("POST")

	r.Use(middleware.LoggingMiddleware(s.log))
	r.Use(middleware.MetricsMiddleware("onboardd", s.metrics))

	cors := middleware.NewCORSMiddleware([]string{s.cfg.PublicOrigin})
	rl := middleware.NewRateLimiter(10, 20, s.log)

	var handler http.Handler = r
	if s.cfg.JWTSecret != "" {
		// Step endpoints are also public: they serve the wizard layout.
		skip := s.publicPaths()
		for name := range s.flows {
			skip = append(skip, "/api/signup/"+name+"/steps", "/api/signup/"+name+"/validate")
		}
		auth := middleware.NewAuthMiddleware([]byte(s.cfg.JWTSecret), s.log, skip)
		handler = auth.Handler(handler)
	}
	handler = rl.Handler(handler)
	handler = cors.Handler(handler)
	return handler
}
