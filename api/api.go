// Package api provides the HTTP API for the card payments backend.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/payments-backend/stripe"
	"go.vocdoni.io/dvote/log"
)

// Config groups everything the API server needs.
type Config struct {
	Host string
	Port int
	// Stripe runs the checkout orchestration and webhook reconciliation.
	Stripe *stripe.Service
	// PublishableKey is handed to the browser through GET /config.
	PublishableKey string
}

// API type represents the API HTTP server.
type API struct {
	stripe         *stripe.Service
	host           string
	port           int
	router         *chi.Mux
	publishableKey string
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	return &API{
		stripe:         conf.Stripe,
		host:           conf.Host,
		port:           conf.Port,
		publishableKey: conf.PublishableKey,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.initRouter()); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(45 * time.Second))

	log.Infow("new route", "method", "GET", "path", configEndpoint)
	r.Get(configEndpoint, a.configHandler)
	log.Infow("new route", "method", "POST", "path", createPaymentIntentEndpoint)
	r.Post(createPaymentIntentEndpoint, a.createPaymentIntentHandler)
	log.Infow("new route", "method", "POST", "path", webhookEndpoint)
	r.Post(webhookEndpoint, a.webhookHandler)

	a.router = r
	return r
}
