// Package server provides the HTTP server and routing for the layers
// engine. Handlers are thin: decode, fetch fresh market data, call the
// owning service, encode. All allocation and economics logic lives in
// the modules.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/ledger"
	"github.com/blumarkets/layers/internal/modules/lending"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/profiler"
	"github.com/blumarkets/layers/internal/modules/protection"
	"github.com/blumarkets/layers/internal/modules/rebalancing"
	"github.com/blumarkets/layers/internal/modules/registry"
	"github.com/blumarkets/layers/internal/modules/simulation"
	"github.com/blumarkets/layers/internal/modules/trading"
)

// Config holds everything the server needs. Services are constructed
// in cmd/server and injected here.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool

	Registry   *registry.Registry
	Holder     *pricefeed.Holder
	Feed       *pricefeed.WebSocketFeed // nil when running poll-only
	Bus        *events.Bus
	EventMgr   *events.Manager
	Profiler   *profiler.Profiler
	Portfolio  portfolio.RepositoryInterface
	Calculator *portfolio.Calculator
	Trading    *trading.Service
	Trades     trading.TradeRepositoryInterface
	Rebalance  *rebalancing.Service
	Lending    *lending.Service
	Loans      lending.RepositoryInterface
	Protection *protection.Service
	Contracts  protection.RepositoryInterface
	Ledger     ledger.RepositoryInterface
	Simulation *simulation.Engine
}

// Server is the HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	port    int
	devMode bool

	holder *pricefeed.Holder

	profilerHandler   *ProfilerHandler
	portfolioHandler  *PortfolioHandler
	tradingHandler    *TradingHandler
	rebalanceHandler  *RebalanceHandler
	lendingHandler    *LendingHandler
	protectionHandler *ProtectionHandler
	ledgerHandler     *LedgerHandler
	registryHandler   *RegistryHandler
	simulationHandler *SimulationHandler
	systemHandler     *SystemHandler
	eventsHandler     *EventsStreamHandler
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()

	s := &Server{
		router:  chi.NewRouter(),
		log:     log,
		port:    cfg.Port,
		devMode: cfg.DevMode,
		holder:  cfg.Holder,

		profilerHandler:   NewProfilerHandler(cfg.Profiler, cfg.Portfolio, cfg.EventMgr, log),
		portfolioHandler:  NewPortfolioHandler(cfg.Portfolio, cfg.Calculator, cfg.Holder, cfg.Trading, log),
		tradingHandler:    NewTradingHandler(cfg.Trading, cfg.Trades, cfg.Holder, log),
		rebalanceHandler:  NewRebalanceHandler(cfg.Rebalance, cfg.Holder, log),
		lendingHandler:    NewLendingHandler(cfg.Lending, cfg.Loans, cfg.Holder, log),
		protectionHandler: NewProtectionHandler(cfg.Protection, cfg.Contracts, cfg.Calculator, cfg.Portfolio, cfg.Holder, log),
		ledgerHandler:     NewLedgerHandler(cfg.Ledger, log),
		registryHandler:   NewRegistryHandler(cfg.Registry, log),
		simulationHandler: NewSimulationHandler(cfg.Simulation, log),
		systemHandler:     NewSystemHandler(cfg.Holder, cfg.Feed, log),
		eventsHandler:     NewEventsStreamHandler(cfg.Bus, log),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !s.devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// loggingMiddleware logs each request with zerolog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		s.profilerHandler.RegisterRoutes(r)
		s.portfolioHandler.RegisterRoutes(r)
		s.tradingHandler.RegisterRoutes(r)
		s.rebalanceHandler.RegisterRoutes(r)
		s.lendingHandler.RegisterRoutes(r)
		s.protectionHandler.RegisterRoutes(r)
		s.ledgerHandler.RegisterRoutes(r)
		s.registryHandler.RegisterRoutes(r)
		s.simulationHandler.RegisterRoutes(r)
		s.systemHandler.RegisterRoutes(r)
		r.Get("/events/stream", s.eventsHandler.ServeHTTP)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
