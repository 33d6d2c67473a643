package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"poke-platform/internal/config"
	"poke-platform/internal/proposals"
	"poke-platform/internal/storage"
)

// Options wires the server to its collaborators.
type Options struct {
	Config config.ServerConfig
	Logger zerolog.Logger

	DB         storage.Pinger
	Valuations storage.ValuationReader
	Prices     storage.PriceReader
	Proposals  storage.ProposalStore
	Portfolio  storage.PortfolioValuer
	Generator  *proposals.Generator
	Reviewer   *proposals.Reviewer

	// Default strategy identity for valuation listings when the request
	// does not name one.
	StrategyName    string
	StrategyVersion string
}

// Server is the HTTP review surface over valuations and proposals.
type Server struct {
	router *chi.Mux
	server *http.Server
	logger zerolog.Logger
	cfg    config.ServerConfig

	db        storage.Pinger
	vals      storage.ValuationReader
	prices    storage.PriceReader
	props     storage.ProposalStore
	portfolio storage.PortfolioValuer
	generator *proposals.Generator
	reviewer  *proposals.Reviewer

	strategyName    string
	strategyVersion string
}

// New builds the router, middleware chain, and http.Server.
func New(opts Options) *Server {
	s := &Server{
		router:          chi.NewRouter(),
		logger:          opts.Logger.With().Str("component", "api").Logger(),
		cfg:             opts.Config,
		db:              opts.DB,
		vals:            opts.Valuations,
		prices:          opts.Prices,
		props:           opts.Proposals,
		portfolio:       opts.Portfolio,
		generator:       opts.Generator,
		reviewer:        opts.Reviewer,
		strategyName:    opts.StrategyName,
		strategyVersion: opts.StrategyVersion,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Config.Host, opts.Config.Port),
		Handler:      s.router,
		ReadTimeout:  opts.Config.ReadTimeout,
		WriteTimeout: opts.Config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/valuations", func(r chi.Router) {
			r.Get("/undervalued", s.handleUndervalued)
			r.Get("/overvalued", s.handleOvervalued)
		})

		r.Get("/assets/{assetID}/prices", s.handleAssetPrices)

		r.Route("/proposals", func(r chi.Router) {
			r.Get("/today", s.handleProposalsToday)
			r.Post("/seed", s.handleSeedProposals)
			r.Post("/{proposalID}/approve", s.handleApproveProposal)
			r.Post("/{proposalID}/reject", s.handleRejectProposal)
		})

		r.Get("/portfolio/valuations", s.handlePortfolioValuations)
	})
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
