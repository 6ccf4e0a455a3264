// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/types"
)

// Service interfaces for dependency injection and testing

// PortfolioServiceInterface defines the portfolio mutations and eligibility check
type PortfolioServiceInterface interface {
	CreatePortfolio(ctx context.Context, caller types.Address, tokens []types.Address, percentages []types.BasisPoints) (types.PortfolioID, error)
	UpdatePortfolioAllocation(ctx context.Context, caller types.Address, id types.PortfolioID, slot types.Slot, newPercentage types.BasisPoints) error
	RebalancePortfolio(ctx context.Context, caller types.Address, id types.PortfolioID) error
	CalculateRebalanceEligibility(ctx context.Context, id types.PortfolioID) (*models.RebalanceStatus, error)
}

// QueryServiceInterface defines the read-only ledger queries
type QueryServiceInterface interface {
	GetPortfolio(ctx context.Context, id types.PortfolioID) (*models.Portfolio, bool, error)
	GetPortfolioAsset(ctx context.Context, id types.PortfolioID, slot types.Slot) (*models.PortfolioAsset, bool, error)
	GetUserPortfolios(ctx context.Context, owner types.Address) ([]types.PortfolioID, error)
	GetPortfolioDetail(ctx context.Context, id types.PortfolioID) (*service.PortfolioDetail, bool, error)
}

// ProtocolServiceInterface defines protocol administration
type ProtocolServiceInterface interface {
	Initialize(ctx context.Context, caller, newOwner types.Address) error
	GetProtocolInfo(ctx context.Context) (*models.ProtocolState, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	portfolioService PortfolioServiceInterface
	queryService     QueryServiceInterface
	protocolService  ProtocolServiceInterface
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int // per client host
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	portfolioService PortfolioServiceInterface,
	queryService QueryServiceInterface,
	protocolService ProtocolServiceInterface,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		portfolioService: portfolioService,
		queryService:     queryService,
		protocolService:  protocolService,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// order matters: request IDs first so every later log line carries one
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	// Protocol endpoints
	api.HandleFunc("/protocol", s.handleGetProtocolInfo).Methods(http.MethodGet)
	api.HandleFunc("/protocol/initialize", s.handleInitialize).Methods(http.MethodPost)

	// Portfolio endpoints
	api.HandleFunc("/portfolios", s.handleCreatePortfolio).Methods(http.MethodPost)
	api.HandleFunc("/portfolios/{id}", s.handleGetPortfolio).Methods(http.MethodGet)
	api.HandleFunc("/portfolios/{id}/detail", s.handleGetPortfolioDetail).Methods(http.MethodGet)
	api.HandleFunc("/portfolios/{id}/assets/{slot}", s.handleGetPortfolioAsset).Methods(http.MethodGet)
	api.HandleFunc("/portfolios/{id}/assets/{slot}", s.handleUpdateAllocation).Methods(http.MethodPut)
	api.HandleFunc("/portfolios/{id}/rebalance", s.handleRebalance).Methods(http.MethodPost)
	api.HandleFunc("/portfolios/{id}/rebalance", s.handleRebalanceEligibility).Methods(http.MethodGet)

	// Owner endpoints
	api.HandleFunc("/owners/{address}/portfolios", s.handleGetOwnerPortfolios).Methods(http.MethodGet)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "portfolio-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithFields(map[string]interface{}{"addr": s.httpServer.Addr}).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
