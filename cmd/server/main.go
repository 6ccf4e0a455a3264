// Package main provides the API server entry point for the portfolio ledger.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/portfolio-ledger/internal/api"
	"github.com/portfolio-ledger/internal/chain"
	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/storage"
	"github.com/portfolio-ledger/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
		"store":  cfg.Store.Backend,
	}).Info("Portfolio ledger starting")

	ctx := logging.WithLogger(context.Background(), logger)

	// Record store
	var store storage.Store
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		logger.Warn("Using in-memory store; ledger state is lost on exit")
		store = storage.NewMemoryStore()
	default:
		postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		if err := postgres.SchemaReady(ctx); err != nil {
			logger.WithError(err).Fatal("Postgres is not ready for the ledger")
		}
		store = storage.NewPostgresStore(postgres)
	}

	// Query cache
	var cache *storage.PortfolioCache
	if cfg.Cache.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, serving queries without cache")
		} else {
			defer redis.Close()
			cache = storage.NewPortfolioCache(redis, cfg.Cache.TTL)
		}
	}

	// Event journal
	var journal storage.EventJournal
	if cfg.Journal.Enabled {
		clickhouse, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		journal = storage.NewClickHouseJournal(clickhouse.Conn())
	}

	// Height source
	var heights chain.HeightSource
	if cfg.Chain.RPCURL != "" {
		rpc, err := chain.DialRPCHeightSource(ctx, cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to chain RPC")
		}
		heights = rpc
	} else {
		logger.WithField("height", cfg.Chain.FixedHeight).Warn("No CHAIN_RPC_URL set, using a manual height source")
		heights = chain.NewManualHeight(types.Height(cfg.Chain.FixedHeight))
	}

	// Services
	protocolOwner := types.ZeroAddress
	if cfg.Ledger.ProtocolOwner != "" {
		protocolOwner, err = types.ParseAddress(cfg.Ledger.ProtocolOwner)
		if err != nil {
			logger.WithError(err).Fatal("Invalid LEDGER_PROTOCOL_OWNER")
		}
	}

	hooks := service.NewCommitHooks(cache, journal)
	index := service.NewOwnerIndexManager()
	portfolioService := service.NewPortfolioService(store, heights, index, hooks, types.Height(cfg.Ledger.RebalanceCooldown))
	queryService := service.NewQueryService(store, index, cache)
	protocolService := service.NewProtocolService(store, hooks)

	state, err := protocolService.EnsureProtocolState(ctx, protocolOwner, types.BasisPoints(cfg.Ledger.ProtocolFeeBps))
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare protocol state")
	}
	if state.ProtocolOwner == types.ZeroAddress {
		logger.Warn("Protocol owner is unset; initialize cannot be called until LEDGER_PROTOCOL_OWNER is configured on a fresh store")
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}
	server := api.NewServer(serverConfig, portfolioService, queryService, protocolService)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
