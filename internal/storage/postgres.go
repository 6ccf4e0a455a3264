// Package storage provides the ledger record stores, the query cache and the event journal.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portfolio-ledger/internal/config"
)

// Ledger transactions are short and lock single rows, so a small pool that
// recycles idle connections quickly is enough.
const (
	postgresApplicationName = "portfolio-ledger"
	postgresConnectTimeout  = 10 * time.Second
	postgresMinConns        = 1
	postgresConnLifetime    = 30 * time.Minute
	postgresConnIdleTime    = 5 * time.Minute
	postgresHealthCheck     = 30 * time.Second
)

// ErrSchemaMissing is returned when the ledger tables have not been migrated
var ErrSchemaMissing = errors.New("ledger schema missing; run the postgres migrations first")

// PostgresDB is the connection pool behind PostgresStore
type PostgresDB struct {
	pool *pgxpool.Pool
}

// postgresPoolConfig derives the pool settings from cfg. The DSN is the same
// one golang-migrate uses, so the store and the migrator always agree.
func postgresPoolConfig(cfg *config.PostgresConfig) (*pgxpool.Config, error) {
	dsn := fmt.Sprintf("%s&application_name=%s", cfg.URL(), postgresApplicationName)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres settings: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - small configured value
	}
	poolConfig.MinConns = min(postgresMinConns, poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = postgresConnLifetime
	poolConfig.MaxConnIdleTime = postgresConnIdleTime
	poolConfig.HealthCheckPeriod = postgresHealthCheck
	return poolConfig, nil
}

// NewPostgresDB opens the pool and waits until the server answers
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := postgresPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, postgresConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	db := &PostgresDB{pool: pool}

	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres at %s:%s unreachable: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// SchemaReady returns ErrSchemaMissing until the ledger migrations have run
func (db *PostgresDB) SchemaReady(ctx context.Context) error {
	var ready bool
	err := db.pool.QueryRow(ctx, `SELECT to_regclass('protocol_state') IS NOT NULL`).Scan(&ready)
	if err != nil {
		return fmt.Errorf("failed to inspect ledger schema: %w", err)
	}
	if !ready {
		return ErrSchemaMissing
	}
	return nil
}

// Close releases every pooled connection
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the pool transactions are started on
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks that the server answers
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
