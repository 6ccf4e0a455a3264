package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/portfolio-ledger/internal/config"
)

const clickHouseConnectTimeout = 5 * time.Second

// ClickHouseDB is the connection the event journal writes through.
// Journal batches are small and written once per commit, so the server
// buffers them as async inserts and acknowledges after flushing.
type ClickHouseDB struct {
	conn driver.Conn
}

// clickHouseOptions derives driver options from cfg
func clickHouseOptions(cfg *config.ClickHouseConfig) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"async_insert":          1,
			"wait_for_async_insert": 1,
			"max_execution_time":    10,
		},
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout:     clickHouseConnectTimeout,
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// NewClickHouseDB connects to the journal database and waits until it answers
func NewClickHouseDB(ctx context.Context, cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(clickHouseOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid clickhouse settings: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, clickHouseConnectTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse at %s:%s unreachable: %w", cfg.Host, cfg.Port, err)
	}
	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the journal connection
func (db *ClickHouseDB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the driver connection journal batches are prepared on
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Exec runs a DDL statement for the migration runner
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}
