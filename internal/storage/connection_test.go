package storage

import (
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/portfolio-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresPoolConfig(t *testing.T) {
	cfg := &config.PostgresConfig{
		Host:           "db.internal",
		Port:           "6543",
		Database:       "ledger",
		User:           "ledger",
		Password:       "secret",
		MaxConnections: 7,
	}

	poolConfig, err := postgresPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(6543), poolConfig.ConnConfig.Port)
	assert.Equal(t, "ledger", poolConfig.ConnConfig.Database)
	assert.Equal(t, postgresApplicationName, poolConfig.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, int32(7), poolConfig.MaxConns)
	assert.Equal(t, int32(postgresMinConns), poolConfig.MinConns)
	assert.Equal(t, postgresConnIdleTime, poolConfig.MaxConnIdleTime)
}

func TestPostgresPoolConfig_DefaultPoolSize(t *testing.T) {
	poolConfig, err := postgresPoolConfig(&config.PostgresConfig{Host: "localhost", Port: "5432", Database: "ledger", User: "ledger"})
	require.NoError(t, err)
	assert.Positive(t, poolConfig.MaxConns)
	assert.LessOrEqual(t, poolConfig.MinConns, poolConfig.MaxConns)
}

func TestClickHouseOptions(t *testing.T) {
	opts := clickHouseOptions(&config.ClickHouseConfig{
		Host:     "ch.internal",
		Port:     "9440",
		Database: "portfolio_ledger",
		User:     "journal",
		Password: "secret",
	})

	assert.Equal(t, []string{"ch.internal:9440"}, opts.Addr)
	assert.Equal(t, "portfolio_ledger", opts.Auth.Database)
	assert.Equal(t, "journal", opts.Auth.Username)
	assert.Equal(t, 1, opts.Settings["async_insert"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])
	require.NotNil(t, opts.Compression)
	assert.Equal(t, clickhouse.CompressionLZ4, opts.Compression.Method)
}
