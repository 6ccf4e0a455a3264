package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	statements []string
	err        error
}

func (r *recordingExecer) Exec(ctx context.Context, query string, args ...interface{}) error {
	r.statements = append(r.statements, query)
	return r.err
}

func TestSplitSQLStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (
    x UInt64
) ENGINE = MergeTree() ORDER BY x;

-- second
CREATE TABLE b (y String) ENGINE = Log;
SELECT 1`

	stmts := splitSQLStatements(content)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.Equal(t, "CREATE TABLE b (y String) ENGINE = Log", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestRunClickHouseMigrations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000002_b.sql"), []byte("CREATE TABLE b (y String) ENGINE = Log;\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_a.sql"), []byte("CREATE TABLE a (x UInt64) ENGINE = Log;\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	exec := &recordingExecer{}
	require.NoError(t, RunClickHouseMigrations(testContext(t), exec, dir))

	require.Len(t, exec.statements, 2)
	assert.Contains(t, exec.statements[0], "CREATE TABLE a")
	assert.Contains(t, exec.statements[1], "CREATE TABLE b")
}

func TestRunClickHouseMigrations_Errors(t *testing.T) {
	ctx := testContext(t)

	err := RunClickHouseMigrations(ctx, &recordingExecer{}, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_a.sql"), []byte("CREATE TABLE a (x UInt64) ENGINE = Log;"), 0o600))
	err = RunClickHouseMigrations(ctx, &recordingExecer{err: errors.New("syntax error")}, dir)
	assert.ErrorContains(t, err, "000001_a.sql")
}

func TestLedgerEventsMigrationParses(t *testing.T) {
	content, err := os.ReadFile("../../migrations/clickhouse/000001_ledger_events.sql")
	require.NoError(t, err)

	stmts := splitSQLStatements(string(content))
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS ledger_events")
}
