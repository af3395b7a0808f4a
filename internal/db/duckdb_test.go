//go:build integration

package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/detail"
)

func TestConfigPath(t *testing.T) {
	assert.Empty(t, Config{}.Path())
	assert.Equal(t, filepath.Join("data", "duckdb", "termit.duckdb"), Config{DataDir: "data"}.Path())
	assert.Equal(t, filepath.Join("data", "duckdb", "x.duckdb"), Config{DataDir: "data", DBName: "x"}.Path())
}

func TestOpenAndSeedOnce(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	records, err := detail.Seed()
	require.NoError(t, err)

	n, err := Seed(ctx, conn, records)
	require.NoError(t, err)
	assert.Equal(t, len(records), n)

	n, err = Seed(ctx, conn, records)
	require.NoError(t, err)
	assert.Zero(t, n, "existing rows are kept")
}
