package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T) *SQLiteDriver {
	t.Helper()
	driver, err := NewSQLiteDriver(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })
	require.NoError(t, driver.Initialize(context.Background()))
	return driver
}

func TestSQLiteDriver_InitializeIsIdempotent(t *testing.T) {
	driver := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, driver.Initialize(ctx))
	require.NoError(t, driver.Ping(ctx))
	assert.Equal(t, "sqlite", driver.Type())

	var count int
	err := driver.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('memories', 'app_config')",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteDriver_Config(t *testing.T) {
	driver := newTestDriver(t)
	ctx := context.Background()

	value, err := driver.GetConfig(ctx, "openrouter_api_key")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, driver.SetConfig(ctx, "openrouter_api_key", "first"))
	require.NoError(t, driver.SetConfig(ctx, "openrouter_api_key", "second"))

	value, err = driver.GetConfig(ctx, "openrouter_api_key")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}
