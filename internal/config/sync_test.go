package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSyncConfigHolderDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewSyncConfigHolder(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, DefaultSyncConfig(), holder.Get())
}

func TestNewSyncConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := "sync:\n  enabled: false\n  interval: 30s\n  batchSize: 7\n  timeout: 10s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sync.yml"), []byte(content), 0o644))

	holder, err := NewSyncConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestNewSyncConfigHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := "sync:\n  interval: 30s\n  batchSize: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sync.yml"), []byte(content), 0o644))

	_, err := NewSyncConfigHolder(zap.NewNop())
	assert.Error(t, err)
}

func TestLoadReadsLedgerFallbacks(t *testing.T) {
	t.Setenv("LEDGER_API_KEY", "")
	t.Setenv("CONTABILIUM_API_KEY", "legacy-key")
	t.Setenv("LEDGER_ACCOUNT_EMAIL", "ops@example.com")
	t.Setenv("LEDGER_TIMEOUT_SECONDS", "3")

	cfg := Load()

	assert.Equal(t, "legacy-key", cfg.Ledger.APIKey)
	assert.Equal(t, "ops@example.com", cfg.Ledger.AccountEmail)
	assert.Equal(t, 3, cfg.Ledger.TimeoutSeconds)
	assert.Equal(t, "sqlite", cfg.DBType)
}
