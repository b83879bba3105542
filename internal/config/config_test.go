package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "migration.db", cfg.Store.DatabaseURL)
	assert.Equal(t, ',', cfg.Import.DelimiterRune())
	assert.InDelta(t, 0.8, cfg.Match.ExactNameWeight, 1e-9)
	assert.InDelta(t, 0.75, cfg.Match.PartialTotalThreshold, 1e-9)
	assert.Equal(t, 4, cfg.Repair.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
store:
  driver: postgres
  database_url: postgres://localhost/migrate
import:
  delimiter: tab
  default_agent_id: agent-9
match:
  partial_total_threshold: 0.8
`), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, '\t', cfg.Import.DelimiterRune())
	assert.Equal(t, "agent-9", cfg.Import.DefaultAgentID)
	assert.InDelta(t, 0.8, cfg.Match.PartialTotalThreshold, 1e-9)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.7, cfg.Match.PartialNameWeight, 1e-9)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MIGRATE_STORE_DRIVER", "postgres")
	t.Setenv("MIGRATE_IMPORT_DEFAULT_AGENT_ID", "agent-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "agent-env", cfg.Import.DefaultAgentID)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MIGRATE_STORE_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ',', ImportConfig{}.DelimiterRune())
	assert.Equal(t, ';', ImportConfig{Delimiter: ";"}.DelimiterRune())
	assert.Equal(t, '\t', ImportConfig{Delimiter: `\t`}.DelimiterRune())
	assert.Equal(t, '\t', ImportConfig{Delimiter: "tab"}.DelimiterRune())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
