package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/migration-cli/internal/config"
	"github.com/sells-group/migration-cli/internal/model"
)

func TestInitEngineSQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	env, err := initEngine(context.Background())
	require.NoError(t, err)
	defer env.Close()

	phase, err := env.Store.GetPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PhaseUpload, phase)
	assert.NotNil(t, env.Orchestrator)
}
