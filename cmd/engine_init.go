package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/migration-cli/internal/audit"
	"github.com/sells-group/migration-cli/internal/config"
	"github.com/sells-group/migration-cli/internal/dedupe"
	"github.com/sells-group/migration-cli/internal/importer"
	"github.com/sells-group/migration-cli/internal/matcher"
	"github.com/sells-group/migration-cli/internal/migration"
	"github.com/sells-group/migration-cli/internal/repair"
	"github.com/sells-group/migration-cli/internal/store"
)

// engineEnv holds the initialized store and orchestrator shared by the
// commands.
type engineEnv struct {
	Store        store.Store
	Orchestrator *migration.Orchestrator
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine sets up the store and wires the migration components.
// Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sink := audit.NewSink(st)
	stager := importer.NewStager(st, sink, cfg.Import.DefaultAgentID)
	engine := repair.New(cfg.Repair, st, sink)
	detector := dedupe.New(st, sink)
	m := matcher.New(cfg.Match, st, sink)
	orch := migration.New(st, stager, detector, m, engine, sink, cfg.Import.DelimiterRune())

	return &engineEnv{Store: st, Orchestrator: orch}, nil
}

// initStore opens the configured backend.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &sc.Pool)
	default:
		return store.NewSQLite(sc.DatabaseURL)
	}
}
