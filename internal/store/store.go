// Package store provides the record store collaborator: per-collection
// CRUD primitives over SQLite or Postgres. The engine issues only these
// operations and never assumes multi-collection transactional semantics
// from the backend.
package store

import (
	"context"

	"github.com/sells-group/migration-cli/internal/model"
)

// Store defines the persistence interface for the migration engine.
type Store interface {
	// Restaurants (live population)
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	InsertRestaurants(ctx context.Context, records []model.Restaurant) error
	DeleteRestaurants(ctx context.Context, ids []string) (int64, error)
	DeleteAllRestaurants(ctx context.Context) (int64, error)

	// Staging area
	InsertStaged(ctx context.Context, rec model.StagedRestaurant) error
	ListStaged(ctx context.Context) ([]model.StagedRestaurant, error)
	CountStaged(ctx context.Context) (int, error)
	ClearStaged(ctx context.Context) (int64, error)

	// Record mappings (persisted in one batch, all-or-nothing)
	ReplaceMappings(ctx context.Context, mappings []model.RecordMapping) error
	ListMappings(ctx context.Context) ([]model.RecordMapping, error)

	// Dependent collections
	InsertDependents(ctx context.Context, col model.DependentCollection, refs []model.DependentRef) error
	CountDependents(ctx context.Context, col model.DependentCollection) (int, error)
	CountDependentsReferencing(ctx context.Context, col model.DependentCollection, restaurantID string) (int, error)
	RepointDependents(ctx context.Context, col model.DependentCollection, fromID, toID string) (int64, error)

	// Identity backups (matcher candidate source)
	SnapshotIdentities(ctx context.Context) (int64, error)
	ListKnownIdentities(ctx context.Context) ([]model.KnownIdentity, error)

	// Audit log (append-only)
	AppendAudit(ctx context.Context, entry model.MigrationLogEntry) error
	TailAudit(ctx context.Context, limit int) ([]model.MigrationLogEntry, error)

	// Migration phase
	GetPhase(ctx context.Context) (model.Phase, error)
	SetPhase(ctx context.Context, phase model.Phase) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
