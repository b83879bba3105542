// Package migration sequences the import → detect/map → repair → replace
// workflow. The orchestrator is the only component aware of phase
// ordering; it is single-flight by design — one migration run at a time.
package migration

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/migration-cli/internal/audit"
	"github.com/sells-group/migration-cli/internal/dedupe"
	"github.com/sells-group/migration-cli/internal/importer"
	"github.com/sells-group/migration-cli/internal/matcher"
	"github.com/sells-group/migration-cli/internal/model"
	"github.com/sells-group/migration-cli/internal/repair"
	"github.com/sells-group/migration-cli/internal/store"
)

// ErrInvalidPhase is returned when an operator triggers a transition from
// the wrong phase. The operation is rejected with no side effects.
var ErrInvalidPhase = eris.New("migration: operation not valid in current phase")

// Orchestrator drives the migration state machine.
type Orchestrator struct {
	store     store.Store
	stager    *importer.Stager
	detector  *dedupe.Detector
	matcher   *matcher.Matcher
	repair    *repair.Engine
	audit     *audit.Sink
	delimiter rune

	mu     sync.Mutex
	parsed []importer.ParsedRecord
	source string
}

// New creates an Orchestrator.
func New(
	st store.Store,
	stager *importer.Stager,
	detector *dedupe.Detector,
	m *matcher.Matcher,
	engine *repair.Engine,
	sink *audit.Sink,
	delimiter rune,
) *Orchestrator {
	if delimiter == 0 {
		delimiter = ','
	}
	return &Orchestrator{
		store:     st,
		stager:    stager,
		detector:  detector,
		matcher:   m,
		repair:    engine,
		audit:     sink,
		delimiter: delimiter,
	}
}

// Phase returns the persisted state machine position.
func (o *Orchestrator) Phase(ctx context.Context) (model.Phase, error) {
	return o.store.GetPhase(ctx)
}

// ImportBatch parses delimited text into candidate records and advances
// upload → preview. Zero parsed records is a terminal validation failure
// back to upload.
func (o *Orchestrator) ImportBatch(ctx context.Context, raw, source string) ([]importer.ParsedRecord, error) {
	parsed := importer.Parse(raw, o.delimiter)
	return o.acceptParsed(ctx, parsed, source)
}

// ImportWorkbook is ImportBatch for an XLSX workbook on disk.
func (o *Orchestrator) ImportWorkbook(ctx context.Context, path string) ([]importer.ParsedRecord, error) {
	parsed, err := importer.ParseWorkbook(path)
	if err != nil {
		return nil, err
	}
	return o.acceptParsed(ctx, parsed, path)
}

func (o *Orchestrator) acceptParsed(ctx context.Context, parsed []importer.ParsedRecord, source string) ([]importer.ParsedRecord, error) {
	if len(parsed) == 0 {
		if err := o.store.SetPhase(ctx, model.PhaseUpload); err != nil {
			return nil, err
		}
		return nil, eris.New("migration: input yielded no records")
	}

	o.mu.Lock()
	o.parsed = parsed
	o.source = source
	o.mu.Unlock()

	if err := o.store.SetPhase(ctx, model.PhasePreview); err != nil {
		return nil, err
	}
	if err := o.audit.Record(ctx, "import_parsed", "staging_restaurants", len(parsed), map[string]any{
		"source": source,
	}); err != nil {
		return nil, err
	}
	return parsed, nil
}

// PreviewParsed returns the records parsed by the last import.
func (o *Orchestrator) PreviewParsed() []importer.ParsedRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]importer.ParsedRecord, len(o.parsed))
	copy(out, o.parsed)
	return out
}

// StageAll writes the parsed records into the staging area and advances
// preview → staged. Per-row errors do not block the transition as long
// as at least one record staged.
func (o *Orchestrator) StageAll(ctx context.Context) (*model.StageResult, error) {
	if err := o.requirePhase(ctx, model.PhasePreview); err != nil {
		return nil, err
	}

	o.mu.Lock()
	parsed := o.parsed
	source := o.source
	o.mu.Unlock()

	result, err := o.stager.StageAll(ctx, parsed, source)
	if err != nil {
		return nil, err
	}
	if result.Imported == 0 {
		return result, eris.New("migration: staging imported no records")
	}
	if err := o.store.SetPhase(ctx, model.PhaseStaged); err != nil {
		return result, err
	}
	return result, nil
}

// DetectDuplicates scans the live population. Read-only; allowed in any
// phase.
func (o *Orchestrator) DetectDuplicates(ctx context.Context) (*model.DedupeReport, error) {
	return o.detector.Detect(ctx)
}

// AutoRemoveExactDuplicates merges every exact duplicate group into its
// canonical member via the repair engine.
func (o *Orchestrator) AutoRemoveExactDuplicates(ctx context.Context) (*model.AutoRemoveResult, error) {
	return o.detector.AutoRemove(ctx, o.repair)
}

// BuildMappings runs the full matcher pass and advances staged → mapped.
// The transition happens on successful completion regardless of match
// outcomes; all-none is a valid terminal mapping result.
func (o *Orchestrator) BuildMappings(ctx context.Context) (*model.MappingStats, error) {
	if err := o.requirePhase(ctx, model.PhaseStaged); err != nil {
		return nil, err
	}

	// The matcher scores against the identity backups. On the first run
	// the backup table is empty, so seed it from the live population.
	ids, err := o.store.ListKnownIdentities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "migration: load identities")
	}
	if len(ids) == 0 {
		if _, err := o.store.SnapshotIdentities(ctx); err != nil {
			return nil, eris.Wrap(err, "migration: seed identity backups")
		}
	}

	stats, err := o.matcher.BuildMappings(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.store.SetPhase(ctx, model.PhaseMapped); err != nil {
		return stats, err
	}
	return stats, nil
}

// ExecuteCutover performs the wholesale replacement: snapshot identities,
// delete the entire live population, promote every staged record as a new
// canonical restaurant, and clear staging. Mapped → executed. This is a
// cut-over, not a merge; the mappings computed earlier exist to drive any
// explicit Merge calls the operator chooses to run.
func (o *Orchestrator) ExecuteCutover(ctx context.Context) (*model.CutoverResult, error) {
	if err := o.requirePhase(ctx, model.PhaseMapped); err != nil {
		return nil, err
	}

	staged, err := o.store.ListStaged(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "migration: load staged records")
	}
	if len(staged) == 0 {
		return nil, eris.New("migration: staging area is empty")
	}

	if _, err := o.store.SnapshotIdentities(ctx); err != nil {
		return nil, eris.Wrap(err, "migration: snapshot identities")
	}

	deleted, err := o.store.DeleteAllRestaurants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "migration: delete population")
	}

	promoted := make([]model.Restaurant, len(staged))
	for i, s := range staged {
		promoted[i] = s.Restaurant
	}
	if err := o.store.InsertRestaurants(ctx, promoted); err != nil {
		return nil, eris.Wrap(err, "migration: promote staged records")
	}

	if _, err := o.store.ClearStaged(ctx); err != nil {
		return nil, eris.Wrap(err, "migration: clear staging")
	}
	if err := o.store.SetPhase(ctx, model.PhaseExecuted); err != nil {
		return nil, err
	}

	if err := o.audit.Record(ctx, "execute_cutover", "restaurants", len(promoted), map[string]any{
		"deleted":  deleted,
		"inserted": len(promoted),
	}); err != nil {
		return nil, err
	}

	zap.L().Info("migration: cutover complete",
		zap.Int64("deleted", deleted),
		zap.Int("inserted", len(promoted)),
	)
	return &model.CutoverResult{
		Success:  true,
		Deleted:  deleted,
		Inserted: len(promoted),
		Message:  fmt.Sprintf("replaced %d records with %d staged records", deleted, len(promoted)),
	}, nil
}

// Merge is the explicit reference-repair operation: repoint every
// dependent collection from the removed ids to keepID, then delete the
// fully-repointed ids.
func (o *Orchestrator) Merge(ctx context.Context, keepID string, removeIDs []string) (*model.MergeResult, error) {
	return o.repair.Merge(ctx, keepID, removeIDs)
}

// Status summarizes the run for the operator surface.
type Status struct {
	Phase       model.Phase               `json:"phase"`
	Restaurants int                       `json:"restaurants"`
	Staged      int                       `json:"staged"`
	Mappings    int                       `json:"mappings"`
	AuditTail   []model.MigrationLogEntry `json:"audit_tail,omitempty"`
}

// Status reports the current phase, collection counts, and recent audit
// entries.
func (o *Orchestrator) Status(ctx context.Context, auditLimit int) (*Status, error) {
	phase, err := o.store.GetPhase(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "migration: read phase")
	}
	restaurants, err := o.store.ListRestaurants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "migration: list restaurants")
	}
	staged, err := o.store.CountStaged(ctx)
	if err != nil {
		return nil, err
	}
	mappings, err := o.store.ListMappings(ctx)
	if err != nil {
		return nil, err
	}
	tail, err := o.store.TailAudit(ctx, auditLimit)
	if err != nil {
		return nil, err
	}
	return &Status{
		Phase:       phase,
		Restaurants: len(restaurants),
		Staged:      staged,
		Mappings:    len(mappings),
		AuditTail:   tail,
	}, nil
}

func (o *Orchestrator) requirePhase(ctx context.Context, want model.Phase) error {
	got, err := o.store.GetPhase(ctx)
	if err != nil {
		return eris.Wrap(err, "migration: read phase")
	}
	if got != want {
		return eris.Wrapf(ErrInvalidPhase, "requires phase %q, currently %q", want, got)
	}
	return nil
}
