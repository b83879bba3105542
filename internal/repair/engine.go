// Package repair repoints dependent-collection foreign keys from
// superseded restaurant ids to a canonical id, then deletes the
// superseded records. The delete only ever fires for ids whose
// repointing succeeded across every dependent collection.
package repair

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/migration-cli/internal/audit"
	"github.com/sells-group/migration-cli/internal/model"
	"github.com/sells-group/migration-cli/internal/store"
)

// Config tunes the repair engine.
type Config struct {
	// Concurrency bounds the per-collection repoint fan-out for a single
	// removed id. The collections are independent, so they may run in
	// parallel; the delete step always waits for all of them.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// OpsPerSec rate-limits mutation calls against the hosted backend.
	// Zero means unlimited.
	OpsPerSec float64 `yaml:"ops_per_sec" mapstructure:"ops_per_sec"`
}

// DefaultConfig returns the standard repair parameters.
func DefaultConfig() Config {
	return Config{Concurrency: 4}
}

// Engine performs reference repair merges.
type Engine struct {
	cfg     Config
	store   store.Store
	audit   *audit.Sink
	limiter *rate.Limiter
}

// New creates an Engine.
func New(cfg Config, st store.Store, sink *audit.Sink) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.OpsPerSec > 0 {
		burst := int(cfg.OpsPerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.OpsPerSec), burst)
	}
	return &Engine{cfg: cfg, store: st, audit: sink, limiter: limiter}
}

// Merge repoints every dependent collection's references from each id in
// removeIDs to keepID, then deletes the fully-repointed ids in one batch.
//
// Removed ids are processed sequentially for simple failure attribution;
// within one id the seven collections repoint concurrently with a
// blocking join before the delete decision. A repoint failure withholds
// that id from deletion but never aborts the rest of the batch.
// Repointing an already-correct reference is a no-op, so retrying a
// whole merge is always safe.
func (e *Engine) Merge(ctx context.Context, keepID string, removeIDs []string) (*model.MergeResult, error) {
	if keepID == "" {
		return nil, eris.New("repair: keep id is empty")
	}

	result := &model.MergeResult{
		KeepID:    keepID,
		Repointed: make(map[string]int64),
	}

	var mu sync.Mutex
	for _, removeID := range removeIDs {
		if removeID == "" || removeID == keepID {
			continue
		}

		var failures []model.MergeFailure
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Concurrency)
		for _, col := range model.Dependents {
			g.Go(func() error {
				if err := e.limiter.Wait(gctx); err != nil {
					mu.Lock()
					failures = append(failures, model.MergeFailure{
						RemoveID:   removeID,
						Collection: col.Name,
						Reason:     err.Error(),
					})
					mu.Unlock()
					return nil
				}
				n, err := e.store.RepointDependents(gctx, col, removeID, keepID)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, model.MergeFailure{
						RemoveID:   removeID,
						Collection: col.Name,
						Reason:     err.Error(),
					})
					return nil
				}
				result.Repointed[col.Name] += n
				return nil
			})
		}
		// Blocking join: the delete decision for this id waits for every
		// collection's repoint to be confirmed.
		_ = g.Wait()

		if len(failures) > 0 {
			result.Failures = append(result.Failures, failures...)
			zap.L().Warn("repair: repoint incomplete, withholding delete",
				zap.String("remove_id", removeID),
				zap.Int("failures", len(failures)),
			)
			continue
		}
		result.Merged = append(result.Merged, removeID)
	}

	if len(result.Merged) > 0 {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "repair: rate limit delete")
		}
		if _, err := e.store.DeleteRestaurants(ctx, result.Merged); err != nil {
			return nil, eris.Wrap(err, "repair: delete merged records")
		}
	}

	if err := e.audit.Record(ctx, "merge_records", "restaurants", len(result.Merged), map[string]any{
		"keep_id":   keepID,
		"requested": len(removeIDs),
		"merged":    len(result.Merged),
		"failures":  len(result.Failures),
		"repointed": result.Repointed,
	}); err != nil {
		return nil, err
	}
	return result, nil
}
