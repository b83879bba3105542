// Package matcher finds the best-scoring existing identity for every
// staged record and persists the resulting mappings with confidence
// tiers.
package matcher

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/migration-cli/internal/audit"
	"github.com/sells-group/migration-cli/internal/model"
	"github.com/sells-group/migration-cli/internal/normalize"
	"github.com/sells-group/migration-cli/internal/similarity"
	"github.com/sells-group/migration-cli/internal/store"
)

// Config holds the match scoring thresholds and weights.
type Config struct {
	ExactNameWeight       float64 `yaml:"exact_name_weight" mapstructure:"exact_name_weight"`
	ExactRegionWeight     float64 `yaml:"exact_region_weight" mapstructure:"exact_region_weight"`
	ExactRegionDefault    float64 `yaml:"exact_region_default" mapstructure:"exact_region_default"`
	PartialNameThreshold  float64 `yaml:"partial_name_threshold" mapstructure:"partial_name_threshold"`
	PartialNameWeight     float64 `yaml:"partial_name_weight" mapstructure:"partial_name_weight"`
	PartialRegionWeight   float64 `yaml:"partial_region_weight" mapstructure:"partial_region_weight"`
	PartialRegionDefault  float64 `yaml:"partial_region_default" mapstructure:"partial_region_default"`
	PartialTotalThreshold float64 `yaml:"partial_total_threshold" mapstructure:"partial_total_threshold"`
	Concurrency           int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultConfig returns the standard scoring parameters.
func DefaultConfig() Config {
	return Config{
		ExactNameWeight:       0.8,
		ExactRegionWeight:     0.2,
		ExactRegionDefault:    0.5,
		PartialNameThreshold:  0.8,
		PartialNameWeight:     0.7,
		PartialRegionWeight:   0.3,
		PartialRegionDefault:  0.3,
		PartialTotalThreshold: 0.75,
		Concurrency:           4,
	}
}

// Matcher maps staged records to known identities.
type Matcher struct {
	cfg   Config
	store store.Store
	audit *audit.Sink
}

// New creates a Matcher.
func New(cfg Config, st store.Store, sink *audit.Sink) *Matcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Matcher{cfg: cfg, store: st, audit: sink}
}

// BuildMappings scores every staged record against the known identities,
// keeps the best mapping per record, persists all non-none mappings in
// one batch, and returns the run statistics. A persistence failure
// aborts the phase with no partial mapping writes.
func (m *Matcher) BuildMappings(ctx context.Context) (*model.MappingStats, error) {
	staged, err := m.store.ListStaged(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: load staged records")
	}
	candidates, err := m.store.ListKnownIdentities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: load known identities")
	}

	// Per-record scoring is pure and independent, so the scan fans out.
	results := make([]model.RecordMapping, len(staged))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, rec := range staged {
		g.Go(func() error {
			results[i] = m.bestMatch(rec, candidates)
			return nil
		})
	}
	_ = g.Wait()

	stats := &model.MappingStats{Total: len(staged)}
	var mappings []model.RecordMapping
	for _, r := range results {
		switch r.Confidence {
		case model.ConfidenceExact:
			stats.ExactMatches++
			mappings = append(mappings, r)
		case model.ConfidencePartial:
			stats.PartialMatches++
			mappings = append(mappings, r)
		default:
			stats.NoMatches++
		}
	}

	if err := m.store.ReplaceMappings(ctx, mappings); err != nil {
		return nil, eris.Wrap(err, "matcher: persist mappings")
	}

	stats.DependentCounts = make(map[string]int, len(model.Dependents))
	for _, col := range model.Dependents {
		n, err := m.store.CountDependents(ctx, col)
		if err != nil {
			return nil, eris.Wrapf(err, "matcher: count %s", col.Name)
		}
		stats.DependentCounts[col.Name] = n
	}

	zap.L().Info("matcher: pass complete",
		zap.Int("total", stats.Total),
		zap.Int("exact", stats.ExactMatches),
		zap.Int("partial", stats.PartialMatches),
		zap.Int("none", stats.NoMatches),
	)

	if err := m.audit.Record(ctx, "build_mappings", "record_mappings", len(mappings), map[string]any{
		"total":            stats.Total,
		"exact":            stats.ExactMatches,
		"partial":          stats.PartialMatches,
		"none":             stats.NoMatches,
		"dependent_counts": stats.DependentCounts,
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

// bestMatch scores one staged record against every candidate and keeps
// the single best mapping.
func (m *Matcher) bestMatch(rec model.StagedRestaurant, candidates []model.KnownIdentity) model.RecordMapping {
	best := model.RecordMapping{
		StagedID:   rec.ID,
		StagedName: rec.Name,
		Confidence: model.ConfidenceNone,
	}

	stagedName := normalize.Text(rec.Name)
	stagedRegion := normalize.Township(rec.Township)
	if stagedName == "" {
		return best
	}

	for _, c := range candidates {
		candName := normalize.Text(c.Name)
		if candName == "" {
			continue
		}
		nameScore := similarity.Ratio(stagedName, candName)

		switch {
		case nameScore == 1.0:
			regionScore := m.cfg.ExactRegionDefault
			if candRegion := normalize.Township(c.Township); stagedRegion != "" && candRegion != "" {
				regionScore = similarity.Ratio(stagedRegion, candRegion)
			}
			total := similarity.Composite([]similarity.WeightedPair{
				{Weight: m.cfg.ExactNameWeight, Score: nameScore},
				{Weight: m.cfg.ExactRegionWeight, Score: regionScore},
			})
			if total > best.Score {
				best.MatchedID = c.ID
				best.MatchedName = c.Name
				best.Confidence = model.ConfidenceExact
				best.Score = total
			}

		case nameScore >= m.cfg.PartialNameThreshold:
			regionScore := m.cfg.PartialRegionDefault
			if candRegion := normalize.Township(c.Township); stagedRegion != "" && candRegion != "" {
				regionScore = similarity.Ratio(stagedRegion, candRegion)
			}
			total := similarity.Composite([]similarity.WeightedPair{
				{Weight: m.cfg.PartialNameWeight, Score: nameScore},
				{Weight: m.cfg.PartialRegionWeight, Score: regionScore},
			})
			if total >= m.cfg.PartialTotalThreshold && total > best.Score {
				best.MatchedID = c.ID
				best.MatchedName = c.Name
				best.Confidence = model.ConfidencePartial
				best.Score = total
			}
		}
	}
	return best
}
