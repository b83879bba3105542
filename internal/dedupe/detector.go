// Package dedupe scans the live restaurant population for duplicate
// records: exact duplicates that can be removed automatically and
// similar "chain" groups that need human review.
package dedupe

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/migration-cli/internal/audit"
	"github.com/sells-group/migration-cli/internal/model"
	"github.com/sells-group/migration-cli/internal/normalize"
	"github.com/sells-group/migration-cli/internal/store"
)

// Merger resolves a duplicate group by repointing dependents and deleting
// the superseded records. Implemented by the repair engine.
type Merger interface {
	Merge(ctx context.Context, keepID string, removeIDs []string) (*model.MergeResult, error)
}

// Detector finds duplicate groups in the current population.
type Detector struct {
	store store.Store
	audit *audit.Sink
}

// New creates a Detector.
func New(st store.Store, sink *audit.Sink) *Detector {
	return &Detector{store: st, audit: sink}
}

type exactKey struct {
	name     string
	township string
	phone    string
}

type chainKey struct {
	name     string
	township string
}

// Detect runs the two-phase scan. A store read failure aborts the whole
// pass; no partial group list is returned.
func (d *Detector) Detect(ctx context.Context) (*model.DedupeReport, error) {
	records, err := d.store.ListRestaurants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: load population")
	}

	report := &model.DedupeReport{}
	report.Stats.RecordsScanned = len(records)

	// Phase A: exact groups on (name, township, phone). Records missing
	// any of the three cannot be exactly keyed and are excluded here.
	exact := make(map[exactKey][]model.Restaurant)
	for _, r := range records {
		k := exactKey{
			name:     normalize.Text(r.Name),
			township: normalize.Township(r.Township),
			phone:    normalize.Phone(r.Phone),
		}
		if k.name == "" || k.township == "" || k.phone == "" {
			continue
		}
		exact[k] = append(exact[k], r)
	}

	inExact := make(map[string]bool)
	for _, k := range sortedExactKeys(exact) {
		members := exact[k]
		if len(members) < 2 {
			continue
		}
		sortByCompletenessThenAge(members)
		for _, m := range members {
			inExact[m.ID] = true
		}
		report.Groups = append(report.Groups, model.DuplicateGroup{
			Kind:          model.DuplicateExact,
			Members:       members,
			Reason:        fmt.Sprintf("identical normalized name, township, and phone (%s / %s / %s)", k.name, k.township, k.phone),
			AutoRemovable: true,
		})
		report.Stats.ExactGroups++
		report.Stats.ExactRemovable += len(members) - 1
	}

	// Phase B: among records not already in an exact group, group by
	// (name, township) and sub-partition by phone. More than one distinct
	// phone means a multi-branch chain: flagged, never auto-merged.
	chains := make(map[chainKey][]model.Restaurant)
	for _, r := range records {
		if inExact[r.ID] {
			continue
		}
		k := chainKey{name: normalize.Text(r.Name), township: normalize.Township(r.Township)}
		if k.name == "" {
			continue
		}
		chains[k] = append(chains[k], r)
	}

	for _, k := range sortedChainKeys(chains) {
		members := chains[k]
		if len(members) < 2 {
			continue
		}
		phones := make(map[string]bool)
		for _, m := range members {
			phones[normalize.Phone(m.Phone)] = true
		}
		if len(phones) < 2 {
			continue
		}
		sortByCompletenessThenAge(members)
		report.Groups = append(report.Groups, model.DuplicateGroup{
			Kind:          model.DuplicateSimilar,
			Members:       members,
			Reason:        fmt.Sprintf("same name and township with %d distinct phone numbers", len(phones)),
			AutoRemovable: false,
		})
		report.Stats.SimilarGroups++
		report.Stats.SimilarRecords += len(members)
	}

	report.Stats.TotalRemovable = report.Stats.ExactRemovable

	zap.L().Info("dedupe: detection complete",
		zap.Int("scanned", report.Stats.RecordsScanned),
		zap.Int("exact_groups", report.Stats.ExactGroups),
		zap.Int("similar_groups", report.Stats.SimilarGroups),
		zap.Int("removable", report.Stats.TotalRemovable),
	)
	return report, nil
}

// AutoRemove resolves every exact group: the most complete (oldest on tie)
// member is kept and the rest are merged into it. Similar groups are never
// touched.
func (d *Detector) AutoRemove(ctx context.Context, merger Merger) (*model.AutoRemoveResult, error) {
	report, err := d.Detect(ctx)
	if err != nil {
		return nil, err
	}

	removed := 0
	failed := 0
	for _, g := range report.Groups {
		if !g.AutoRemovable {
			continue
		}
		keep := g.Members[0]
		removeIDs := make([]string, 0, len(g.Members)-1)
		for _, m := range g.Members[1:] {
			removeIDs = append(removeIDs, m.ID)
		}
		res, err := merger.Merge(ctx, keep.ID, removeIDs)
		if err != nil {
			return nil, eris.Wrapf(err, "dedupe: merge group into %s", keep.ID)
		}
		removed += len(res.Merged)
		failed += len(res.Failures)
	}

	msg := fmt.Sprintf("removed %d exact duplicates across %d groups", removed, report.Stats.ExactGroups)
	if failed > 0 {
		msg = fmt.Sprintf("%s (%d repoint failures, records kept)", msg, failed)
	}

	if err := d.audit.Record(ctx, "dedupe_auto_remove", "restaurants", removed, map[string]any{
		"exact_groups":     report.Stats.ExactGroups,
		"repoint_failures": failed,
	}); err != nil {
		return nil, err
	}

	return &model.AutoRemoveResult{Removed: removed, Message: msg}, nil
}

// sortByCompletenessThenAge orders members most-complete first, oldest on
// tie. The first element becomes the canonical record.
func sortByCompletenessThenAge(members []model.Restaurant) {
	sort.SliceStable(members, func(i, j int) bool {
		ci, cj := members[i].Completeness(), members[j].Completeness()
		if ci != cj {
			return ci > cj
		}
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})
}

func sortedExactKeys(m map[exactKey][]model.Restaurant) []exactKey {
	keys := make([]exactKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		if keys[i].township != keys[j].township {
			return keys[i].township < keys[j].township
		}
		return keys[i].phone < keys[j].phone
	})
	return keys
}

func sortedChainKeys(m map[chainKey][]model.Restaurant) []chainKey {
	keys := make([]chainKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].township < keys[j].township
	})
	return keys
}
