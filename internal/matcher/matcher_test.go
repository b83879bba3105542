package matcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/migration-cli/internal/audit"
	"github.com/sells-group/migration-cli/internal/model"
	"github.com/sells-group/migration-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedIdentities(t *testing.T, st *store.SQLiteStore, identities []model.Restaurant) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.InsertRestaurants(ctx, identities))
	_, err := st.SnapshotIdentities(ctx)
	require.NoError(t, err)
}

func stage(t *testing.T, st *store.SQLiteStore, recs ...model.StagedRestaurant) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, st.InsertStaged(context.Background(), r))
	}
}

func TestBestMatchExactNameAndRegion(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	got := m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Golden Duck", Township: "Yangon"}},
		[]model.KnownIdentity{{ID: "k1", Name: "golden duck", Township: "Yangon Township"}},
	)

	assert.Equal(t, model.ConfidenceExact, got.Confidence)
	assert.Equal(t, "k1", got.MatchedID)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
}

func TestBestMatchExactNameMissingRegionUsesDefault(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	got := m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Golden Duck"}},
		[]model.KnownIdentity{{ID: "k1", Name: "Golden Duck", Township: "Yangon"}},
	)

	assert.Equal(t, model.ConfidenceExact, got.Confidence)
	// 0.8*1.0 + 0.2*0.5
	assert.InDelta(t, 0.9, got.Score, 1e-9)
}

func TestBestMatchPartialAcceptedWithRegion(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	// "burger house" vs "burger houze": one edit over twelve runes.
	got := m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Burger House", Township: "Bahan"}},
		[]model.KnownIdentity{{ID: "k1", Name: "Burger Houze", Township: "Bahan"}},
	)

	assert.Equal(t, model.ConfidencePartial, got.Confidence)
	// 0.7*(11/12) + 0.3*1.0
	assert.InDelta(t, 0.7*(11.0/12.0)+0.3, got.Score, 1e-9)
}

func TestBestMatchPartialRejectedBelowTotalThreshold(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	// Same name pair, but neither side has a township: the 0.3 region
	// default drags the total under 0.75.
	got := m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Burger House"}},
		[]model.KnownIdentity{{ID: "k1", Name: "Burger Houze"}},
	)

	assert.Equal(t, model.ConfidenceNone, got.Confidence)
	assert.Empty(t, got.MatchedID)
}

func TestBestMatchPartialBoundary(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	// Twenty runes, three edits: name score exactly 0.85. With no township
	// on either side the total is 0.7*0.85 + 0.3*0.3 = 0.685, just under
	// the 0.75 acceptance threshold.
	got := m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "golden duck downtown"}},
		[]model.KnownIdentity{{ID: "k1", Name: "golden duck downtabc"}},
	)
	assert.Equal(t, model.ConfidenceNone, got.Confidence)

	// The same pair with matching townships scores 0.595 + 0.3 = 0.895 and
	// clears the threshold.
	got = m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "golden duck downtown", Township: "Yangon"}},
		[]model.KnownIdentity{{ID: "k1", Name: "golden duck downtabc", Township: "Yangon"}},
	)
	assert.Equal(t, model.ConfidencePartial, got.Confidence)
	assert.InDelta(t, 0.895, got.Score, 1e-9)
}

func TestBestMatchNoCandidateAboveNameThreshold(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	got := m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Pizza Corner", Township: "Yangon"}},
		[]model.KnownIdentity{{ID: "k1", Name: "Sushi Bar", Township: "Yangon"}},
	)

	assert.Equal(t, model.ConfidenceNone, got.Confidence)
}

func TestBestMatchPrefersHigherScore(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	got := m.bestMatch(
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Golden Duck", Township: "Yangon"}},
		[]model.KnownIdentity{
			// Region default 0.5 scores 0.9; the township match scores 1.0.
			{ID: "far", Name: "Golden Duck"},
			{ID: "near", Name: "Golden Duck", Township: "Yangon"},
		},
	)

	assert.Equal(t, "near", got.MatchedID)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
}

func TestBuildMappingsPersistsAndCounts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedIdentities(t, st, []model.Restaurant{
		{ID: "k1", Name: "Golden Duck", Township: "Yangon"},
		{ID: "k2", Name: "Burger Houze", Township: "Bahan"},
	})
	stage(t, st,
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Golden Duck", Township: "Yangon", AgentID: "a"}},
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s2", Name: "Burger House", Township: "Bahan", AgentID: "a"}},
		model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s3", Name: "Totally New", Township: "Bago", AgentID: "a"}},
	)
	require.NoError(t, st.InsertDependents(ctx, model.Dependents[0], []model.DependentRef{
		{ID: "o1", RestaurantID: "k1"},
		{ID: "o2", RestaurantID: "k1"},
	}))

	stats, err := New(DefaultConfig(), st, audit.NewSink(st)).BuildMappings(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ExactMatches)
	assert.Equal(t, 1, stats.PartialMatches)
	assert.Equal(t, 1, stats.NoMatches)
	assert.Equal(t, 2, stats.DependentCounts["orders"])
	assert.Zero(t, stats.DependentCounts["notes"])

	mappings, err := st.ListMappings(ctx)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	byStaged := map[string]model.RecordMapping{}
	for _, mp := range mappings {
		byStaged[mp.StagedID] = mp
	}
	assert.Equal(t, model.ConfidenceExact, byStaged["s1"].Confidence)
	assert.Equal(t, "k1", byStaged["s1"].MatchedID)
	assert.Equal(t, model.ConfidencePartial, byStaged["s2"].Confidence)
	assert.Equal(t, "k2", byStaged["s2"].MatchedID)
}

func TestBuildMappingsReplacesPreviousRun(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.ReplaceMappings(ctx, []model.RecordMapping{
		{StagedID: "stale", StagedName: "Stale", Confidence: model.ConfidenceExact, Score: 1},
	}))

	seedIdentities(t, st, []model.Restaurant{{ID: "k1", Name: "Golden Duck", Township: "Yangon"}})
	stage(t, st, model.StagedRestaurant{Restaurant: model.Restaurant{ID: "s1", Name: "Golden Duck", Township: "Yangon", AgentID: "a"}})

	_, err := New(DefaultConfig(), st, audit.NewSink(st)).BuildMappings(ctx)
	require.NoError(t, err)

	mappings, err := st.ListMappings(ctx)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "s1", mappings[0].StagedID)
}
