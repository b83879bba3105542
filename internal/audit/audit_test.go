package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/migration-cli/internal/store"
)

func TestSinkRecord(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	sink := NewSink(st)
	require.NoError(t, sink.Record(ctx, "stage_import", "staging_restaurants", 5, map[string]any{
		"source": "batch.csv",
	}))

	entries, err := st.TailAudit(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stage_import", entries[0].Action)
	assert.Equal(t, "staging_restaurants", entries[0].Collection)
	assert.Equal(t, 5, entries[0].Count)
	assert.Equal(t, "batch.csv", entries[0].Details["source"])
	assert.False(t, entries[0].Timestamp.IsZero())
}
