package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/migration-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresGetPhaseDefaultsToUpload(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT phase FROM migration_state`).
		WillReturnError(pgx.ErrNoRows)

	phase, err := st.GetPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PhaseUpload, phase)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetPhase(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO migration_state`).
		WithArgs("staged").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SetPhase(context.Background(), model.PhaseStaged))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteRestaurants(t *testing.T) {
	st, mock := newMockStore(t)

	ids := []string{"a", "b"}
	mock.ExpectExec(`DELETE FROM restaurants WHERE id = ANY`).
		WithArgs(ids).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := st.DeleteRestaurants(context.Background(), ids)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteRestaurantsEmptyIsNoop(t *testing.T) {
	st, mock := newMockStore(t)

	n, err := st.DeleteRestaurants(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepointDependentsWithDiscriminator(t *testing.T) {
	st, mock := newMockStore(t)

	notes := model.Dependents[3]
	require.Equal(t, "notes", notes.Name)

	mock.ExpectExec(`UPDATE notes SET target_id = \$1 WHERE target_id = \$2 AND target_type = \$3`).
		WithArgs("keep", "dup", "restaurant").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := st.RepointDependents(context.Background(), notes, "dup", "keep")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepointDependentsPlain(t *testing.T) {
	st, mock := newMockStore(t)

	orders := model.Dependents[0]
	mock.ExpectExec(`UPDATE orders SET restaurant_id = \$1 WHERE restaurant_id = \$2`).
		WithArgs("keep", "dup").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := st.RepointDependents(context.Background(), orders, "dup", "keep")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListKnownIdentities(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name, township FROM identity_backups`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "township"}).
			AddRow("k1", "Golden Duck", "Yangon").
			AddRow("k2", "Tea House", ""))

	ids, err := st.ListKnownIdentities(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "Golden Duck", ids[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceMappingsTransactional(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM record_mappings`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO record_mappings`).
		WithArgs("s1", "Golden Duck", "k1", "Golden Duck", "exact", 1.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := st.ReplaceMappings(context.Background(), []model.RecordMapping{
		{StagedID: "s1", StagedName: "Golden Duck", MatchedID: "k1", MatchedName: "Golden Duck", Confidence: model.ConfidenceExact, Score: 1.0},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountStaged(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM staging_restaurants`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := st.CountStaged(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
