package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/migration-cli/internal/model"
)

// Pool is the minimal pgx pool surface the store uses. Satisfied by both
// *pgxpool.Pool and pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS restaurants (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	township       TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	contact_person TEXT NOT NULL DEFAULT '',
	remark         TEXT NOT NULL DEFAULT '',
	agent_id       TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS staging_restaurants (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	township       TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	contact_person TEXT NOT NULL DEFAULT '',
	remark         TEXT NOT NULL DEFAULT '',
	agent_id       TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS record_mappings (
	staged_id    TEXT PRIMARY KEY,
	staged_name  TEXT NOT NULL,
	matched_id   TEXT NOT NULL DEFAULT '',
	matched_name TEXT NOT NULL DEFAULT '',
	confidence   TEXT NOT NULL,
	score        DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS identity_backups (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	township TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS migration_log (
	id           TEXT PRIMARY KEY,
	action       TEXT NOT NULL,
	collection   TEXT NOT NULL,
	record_count INTEGER NOT NULL,
	details      JSONB,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS migration_state (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	phase TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders      (id TEXT PRIMARY KEY, restaurant_id TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS leads       (id TEXT PRIMARY KEY, restaurant_id TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS visits      (id TEXT PRIMARY KEY, restaurant_id TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS notes       (id TEXT PRIMARY KEY, target_id TEXT NOT NULL, target_type TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS meetings    (id TEXT PRIMARY KEY, restaurant_id TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS calls       (id TEXT PRIMARY KEY, restaurant_id TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS voice_memos (id TEXT PRIMARY KEY, restaurant_id TEXT NOT NULL);

CREATE INDEX IF NOT EXISTS idx_restaurants_name ON restaurants(name);
CREATE INDEX IF NOT EXISTS idx_orders_restaurant ON orders(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_leads_restaurant ON leads(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_visits_restaurant ON visits(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_notes_target ON notes(target_id, target_type);
CREATE INDEX IF NOT EXISTS idx_meetings_restaurant ON meetings(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_calls_restaurant ON calls(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_voice_memos_restaurant ON voice_memos(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_migration_log_created ON migration_log(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Restaurants ---

func (s *PostgresStore) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list restaurants")
	}
	defer rows.Close()

	var out []model.Restaurant
	for rows.Next() {
		var r model.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Township, &r.Address, &r.Phone,
			&r.ContactPerson, &r.Remark, &r.AgentID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan restaurant")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate restaurants")
}

func (s *PostgresStore) InsertRestaurants(ctx context.Context, records []model.Restaurant) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert restaurants")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO restaurants (`+restaurantColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.ID, r.Name, r.Township, r.Address, r.Phone,
			r.ContactPerson, r.Remark, r.AgentID, r.CreatedAt); err != nil {
			return eris.Wrapf(err, "postgres: insert restaurant %s", r.Name)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert restaurants")
}

func (s *PostgresStore) DeleteRestaurants(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM restaurants WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete restaurants")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteAllRestaurants(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM restaurants`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete all restaurants")
	}
	return tag.RowsAffected(), nil
}

// --- Staging ---

func (s *PostgresStore) InsertStaged(ctx context.Context, rec model.StagedRestaurant) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO staging_restaurants (id, name, township, address, phone, contact_person, remark, agent_id, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Name, rec.Township, rec.Address, rec.Phone,
		rec.ContactPerson, rec.Remark, rec.AgentID, rec.Source, rec.CreatedAt)
	return eris.Wrapf(err, "postgres: insert staged %s", rec.Name)
}

func (s *PostgresStore) ListStaged(ctx context.Context) ([]model.StagedRestaurant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, township, address, phone, contact_person, remark, agent_id, source, created_at
		 FROM staging_restaurants ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list staged")
	}
	defer rows.Close()

	var out []model.StagedRestaurant
	for rows.Next() {
		var r model.StagedRestaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Township, &r.Address, &r.Phone,
			&r.ContactPerson, &r.Remark, &r.AgentID, &r.Source, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan staged")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate staged")
}

func (s *PostgresStore) CountStaged(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staging_restaurants`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count staged")
}

func (s *PostgresStore) ClearStaged(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM staging_restaurants`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear staged")
	}
	return tag.RowsAffected(), nil
}

// --- Mappings ---

func (s *PostgresStore) ReplaceMappings(ctx context.Context, mappings []model.RecordMapping) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace mappings")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM record_mappings`); err != nil {
		return eris.Wrap(err, "postgres: clear mappings")
	}
	for _, m := range mappings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO record_mappings (staged_id, staged_name, matched_id, matched_name, confidence, score)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.StagedID, m.StagedName, m.MatchedID, m.MatchedName,
			string(m.Confidence), m.Score); err != nil {
			return eris.Wrapf(err, "postgres: insert mapping %s", m.StagedName)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit mappings")
}

func (s *PostgresStore) ListMappings(ctx context.Context) ([]model.RecordMapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT staged_id, staged_name, matched_id, matched_name, confidence, score
		 FROM record_mappings ORDER BY staged_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mappings")
	}
	defer rows.Close()

	var out []model.RecordMapping
	for rows.Next() {
		var m model.RecordMapping
		var confidence string
		if err := rows.Scan(&m.StagedID, &m.StagedName, &m.MatchedID,
			&m.MatchedName, &confidence, &m.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		m.Confidence = model.Confidence(confidence)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate mappings")
}

// --- Dependents ---

func (s *PostgresStore) InsertDependents(ctx context.Context, col model.DependentCollection, refs []model.DependentRef) error {
	for _, ref := range refs {
		if ref.ID == "" {
			ref.ID = uuid.New().String()
		}
		var err error
		if col.Discriminator != nil {
			targetType := ref.TargetType
			if targetType == "" {
				targetType = col.Discriminator.Value
			}
			_, err = s.pool.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, %s, %s) VALUES ($1, $2, $3)`,
					col.Name, col.ForeignKey, col.Discriminator.Column),
				ref.ID, ref.RestaurantID, targetType)
		} else {
			_, err = s.pool.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, %s) VALUES ($1, $2)`, col.Name, col.ForeignKey),
				ref.ID, ref.RestaurantID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: insert %s dependent", col.Name)
		}
	}
	return nil
}

func (s *PostgresStore) CountDependents(ctx context.Context, col model.DependentCollection) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, col.Name)
	var args []any
	if col.Discriminator != nil {
		query += fmt.Sprintf(` WHERE %s = $1`, col.Discriminator.Column)
		args = append(args, col.Discriminator.Value)
	}
	var n int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count %s", col.Name)
}

func (s *PostgresStore) CountDependentsReferencing(ctx context.Context, col model.DependentCollection, restaurantID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, col.Name, col.ForeignKey)
	args := []any{restaurantID}
	if col.Discriminator != nil {
		query += fmt.Sprintf(` AND %s = $2`, col.Discriminator.Column)
		args = append(args, col.Discriminator.Value)
	}
	var n int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count %s referencing %s", col.Name, restaurantID)
}

func (s *PostgresStore) RepointDependents(ctx context.Context, col model.DependentCollection, fromID, toID string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, col.Name, col.ForeignKey, col.ForeignKey)
	args := []any{toID, fromID}
	if col.Discriminator != nil {
		query += fmt.Sprintf(` AND %s = $3`, col.Discriminator.Column)
		args = append(args, col.Discriminator.Value)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: repoint %s from %s", col.Name, fromID)
	}
	return tag.RowsAffected(), nil
}

// --- Identity backups ---

func (s *PostgresStore) SnapshotIdentities(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO identity_backups (id, name, township)
		 SELECT id, name, township FROM restaurants WHERE name != ''
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, township = EXCLUDED.township`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: snapshot identities")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListKnownIdentities(ctx context.Context) ([]model.KnownIdentity, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, township FROM identity_backups ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list identities")
	}
	defer rows.Close()

	var out []model.KnownIdentity
	for rows.Next() {
		var k model.KnownIdentity
		if err := rows.Scan(&k.ID, &k.Name, &k.Township); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identity")
		}
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate identities")
}

// --- Audit log ---

func (s *PostgresStore) AppendAudit(ctx context.Context, entry model.MigrationLogEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit details")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO migration_log (id, action, collection, record_count, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), entry.Action, entry.Collection, entry.Count, details, entry.Timestamp)
	return eris.Wrapf(err, "postgres: append audit %s", entry.Action)
}

func (s *PostgresStore) TailAudit(ctx context.Context, limit int) ([]model.MigrationLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT action, collection, record_count, details, created_at
		 FROM migration_log ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: tail audit")
	}
	defer rows.Close()

	var out []model.MigrationLogEntry
	for rows.Next() {
		var e model.MigrationLogEntry
		var details []byte
		if err := rows.Scan(&e.Action, &e.Collection, &e.Count, &details, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		if len(details) > 0 && string(details) != "null" {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal audit details")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate audit")
}

// --- Phase ---

func (s *PostgresStore) GetPhase(ctx context.Context) (model.Phase, error) {
	var phase string
	err := s.pool.QueryRow(ctx, `SELECT phase FROM migration_state WHERE id = 1`).Scan(&phase)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PhaseUpload, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: get phase")
	}
	return model.Phase(phase), nil
}

func (s *PostgresStore) SetPhase(ctx context.Context, phase model.Phase) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO migration_state (id, phase) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET phase = EXCLUDED.phase`, string(phase))
	return eris.Wrapf(err, "postgres: set phase %s", phase)
}
