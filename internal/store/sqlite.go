package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/migration-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Dependent tables carry only the columns the engine touches; the hosted
// backend holds the rest of each collection's fields.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS restaurants (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	township       TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	contact_person TEXT NOT NULL DEFAULT '',
	remark         TEXT NOT NULL DEFAULT '',
	agent_id       TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS record_mappings (
	staged_id    TEXT PRIMARY KEY,
	staged_name  TEXT NOT NULL,
	matched_id   TEXT NOT NULL DEFAULT '',
	matched_name TEXT NOT NULL DEFAULT '',
	confidence   TEXT NOT NULL,
	score        REAL NOT NULL
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
	details      TEXT,
	created_at   DATETIME NOT NULL
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Restaurants ---

const restaurantColumns = `id, name, township, address, phone, contact_person, remark, agent_id, created_at`

func (s *SQLiteStore) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list restaurants")
	}
	defer rows.Close()

	var out []model.Restaurant
	for rows.Next() {
		var r model.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Township, &r.Address, &r.Phone,
			&r.ContactPerson, &r.Remark, &r.AgentID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan restaurant")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate restaurants")
}

func (s *SQLiteStore) InsertRestaurants(ctx context.Context, records []model.Restaurant) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert restaurants")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO restaurants (`+restaurantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert restaurant")
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Township, r.Address,
			r.Phone, r.ContactPerson, r.Remark, r.AgentID, r.CreatedAt); err != nil {
			return eris.Wrapf(err, "sqlite: insert restaurant %s", r.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert restaurants")
}

func (s *SQLiteStore) DeleteRestaurants(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM restaurants WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete restaurants")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) DeleteAllRestaurants(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM restaurants`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete all restaurants")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Staging ---

func (s *SQLiteStore) InsertStaged(ctx context.Context, rec model.StagedRestaurant) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staging_restaurants (id, name, township, address, phone, contact_person, remark, agent_id, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Township, rec.Address, rec.Phone,
		rec.ContactPerson, rec.Remark, rec.AgentID, rec.Source, rec.CreatedAt)
	return eris.Wrapf(err, "sqlite: insert staged %s", rec.Name)
}

func (s *SQLiteStore) ListStaged(ctx context.Context) ([]model.StagedRestaurant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, township, address, phone, contact_person, remark, agent_id, source, created_at
		 FROM staging_restaurants ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list staged")
	}
	defer rows.Close()

	var out []model.StagedRestaurant
	for rows.Next() {
		var r model.StagedRestaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Township, &r.Address, &r.Phone,
			&r.ContactPerson, &r.Remark, &r.AgentID, &r.Source, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan staged")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate staged")
}

func (s *SQLiteStore) CountStaged(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staging_restaurants`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count staged")
}

func (s *SQLiteStore) ClearStaged(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staging_restaurants`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear staged")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Mappings ---

func (s *SQLiteStore) ReplaceMappings(ctx context.Context, mappings []model.RecordMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace mappings")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM record_mappings`); err != nil {
		return eris.Wrap(err, "sqlite: clear mappings")
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO record_mappings (staged_id, staged_name, matched_id, matched_name, confidence, score)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert mapping")
	}
	defer stmt.Close()

	for _, m := range mappings {
		if _, err := stmt.ExecContext(ctx, m.StagedID, m.StagedName, m.MatchedID,
			m.MatchedName, string(m.Confidence), m.Score); err != nil {
			return eris.Wrapf(err, "sqlite: insert mapping %s", m.StagedName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit mappings")
}

func (s *SQLiteStore) ListMappings(ctx context.Context) ([]model.RecordMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT staged_id, staged_name, matched_id, matched_name, confidence, score
		 FROM record_mappings ORDER BY staged_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mappings")
	}
	defer rows.Close()

	var out []model.RecordMapping
	for rows.Next() {
		var m model.RecordMapping
		var confidence string
		if err := rows.Scan(&m.StagedID, &m.StagedName, &m.MatchedID,
			&m.MatchedName, &confidence, &m.Score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping")
		}
		m.Confidence = model.Confidence(confidence)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate mappings")
}

// --- Dependents ---

func (s *SQLiteStore) InsertDependents(ctx context.Context, col model.DependentCollection, refs []model.DependentRef) error {
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
			_, err = s.db.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, %s, %s) VALUES (?, ?, ?)`,
					col.Name, col.ForeignKey, col.Discriminator.Column),
				ref.ID, ref.RestaurantID, targetType)
		} else {
			_, err = s.db.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, %s) VALUES (?, ?)`, col.Name, col.ForeignKey),
				ref.ID, ref.RestaurantID)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert %s dependent", col.Name)
		}
	}
	return nil
}

func (s *SQLiteStore) CountDependents(ctx context.Context, col model.DependentCollection) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, col.Name)
	var args []any
	if col.Discriminator != nil {
		query += fmt.Sprintf(` WHERE %s = ?`, col.Discriminator.Column)
		args = append(args, col.Discriminator.Value)
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count %s", col.Name)
}

func (s *SQLiteStore) CountDependentsReferencing(ctx context.Context, col model.DependentCollection, restaurantID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, col.Name, col.ForeignKey)
	args := []any{restaurantID}
	if col.Discriminator != nil {
		query += fmt.Sprintf(` AND %s = ?`, col.Discriminator.Column)
		args = append(args, col.Discriminator.Value)
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count %s referencing %s", col.Name, restaurantID)
}

func (s *SQLiteStore) RepointDependents(ctx context.Context, col model.DependentCollection, fromID, toID string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, col.Name, col.ForeignKey, col.ForeignKey)
	args := []any{toID, fromID}
	if col.Discriminator != nil {
		query += fmt.Sprintf(` AND %s = ?`, col.Discriminator.Column)
		args = append(args, col.Discriminator.Value)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: repoint %s from %s", col.Name, fromID)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Identity backups ---

func (s *SQLiteStore) SnapshotIdentities(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO identity_backups (id, name, township)
		 SELECT id, name, township FROM restaurants WHERE name != ''
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, township = excluded.township`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: snapshot identities")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) ListKnownIdentities(ctx context.Context) ([]model.KnownIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, township FROM identity_backups ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list identities")
	}
	defer rows.Close()

	var out []model.KnownIdentity
	for rows.Next() {
		var k model.KnownIdentity
		if err := rows.Scan(&k.ID, &k.Name, &k.Township); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identity")
		}
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate identities")
}

// --- Audit log ---

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry model.MigrationLogEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit details")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO migration_log (id, action, collection, record_count, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), entry.Action, entry.Collection, entry.Count, string(details), entry.Timestamp)
	return eris.Wrapf(err, "sqlite: append audit %s", entry.Action)
}

func (s *SQLiteStore) TailAudit(ctx context.Context, limit int) ([]model.MigrationLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, collection, record_count, details, created_at
		 FROM migration_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: tail audit")
	}
	defer rows.Close()

	var out []model.MigrationLogEntry
	for rows.Next() {
		var e model.MigrationLogEntry
		var details sql.NullString
		if err := rows.Scan(&e.Action, &e.Collection, &e.Count, &details, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		if details.Valid && details.String != "" && details.String != "null" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal audit details")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate audit")
}

// --- Phase ---

func (s *SQLiteStore) GetPhase(ctx context.Context) (model.Phase, error) {
	var phase string
	err := s.db.QueryRowContext(ctx, `SELECT phase FROM migration_state WHERE id = 1`).Scan(&phase)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PhaseUpload, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get phase")
	}
	return model.Phase(phase), nil
}

func (s *SQLiteStore) SetPhase(ctx context.Context, phase model.Phase) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO migration_state (id, phase) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET phase = excluded.phase`, string(phase))
	return eris.Wrapf(err, "sqlite: set phase %s", phase)
}
