package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verify at compile time that Queries implements all read interfaces.
var (
	_ ArtifactReader = (*Queries)(nil)
	_ BlockReader    = (*Queries)(nil)
	_ JournalReader  = (*Queries)(nil)
	_ EventReader    = (*Queries)(nil)
	_ Reader         = (*Store)(nil)
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every data access operation. It runs either directly on the
// database or inside a transaction started by Store.InTx.
type Queries struct {
	db dbtx
}

// Store provides data access to the SQLite database.
type Store struct {
	*Queries
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{Queries: &Queries{db: db}, db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// InTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so a rejected operation writes nothing.
// fn must only use the Queries it is given.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: artifacts, blocks, journal, events
		s.migrateV2, // v1 → v2: checkpoints
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
// The partial unique indexes hold the single-active-artifact and
// single-running-block-per-artifact invariants at the storage layer.
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id                       TEXT PRIMARY KEY,
		name                     TEXT NOT NULL,
		type                     TEXT NOT NULL,
		content                  TEXT NOT NULL DEFAULT '',
		ship_date                INTEGER NOT NULL,
		created_at               INTEGER NOT NULL,
		status                   TEXT NOT NULL CHECK(status IN ('active', 'locked', 'shipped', 'archived')),
		shipped_at               INTEGER,
		version                  INTEGER NOT NULL DEFAULT 1,
		done_criteria            TEXT NOT NULL,
		external_recipient       TEXT NOT NULL,
		max_word_count           INTEGER NOT NULL,
		current_word_count       INTEGER NOT NULL DEFAULT 0,
		done_criteria_met        INTEGER NOT NULL DEFAULT 0,
		edit_locked              INTEGER NOT NULL DEFAULT 0,
		shipping_proof_url       TEXT,
		shipping_proof_submitted INTEGER NOT NULL DEFAULT 0,
		CHECK(status != 'shipped' OR shipping_proof_submitted = 1),
		CHECK(status NOT IN ('locked', 'shipped') OR edit_locked = 1)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_one_active ON artifacts(status) WHERE status = 'active';
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at DESC);

	CREATE TABLE IF NOT EXISTS blocks (
		id                 TEXT PRIMARY KEY,
		artifact_id        TEXT NOT NULL REFERENCES artifacts(id),
		expected_diff_type TEXT NOT NULL CHECK(expected_diff_type IN ('paragraph', 'section', 'slide', 'figure', 'commit')),
		start_time         INTEGER NOT NULL,
		end_time           INTEGER,
		content_before     TEXT NOT NULL,
		content_after      TEXT,
		has_diff           INTEGER NOT NULL DEFAULT 0,
		status             TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed'))
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_one_running ON blocks(artifact_id) WHERE status = 'running';
	CREATE INDEX IF NOT EXISTS idx_blocks_artifact ON blocks(artifact_id, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_blocks_status ON blocks(status, start_time);

	CREATE TABLE IF NOT EXISTS skipped_blocks (
		id             TEXT PRIMARY KEY,
		artifact_id    TEXT NOT NULL REFERENCES artifacts(id),
		scheduled_time INTEGER NOT NULL,
		skipped_at     INTEGER NOT NULL,
		reason         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_skipped_artifact ON skipped_blocks(artifact_id, skipped_at DESC);

	CREATE TABLE IF NOT EXISTS autopsies (
		id                         TEXT PRIMARY KEY,
		artifact_id                TEXT NOT NULL REFERENCES artifacts(id),
		created_at                 INTEGER NOT NULL,
		shipped_on_time            INTEGER NOT NULL,
		scope_respected            INTEGER NOT NULL,
		external_feedback_received INTEGER NOT NULL,
		one_clear_takeaway         INTEGER NOT NULL,
		repeat_artifact_class      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_autopsies_artifact ON autopsies(artifact_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		kind        TEXT NOT NULL,
		artifact_id TEXT NOT NULL,
		block_id    TEXT NOT NULL DEFAULT '',
		positive    INTEGER NOT NULL DEFAULT 0,
		occurred_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_time ON events(occurred_at);

	-- The journal and event log are append-only.
	CREATE TRIGGER IF NOT EXISTS skipped_blocks_no_update BEFORE UPDATE ON skipped_blocks
		BEGIN SELECT RAISE(ABORT, 'skipped_blocks is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS skipped_blocks_no_delete BEFORE DELETE ON skipped_blocks
		BEGIN SELECT RAISE(ABORT, 'skipped_blocks is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS autopsies_no_update BEFORE UPDATE ON autopsies
		BEGIN SELECT RAISE(ABORT, 'autopsies is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS autopsies_no_delete BEFORE DELETE ON autopsies
		BEGIN SELECT RAISE(ABORT, 'autopsies is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS events_no_update BEFORE UPDATE ON events
		BEGIN SELECT RAISE(ABORT, 'events is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS events_no_delete BEFORE DELETE ON events
		BEGIN SELECT RAISE(ABORT, 'events is append-only'); END;
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the checkpoints table (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS checkpoints (
		id                      TEXT PRIMARY KEY,
		artifact_id             TEXT NOT NULL REFERENCES artifacts(id),
		checkpoint_date         INTEGER NOT NULL,
		required_completion_pct REAL NOT NULL,
		actual_completion_pct   REAL NOT NULL,
		passed                  INTEGER NOT NULL DEFAULT 0,
		scope_reduction_applied INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_artifact ON checkpoints(artifact_id, checkpoint_date ASC);
	`)
	return err
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
