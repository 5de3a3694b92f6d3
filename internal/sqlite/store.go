package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a pooled sqlx.DB connection to the SQLite catalog. It implements
// catalog.Store.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided path.
// The schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path required")
	}
	cfg.applyDefaults()
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	// journal_mode must be set per connection, outside any transaction, so it
	// lives in the DSN rather than the migration statements.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying sqlx.DB for advanced callers.
func (s *Store) DB() *sqlx.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS transcripts (
                call_id TEXT PRIMARY KEY,
                rep_id TEXT,
                content_hash TEXT NOT NULL,
                utterances TEXT NOT NULL,
                created_at DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS rubrics (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                dimension TEXT NOT NULL,
                version TEXT NOT NULL,
                criteria TEXT NOT NULL,
                scoring_guide TEXT NOT NULL DEFAULT '',
                examples TEXT NOT NULL DEFAULT '',
                active INTEGER NOT NULL DEFAULT 0,
                created_at DATETIME NOT NULL,
                deprecated_at DATETIME,
                UNIQUE(dimension, version)
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_rubrics_one_active
                ON rubrics(dimension) WHERE active = 1;`,
	`CREATE TABLE IF NOT EXISTS evaluations (
                transcript_hash TEXT NOT NULL,
                dimension TEXT NOT NULL,
                rubric_version TEXT NOT NULL,
                payload TEXT NOT NULL,
                created_at DATETIME NOT NULL,
                PRIMARY KEY (transcript_hash, dimension, rubric_version)
        );`,
	`CREATE TABLE IF NOT EXISTS analysis_runs (
                run_id TEXT PRIMARY KEY,
                call_id TEXT NOT NULL,
                variant TEXT NOT NULL,
                dimensions TEXT NOT NULL,
                status TEXT NOT NULL,
                error TEXT NOT NULL DEFAULT '',
                prompt_tokens INTEGER NOT NULL DEFAULT 0,
                completion_tokens INTEGER NOT NULL DEFAULT 0,
                started_at DATETIME NOT NULL,
                finished_at DATETIME
        );`,
	`CREATE TABLE IF NOT EXISTS run_dimensions (
                run_id TEXT NOT NULL,
                dimension TEXT NOT NULL,
                status TEXT NOT NULL,
                error TEXT NOT NULL DEFAULT '',
                cached INTEGER NOT NULL DEFAULT 0,
                prompt_tokens INTEGER NOT NULL DEFAULT 0,
                completion_tokens INTEGER NOT NULL DEFAULT 0,
                updated_at DATETIME NOT NULL,
                PRIMARY KEY (run_id, dimension),
                FOREIGN KEY(run_id) REFERENCES analysis_runs(run_id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS routing_decisions (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                call_id TEXT NOT NULL,
                run_id TEXT NOT NULL,
                variant TEXT NOT NULL,
                status TEXT NOT NULL,
                mean_score REAL NOT NULL DEFAULT 0,
                failed_dimensions TEXT NOT NULL DEFAULT '',
                decided_at DATETIME NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_rubrics_dimension ON rubrics(dimension, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_runs_call ON analysis_runs(call_id, started_at);`,
	`CREATE INDEX IF NOT EXISTS idx_routing_variant ON routing_decisions(variant, decided_at);`,
}
