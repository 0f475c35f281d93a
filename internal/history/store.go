// Package history persists one record per completed load to SQLite, so
// match rates and load times can be compared across snapshot revisions.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
)

const currentSchemaVersion = 1

// Store is a SQLite-backed load history with transaction helpers.
type Store struct {
	conn   *sql.DB
	logger *logging.Logger
	path   string
}

// Open opens or creates the history database at the given path.
// Parent directories are created as needed.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, bimerrors.New(bimerrors.HistoryUnavailable, "failed to create history directory", err)
	}

	existed := fileExists(path)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, bimerrors.New(bimerrors.HistoryUnavailable, "failed to open history database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, bimerrors.New(bimerrors.HistoryUnavailable, "failed to set pragma", err)
		}
	}

	store := &Store{
		conn:   conn,
		logger: logger,
		path:   path,
	}

	if !existed {
		logger.Info("Creating new history database", map[string]interface{}{
			"path": path,
		})
		if err := store.initializeSchema(); err != nil {
			conn.Close()
			return nil, bimerrors.New(bimerrors.HistoryUnavailable, "failed to initialize history schema", err)
		}
	} else {
		if err := store.runMigrations(); err != nil {
			conn.Close()
			return nil, bimerrors.New(bimerrors.HistoryUnavailable, "failed to migrate history schema", err)
		}
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// WithTx executes fn inside a transaction, rolling back on error or panic.
func (s *Store) WithTx(fn func(*sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) initializeSchema() error {
	return s.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL
			)
		`); err != nil {
			return fmt.Errorf("failed to create schema_version table: %w", err)
		}

		if err := createLoadHistoryTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		s.logger.Info("History schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})
		return nil
	})
}

func createLoadHistoryTable(tx *sql.Tx) error {
	// "groups" is a reserved word since SQLite grew window functions,
	// hence groups_built/categories_built.
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS load_history (
			id TEXT PRIMARY KEY,
			recorded_at TEXT NOT NULL,
			snapshot_path TEXT NOT NULL,
			metadata_path TEXT,
			snapshot_hash TEXT,
			metadata_hash TEXT,
			node_count INTEGER NOT NULL DEFAULT 0,
			renderable_count INTEGER NOT NULL DEFAULT 0,
			triangle_count INTEGER NOT NULL DEFAULT 0,
			metadata_records INTEGER NOT NULL DEFAULT 0,
			matched INTEGER NOT NULL DEFAULT 0,
			unmatched INTEGER NOT NULL DEFAULT 0,
			groups_built INTEGER NOT NULL DEFAULT 0,
			categories_built INTEGER NOT NULL DEFAULT 0,
			match_rate REAL NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create load_history table: %w", err)
	}
	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_load_history_recorded_at
		ON load_history(recorded_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create load_history index: %w", err)
	}
	return nil
}

func (s *Store) runMigrations() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		return nil
	}

	s.logger.Info("Running history migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Migrations run sequentially as the schema evolves. Version 0 means
	// an empty or pre-versioning database: recreate from scratch.
	if version == 0 {
		return s.initializeSchema()
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var tableName string
	err := s.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = s.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
