// Package storage persists enriched threat events and campaigns in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the database connections. WAL mode allows many concurrent
// readers alongside a single writer, so reads and writes get separate pools.
type SQLite struct {
	WriteDB *sql.DB // single-writer pool
	ReadDB  *sql.DB // concurrent read pool
	Path    string
	Logger  *zap.SugaredLogger
}

// configureConnection applies the standard pragmas to a pool. WAL mode is
// required for crash recovery; SQLite disables foreign keys by default, so
// they must be enabled explicitly per connection.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// In-memory databases report "memory" journal mode, which is fine.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s)", journalMode)
	}
	return nil
}

// NewSQLite opens the database, applies pragmas and creates the schema.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Both pools must see the same database when running in memory.
	actualPath := dbPath
	if dbPath == ":memory:" {
		actualPath = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}
	if err := configureConnection(writeDB, dbPath); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}
	// WAL mode supports exactly one writer at a time.
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}
	if err := configureConnection(readDB, dbPath); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read connection: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}
	if err := s.createTables(); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Infof("SQLite database initialized at %s", dbPath)
	return s, nil
}

// WithTransaction runs fn inside a write transaction, rolling back on error
// or panic.
func (s *SQLite) WithTransaction(fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS enriched_events (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		attack_source_ip TEXT NOT NULL,
		attack_type TEXT NOT NULL,
		mitre_techniques TEXT NOT NULL DEFAULT '[]', -- JSON array
		timestamp DATETIME NOT NULL,
		received_at DATETIME NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		severity TEXT NOT NULL,
		service_type TEXT NOT NULL DEFAULT '',
		skill_level TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		tools TEXT NOT NULL DEFAULT '[]', -- JSON array
		event_hash TEXT NOT NULL UNIQUE,
		campaign_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_enriched_events_unclustered
		ON enriched_events(received_at) WHERE campaign_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_enriched_events_campaign
		ON enriched_events(campaign_id);
	CREATE INDEX IF NOT EXISTS idx_enriched_events_source_ip
		ON enriched_events(attack_source_ip);

	CREATE TABLE IF NOT EXISTS campaigns (
		campaign_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		campaign_type TEXT NOT NULL,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		event_count INTEGER NOT NULL DEFAULT 0,
		unique_ips INTEGER NOT NULL DEFAULT 0,
		attack_types TEXT NOT NULL DEFAULT '[]', -- JSON array
		mitre_techniques TEXT NOT NULL DEFAULT '[]', -- JSON array
		regions TEXT NOT NULL DEFAULT '[]', -- JSON array
		severity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
	CREATE INDEX IF NOT EXISTS idx_campaigns_last_seen ON campaigns(last_seen);
	`
	if _, err := s.WriteDB.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes both connection pools.
func (s *SQLite) Close() error {
	var firstErr error
	if err := s.WriteDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.ReadDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
