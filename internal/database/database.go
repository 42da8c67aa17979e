// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
)

// DB wraps the SQLite connection and provides data access methods for
// incidents, road conditions, cameras, weather stations, push subscriptions,
// client interests and runtime settings.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// encryptor, when non-nil, encrypts secret settings values at rest.
	encryptor *config.SettingsEncryptor

	// Prepared statement caching
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// New creates a new database connection and initializes the schema.
// enc may be nil, in which case secret settings are stored in plaintext.
func New(cfg *config.DatabaseConfig, enc *config.SettingsEncryptor) (*DB, error) {
	// Ensure parent directory exists for database file.
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301.
	if !isMemoryPath(cfg.Path) {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	conn, err := sql.Open("sqlite3", connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		encryptor: enc,
		stmtCache: make(map[string]*sql.Stmt),
	}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database ready")
	return db, nil
}

// connectionString builds the go-sqlite3 DSN. WAL journaling allows readers
// to proceed while the pipeline writes; busy_timeout turns lock contention
// into a bounded wait instead of an immediate SQLITE_BUSY.
func connectionString(cfg *config.DatabaseConfig) string {
	busyMS := int(cfg.BusyTimeout / time.Millisecond)
	if busyMS <= 0 {
		busyMS = 5000
	}

	if isMemoryPath(cfg.Path) {
		// cache=shared keeps every pooled connection on the same
		// in-memory database; without it each connection would see an
		// empty schema.
		return fmt.Sprintf("file::memory:?cache=shared&_busy_timeout=%d&_foreign_keys=on&_loc=UTC", busyMS)
	}

	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_loc=UTC",
		cfg.Path, busyMS)
}

// isMemoryPath reports whether the configured path selects an in-memory
// database (used by tests).
func isMemoryPath(path string) bool {
	return path == ":memory:" || path == ""
}

// configureConnectionPool sizes the database/sql pool. SQLite permits a
// single writer; WAL lets readers run alongside it, so the pool is sized
// for read parallelism while write serialization is left to busy_timeout.
func (db *DB) configureConnectionPool() {
	if isMemoryPath(db.cfg.Path) {
		// A shared-cache memory database disappears when its last
		// connection closes; pin exactly one.
		db.conn.SetMaxOpenConns(1)
		db.conn.SetMaxIdleConns(1)
		return
	}

	maxOpen := runtime.NumCPU()
	if maxOpen < 4 {
		maxOpen = 4
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// initialize creates tables, runs migrations, and creates indexes
func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.runVersionedMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Conn returns the underlying SQL database connection. Used by tests and by
// collaborators that need direct access for one-off queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path for backup and stats purposes.
func (db *DB) Path() string {
	return db.cfg.Path
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Checkpoint forces a WAL checkpoint so the main database file reflects all
// committed writes. Used before backups and during shutdown.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}

// Close closes the database connection and all cached prepared statements.
func (db *DB) Close() error {
	db.clearStatementCache()

	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint on close failed")
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// getStmt returns a cached prepared statement for the query, preparing and
// caching it on first use. Statements survive for the lifetime of the DB.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()

	// Re-check under the write lock; another goroutine may have won.
	if stmt, ok := db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// clearStatementCache closes and discards all cached prepared statements.
func (db *DB) clearStatementCache() {
	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()

	for _, stmt := range db.stmtCache {
		closeQuietly(stmt)
	}
	db.stmtCache = make(map[string]*sql.Stmt)
}

// withTx runs fn inside a transaction, committing on nil and rolling back on
// error. One entity write (version insert + row update) is one transaction.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Warn().Err(rbErr).Msg("Transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ensureContext creates a context with 30-second timeout if none provided
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}

	return ctx, func() {}
}
