package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDriver implements Driver for SQLite database
type SQLiteDriver struct {
	db *sql.DB
}

// NewSQLiteDriver creates a new SQLite database driver
func NewSQLiteDriver(dbPath string) (*SQLiteDriver, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Enable foreign keys and WAL mode. Transactions take the write lock on
	// BEGIN so concurrent read-then-write updates wait on busy_timeout
	// instead of failing at lock upgrade.
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	return &SQLiteDriver{db: db}, nil
}

// DB returns the underlying *sql.DB connection
func (d *SQLiteDriver) DB() *sql.DB {
	return d.db
}

// Close closes the database connection
func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}

// Ping verifies the connection is still usable
func (d *SQLiteDriver) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Type returns the database type
func (d *SQLiteDriver) Type() string {
	return "sqlite"
}

// Initialize sets up the database schema
func (d *SQLiteDriver) Initialize(ctx context.Context) error {
	schema := `
	-- Memories table
	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memories_user_timestamp ON memories(user_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_source ON memories(source, source_id);

	-- App configuration table
	CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT DEFAULT (datetime('now'))
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// SetConfig stores a configuration value in the database
func (d *SQLiteDriver) SetConfig(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO app_config (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}

// GetConfig retrieves a configuration value from the database
func (d *SQLiteDriver) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
