package database

import (
	"context"
	"database/sql"
)

// Driver represents a database driver that can be used by the application.
type Driver interface {
	// DB returns the underlying *sql.DB connection
	DB() *sql.DB

	// Close closes the database connection
	Close() error

	// Initialize sets up the database schema if needed
	Initialize(ctx context.Context) error

	// Ping checks that the database is reachable
	Ping(ctx context.Context) error

	// Type returns the database type (e.g., "sqlite")
	Type() string
}
