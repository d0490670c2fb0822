// Package trac reads wiki pages and attachments from a Trac environment.
package trac

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a read-only handle on a Trac environment database.
type DB struct {
	conn    *sql.DB
	envPath string
}

// DefaultDBPath returns the database location inside a Trac environment.
func DefaultDBPath(envPath string) string {
	return filepath.Join(envPath, "db", "trac.db")
}

// Open opens the Trac database of the environment at envPath. An empty
// dbPath selects DefaultDBPath.
func Open(envPath, dbPath string) (*DB, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath(envPath)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("trac: database: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("trac: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("trac: ping: %w", err)
	}
	return &DB{conn: conn, envPath: envPath}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
