// Package state records which pages have been migrated, so a rerun only
// converts what changed in Trac since the last run.
package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS migrations (
	page        TEXT PRIMARY KEY,
	version     INTEGER NOT NULL,
	fingerprint TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	migrated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_migrations_status ON migrations(status);
`

// Record statuses.
const (
	StatusMigrated = "migrated"
	StatusFailed   = "failed"
)

// Record is the ledger row of one page.
type Record struct {
	Page        string    `json:"page"`
	Version     int       `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	MigratedAt  time.Time `json:"migrated_at"`
}

// Ledger wraps a sql.DB holding the migration records.
type Ledger struct {
	conn *sql.DB
}

// Open opens (or creates) the ledger database and applies the schema.
func Open(path string) (*Ledger, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("state: open db: %w", err)
	}
	// Workers write concurrently; a single connection serialises them.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &Ledger{conn: conn}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Get returns the record of page, or nil when the page was never processed.
func (l *Ledger) Get(ctx context.Context, page string) (*Record, error) {
	var r Record
	err := l.conn.QueryRowContext(ctx, `
		SELECT page, version, fingerprint, status, error, migrated_at
		FROM migrations WHERE page = ?
	`, page).Scan(&r.Page, &r.Version, &r.Fingerprint, &r.Status, &r.Error, &r.MigratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: get %s: %w", page, err)
	}
	return &r, nil
}

// MarkMigrated records a successful conversion of version.
func (l *Ledger) MarkMigrated(ctx context.Context, page string, version int, fingerprint string) error {
	return l.upsert(ctx, Record{
		Page:        page,
		Version:     version,
		Fingerprint: fingerprint,
		Status:      StatusMigrated,
	})
}

// MarkFailed records a failed conversion. The previous fingerprint is kept
// so an unchanged retry does not rewrite the file.
func (l *Ledger) MarkFailed(ctx context.Context, page string, version int, cause error) error {
	prev, err := l.Get(ctx, page)
	if err != nil {
		return err
	}
	r := Record{Page: page, Version: version, Status: StatusFailed, Error: cause.Error()}
	if prev != nil {
		r.Fingerprint = prev.Fingerprint
	}
	return l.upsert(ctx, r)
}

func (l *Ledger) upsert(ctx context.Context, r Record) error {
	_, err := l.conn.ExecContext(ctx, `
		INSERT INTO migrations (page, version, fingerprint, status, error, migrated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(page) DO UPDATE SET
			version     = excluded.version,
			fingerprint = excluded.fingerprint,
			status      = excluded.status,
			error       = excluded.error,
			migrated_at = excluded.migrated_at
	`, r.Page, r.Version, r.Fingerprint, r.Status, r.Error, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("state: record %s: %w", r.Page, err)
	}
	return nil
}

// All returns every record ordered by page name.
func (l *Ledger) All(ctx context.Context) ([]Record, error) {
	rows, err := l.conn.QueryContext(ctx, `
		SELECT page, version, fingerprint, status, error, migrated_at
		FROM migrations ORDER BY page
	`)
	if err != nil {
		return nil, fmt.Errorf("state: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Page, &r.Version, &r.Fingerprint, &r.Status, &r.Error, &r.MigratedAt); err != nil {
			return nil, fmt.Errorf("state: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Fingerprint returns the hex-encoded SHA-256 digest of converted text.
func Fingerprint(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
