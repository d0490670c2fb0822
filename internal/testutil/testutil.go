// Package testutil provides shared test helpers for building Trac
// environments, output trees and ledgers.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/tracmark/internal/state"
	"github.com/starford/tracmark/internal/storage"
	"github.com/starford/tracmark/internal/trac"
)

const tracSchemaSQL = `
CREATE TABLE wiki (
	name     TEXT,
	version  INTEGER,
	time     INTEGER,
	author   TEXT,
	ipnr     TEXT,
	text     TEXT,
	comment  TEXT,
	readonly INTEGER,
	UNIQUE (name, version)
);

CREATE TABLE attachment (
	type        TEXT,
	id          TEXT,
	filename    TEXT,
	size        INTEGER,
	time        INTEGER,
	description TEXT,
	author      TEXT,
	ipnr        TEXT,
	UNIQUE (type, id, filename)
);
`

// Page is one wiki revision to seed.
type Page struct {
	Name    string
	Version int
	Text    string
	Time    time.Time
}

// Attachment is one wiki attachment to seed. Content is written to the
// hashed attachment layout.
type Attachment struct {
	Page     string
	Filename string
	Content  []byte
	Time     time.Time
}

// TracEnv creates a temporary Trac environment with the given rows and
// returns its path.
func TracEnv(t *testing.T, pages []Page, atts []Attachment) string {
	t.Helper()
	env := t.TempDir()
	dbPath := trac.DefaultDBPath(env)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		t.Fatal(err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Exec(tracSchemaSQL); err != nil {
		t.Fatalf("trac schema: %v", err)
	}

	for _, p := range pages {
		insertPage(t, conn, p)
	}
	for _, a := range atts {
		ts := a.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := conn.Exec(
			`INSERT INTO attachment (type, id, filename, size, time) VALUES ('wiki', ?, ?, ?, ?)`,
			a.Page, a.Filename, len(a.Content), ts.UnixMicro(),
		); err != nil {
			t.Fatalf("insert attachment: %v", err)
		}
		dst := trac.AttachmentPath(env, a.Page, a.Filename)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(dst, a.Content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return env
}

// AddPage inserts another revision into an existing environment.
func AddPage(t *testing.T, env string, p Page) {
	t.Helper()
	conn, err := sql.Open("sqlite3", trac.DefaultDBPath(env))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	insertPage(t, conn, p)
}

func insertPage(t *testing.T, conn *sql.DB, p Page) {
	t.Helper()
	if p.Version == 0 {
		p.Version = 1
	}
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := conn.Exec(
		`INSERT INTO wiki (name, version, time, author, text) VALUES (?, ?, ?, 'tester', ?)`,
		p.Name, p.Version, ts.UnixMicro(), p.Text,
	); err != nil {
		t.Fatalf("insert page %s: %v", p.Name, err)
	}
}

// TracDB opens the environment's database and closes it with the test.
func TracDB(t *testing.T, env string) *trac.DB {
	t.Helper()
	db, err := trac.Open(env, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLedger creates a temporary migration ledger that is automatically
// cleaned up.
func TestLedger(t *testing.T) *state.Ledger {
	t.Helper()
	l, err := state.Open(filepath.Join(t.TempDir(), "tracmark.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// TestOutput creates a temporary output directory with a storage.FS.
func TestOutput(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
