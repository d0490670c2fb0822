package trac_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/tracmark/internal/apperr"
	"github.com/starford/tracmark/internal/testutil"
	"github.com/starford/tracmark/internal/trac"
)

var (
	older = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	newer = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
)

func seedEnv(t *testing.T) string {
	t.Helper()
	return testutil.TracEnv(t, []testutil.Page{
		{Name: "WikiStart", Version: 1, Text: "old", Time: older},
		{Name: "WikiStart", Version: 2, Text: "new", Time: newer},
		{Name: "Dev/Setup", Version: 1, Text: "setup", Time: newer},
		{Name: "Dev/Build", Version: 1, Text: "build", Time: older},
		{Name: "Dev_Other", Version: 1, Text: "x", Time: older},
	}, []testutil.Attachment{
		{Page: "WikiStart", Filename: "logo.png", Content: []byte("png"), Time: older},
		{Page: "WikiStart", Filename: "notes.txt", Content: []byte("txt"), Time: newer},
		{Page: "Dev/Setup", Filename: "shot.jpg", Content: []byte("jpg"), Time: newer},
	})
}

func TestPages_LatestRevisionSince(t *testing.T) {
	db := testutil.TracDB(t, seedEnv(t))

	pages, err := db.Pages(context.Background(), time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	var names []string
	for _, p := range pages {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Dev/Setup", "WikiStart"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if pages[1].Version != 2 || pages[1].Text != "new" {
		t.Errorf("WikiStart = %+v, want version 2", pages[1])
	}
	if !pages[1].ModifiedAt.Equal(newer) {
		t.Errorf("modified = %v, want %v", pages[1].ModifiedAt, newer)
	}
}

func TestPage(t *testing.T) {
	db := testutil.TracDB(t, seedEnv(t))

	p, err := db.Page(context.Background(), "WikiStart")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if p.Version != 2 || p.Text != "new" {
		t.Errorf("page = %+v", p)
	}

	if _, err := db.Page(context.Background(), "Missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPagesWithPrefix_EscapesWildcards(t *testing.T) {
	db := testutil.TracDB(t, seedEnv(t))

	got, err := db.PagesWithPrefix(context.Background(), "Dev/")
	if err != nil {
		t.Fatalf("PagesWithPrefix: %v", err)
	}
	if diff := cmp.Diff([]string{"Dev/Build", "Dev/Setup"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	got, err = db.PagesWithPrefix(context.Background(), "Dev_")
	if err != nil {
		t.Fatalf("PagesWithPrefix: %v", err)
	}
	if diff := cmp.Diff([]string{"Dev_Other"}, got); diff != "" {
		t.Errorf("underscore must match literally (-want +got):\n%s", diff)
	}
}

func TestAttachments(t *testing.T) {
	env := seedEnv(t)
	db := testutil.TracDB(t, env)

	atts, err := db.Attachments(context.Background())
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if len(atts) != 3 {
		t.Fatalf("len = %d, want 3", len(atts))
	}
	if atts[0].Owner != "Dev/Setup" || atts[1].Filename != "logo.png" || atts[2].Filename != "notes.txt" {
		t.Errorf("order = %+v", atts)
	}
	for _, a := range atts {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			t.Errorf("source of %s: %v", a.Filename, err)
			continue
		}
		if int64(len(data)) != a.Size {
			t.Errorf("%s size = %d, file has %d bytes", a.Filename, a.Size, len(data))
		}
	}

	page, err := db.PageAttachments(context.Background(), "WikiStart")
	if err != nil {
		t.Fatalf("PageAttachments: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("WikiStart attachments = %+v", page)
	}
}

func TestAttachmentPath_HashedLayout(t *testing.T) {
	got := trac.AttachmentPath("/env", "WikiStart", "logo.png")
	want := filepath.Join("/env", "files", "attachments", "wiki",
		"f09", "f0955265d583361233790e2a4da795373c345a9f",
		"81c27284f77a447375ba39fb2f0005eeaccf28d8.png")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestAttachmentPath_LegacyLayout(t *testing.T) {
	env := t.TempDir()
	legacy := filepath.Join(env, "attachments", "wiki", "Dev", "Setup", "my%20file.txt")
	if err := os.MkdirAll(filepath.Dir(legacy), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(legacy, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := trac.AttachmentPath(env, "Dev/Setup", "my file.txt"); got != legacy {
		t.Errorf("path = %q, want %q", got, legacy)
	}
}

func TestOpen_MissingDatabase(t *testing.T) {
	if _, err := trac.Open(t.TempDir(), ""); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestExcluder(t *testing.T) {
	e, err := trac.NewExcluder([]string{"Trac*", "Wiki?ormatting", "Sandbox"})
	if err != nil {
		t.Fatalf("NewExcluder: %v", err)
	}
	tests := []struct {
		name    string
		pattern string
		matched bool
	}{
		{"TracGuide", "Trac*", true},
		{"Trac/Sub", "Trac*", true},
		{"WikiFormatting", "Wiki?ormatting", true},
		{"Sandbox", "Sandbox", true},
		{"SandboxTwo", "", false},
		{"WikiStart", "", false},
	}
	for _, tt := range tests {
		p, ok := e.Match(tt.name)
		if ok != tt.matched || p != tt.pattern {
			t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.name, p, ok, tt.pattern, tt.matched)
		}
	}
}
