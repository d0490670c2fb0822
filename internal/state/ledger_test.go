package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSchemaCreation(t *testing.T) {
	l := testLedger(t)
	var count int
	if err := l.conn.QueryRow(`SELECT count(*) FROM migrations`).Scan(&count); err != nil {
		t.Fatalf("migrations table missing: %v", err)
	}
}

func TestGet_Unknown(t *testing.T) {
	r, err := testLedger(t).Get(context.Background(), "Nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r != nil {
		t.Errorf("record = %+v, want nil", r)
	}
}

func TestMarkMigrated(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t)
	if err := l.MarkMigrated(ctx, "WikiStart", 3, "abc"); err != nil {
		t.Fatalf("MarkMigrated: %v", err)
	}
	r, err := l.Get(ctx, "WikiStart")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Version != 3 || r.Fingerprint != "abc" || r.Status != StatusMigrated || r.Error != "" {
		t.Errorf("record = %+v", r)
	}
	if r.MigratedAt.IsZero() {
		t.Error("migrated_at not set")
	}
}

func TestMarkFailed_KeepsFingerprint(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t)
	_ = l.MarkMigrated(ctx, "WikiStart", 1, "abc")

	if err := l.MarkFailed(ctx, "WikiStart", 2, errors.New("disk full")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	r, _ := l.Get(ctx, "WikiStart")
	if r.Status != StatusFailed || r.Error != "disk full" || r.Fingerprint != "abc" || r.Version != 2 {
		t.Errorf("record = %+v", r)
	}

	if err := l.MarkMigrated(ctx, "WikiStart", 2, "def"); err != nil {
		t.Fatalf("MarkMigrated: %v", err)
	}
	r, _ = l.Get(ctx, "WikiStart")
	if r.Status != StatusMigrated || r.Error != "" {
		t.Errorf("record after retry = %+v", r)
	}
}

func TestAll_Ordered(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t)
	_ = l.MarkMigrated(ctx, "b", 1, "x")
	_ = l.MarkMigrated(ctx, "a", 1, "y")

	all, err := l.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || all[0].Page != "a" || all[1].Page != "b" {
		t.Errorf("all = %+v", all)
	}
}

func TestFingerprint(t *testing.T) {
	// sha256("")
	if got := Fingerprint(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Fingerprint(\"\") = %s", got)
	}
	if Fingerprint("a") == Fingerprint("b") {
		t.Error("distinct inputs share a fingerprint")
	}
}
