package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempOutput(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempOutput(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("page.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("page.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempOutput(t)
	if err := s.Write("Dev/Setup/Linux.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(s.Root(), "Dev", "Setup", "Linux.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteOverwrites(t *testing.T) {
	s := tempOutput(t)
	_ = s.Write("page.md", []byte("original content"))
	if err := s.Write("page.md", []byte("updated content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("page.md")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}

	entries, _ := os.ReadDir(s.Root())
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}
}

func TestCopyFile(t *testing.T) {
	s := tempOutput(t)
	src := filepath.Join(t.TempDir(), "source.bin")
	if err := os.WriteFile(src, []byte{0, 1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.CopyFile("DocA/pic.png", src); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := s.Read("DocA/pic.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "\x00\x01\x02\x03" {
		t.Errorf("content = %v", got)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	s := tempOutput(t)
	if err := s.CopyFile("DocA/pic.png", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing source")
	}
	if ok, _ := s.Exists("DocA/pic.png"); ok {
		t.Error("destination should not exist")
	}
}

func TestExists(t *testing.T) {
	s := tempOutput(t)
	_ = s.Write("a.md", []byte("a"))

	if ok, err := s.Exists("a.md"); err != nil || !ok {
		t.Errorf("Exists(a.md) = %v, %v", ok, err)
	}
	if ok, err := s.Exists("b.md"); err != nil || ok {
		t.Errorf("Exists(b.md) = %v, %v", ok, err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempOutput(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestNewFS_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "wikis", "out")
	if _, err := NewFS(root); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tracmark-test-*")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
