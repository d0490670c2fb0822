package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TRACMARK_TEST_NAME", "from-env")
	path := writeFile(t, "name: ${TRACMARK_TEST_NAME}\ncount: 3\n")

	got := sample{Count: 1}
	if err := Load(path, &got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "from-env" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestLoad_OverridesBeforeValidation(t *testing.T) {
	got := sample{}
	err := Load("", &got, func(s *sample) { s.Name = "flag" })
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "flag" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeFile(t, "count: 2\n")
	err := Load(path, &sample{})
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if err := Load(missing, &sample{Name: "x"}); err == nil {
		t.Error("Load should fail on a missing file")
	}
	if err := LoadOptional(missing, &sample{Name: "x"}); err != nil {
		t.Errorf("LoadOptional: %v", err)
	}
}
