package configs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndLoadTOML(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.toml")

	type TestStruct struct {
		Bucket string `toml:"bucket"`
		Days   int    `toml:"days"`
	}

	original := TestStruct{Bucket: "ops-backups", Days: 30}
	if err := SaveTOML(testFile, original); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	loaded := TestStruct{}
	if err := LoadTOML(testFile, &loaded); err != nil {
		t.Fatalf("LoadTOML failed: %v", err)
	}
	if loaded != original {
		t.Errorf("LoadTOML() = %+v, want %+v", loaded, original)
	}
}

func TestSaveTOMLPermissions(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := SaveTOML(testFile, struct{ A string }{"x"}); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatalf("File was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}

	entries, err := os.ReadDir(filepath.Dir(testFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}

func TestLoadTOMLNonExistent(t *testing.T) {
	var data struct{ Name string }
	if err := LoadTOML(filepath.Join(t.TempDir(), "missing.toml"), &data); err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
}

func TestLoadTOMLRejectsUnknownKeys(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "typo.toml")
	if err := os.WriteFile(testFile, []byte("buckt = \"x\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	var data struct {
		Bucket string `toml:"bucket"`
	}
	err := LoadTOML(testFile, &data)
	if err == nil || !strings.Contains(err.Error(), "buckt") {
		t.Fatalf("LoadTOML() error = %v, want unknown key error", err)
	}
}
