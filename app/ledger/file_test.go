package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lysyi3m/docs-notifier/app/docs"
)

func TestLoad_MissingFile(t *testing.T) {
	ledger := NewFile(filepath.Join(t.TempDir(), "missing.ledger"))

	ids, err := ledger.Load()
	if err != nil {
		t.Fatalf("Expected no error for first run, got: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected empty set, got %d identities", len(ids))
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fia.ledger")
	ledger := NewFile(path)

	ids := docs.NewIdentitySet("ccc", "aaa", "bbb")
	if err := ledger.Save(ids); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected ledger file, got: %v", err)
	}
	if string(data) != "aaa\nbbb\nccc\n" {
		t.Errorf("Expected sorted newline-terminated lines, got: %q", string(data))
	}

	loaded, err := ledger.Load()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Expected 3 identities, got %d", len(loaded))
	}
	for id := range ids {
		if !loaded.Has(id) {
			t.Errorf("Expected %s to be loaded", id)
		}
	}
}

func TestSave_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fia.ledger")
	ledger := NewFile(path)
	ids := docs.NewIdentitySet(docs.HashParts("Doc 1", "https://x/1.pdf"), docs.HashParts("Doc 2", "https://x/2.pdf"))

	if err := ledger.Save(ids); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	first, _ := os.ReadFile(path)

	if err := ledger.Save(ids.Clone()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, _ := os.ReadFile(path)

	if string(first) != string(second) {
		t.Error("Expected repeated saves of the same set to be byte-identical")
	}
}

func TestSave_LeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	ledger := NewFile(filepath.Join(dir, "fia.ledger"))

	for i := 0; i < 3; i++ {
		if err := ledger.Save(docs.NewIdentitySet("a")); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "fia.ledger" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only the ledger file, got: %v", names)
	}
}

func TestSave_FileMode(t *testing.T) {
	ledger := NewFile(filepath.Join(t.TempDir(), "nested", "fia.ledger"))

	if err := ledger.Save(docs.NewIdentitySet("a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	info, err := os.Stat(ledger.Path())
	if err != nil {
		t.Fatalf("Expected ledger file, got: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("Expected mode 0644, got: %v", info.Mode().Perm())
	}
}

func TestLoad_IgnoresBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fia.ledger")
	if err := os.WriteFile(path, []byte("aaa\n\n  bbb  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := NewFile(path).Load()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(ids) != 2 || !ids.Has("aaa") || !ids.Has("bbb") {
		t.Errorf("Expected {aaa, bbb}, got: %v", ids.Sorted())
	}
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fia.ledger")
	ledger := NewFile(path)

	if err := ledger.Save(docs.NewIdentitySet("a", "b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := ledger.Reset(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	ids, err := ledger.Load()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected empty ledger after reset, got %d", len(ids))
	}
}

func TestLoad_UnreadablePath(t *testing.T) {
	dir := t.TempDir()

	// A directory in place of the ledger file is a read error, not a first run.
	if _, err := NewFile(dir).Load(); err == nil {
		t.Error("Expected error when ledger path is a directory")
	}
}
