package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustScan(t *testing.T, root string) *Snapshot {
	t.Helper()
	snap, err := Scan(root, ScanOptions{Recursive: true})
	if err != nil {
		t.Fatalf("Scan(%q) failed: %v", root, err)
	}
	return snap
}

func TestDiffNoChangeIsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	before := mustScan(t, dir)
	after := mustScan(t, dir)

	result := Diff(before, after)
	if !result.Empty() {
		t.Fatalf("expected empty diff for unchanged tree, got %+v", result)
	}
}

func TestDiffDetectsRenameAsSingleMovedPair(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(oldPath, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	before := mustScan(t, dir)

	newPath := filepath.Join(dir, "new.txt")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	after := mustScan(t, dir)

	result := Diff(before, after)
	if len(result.FilesMoved) != 1 {
		t.Fatalf("expected exactly one moved pair, got %+v", result.FilesMoved)
	}
	if result.FilesMoved[0].From != "old.txt" || result.FilesMoved[0].To != "new.txt" {
		t.Fatalf("unexpected moved pair: %+v", result.FilesMoved[0])
	}
	if len(result.FilesCreated) != 0 || len(result.FilesDeleted) != 0 || len(result.FilesModified) != 0 {
		t.Fatalf("rename must not also report create/delete/modify: %+v", result)
	}
}

func TestDiffAgainstEmptyReportsEverythingCreated(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	after := mustScan(t, dir)
	result := Diff(Empty(dir), after)

	if len(result.FilesCreated) != 1 || result.FilesCreated[0] != filepath.Join("sub", "a.txt") {
		t.Fatalf("expected sub/a.txt created, got %+v", result.FilesCreated)
	}
	if len(result.DirsCreated) != 1 || result.DirsCreated[0] != "sub" {
		t.Fatalf("expected sub created, got %+v", result.DirsCreated)
	}
}

func TestDiffDetectsModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	before := mustScan(t, dir)

	// Ensure a distinguishable mtime: the filesystem's timestamp resolution
	// may be coarser than our clock, so bump it explicitly rather than
	// relying on the write alone.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	after := mustScan(t, dir)

	result := Diff(before, after)
	if len(result.FilesModified) != 1 || result.FilesModified[0] != "a.txt" {
		t.Fatalf("expected a.txt modified, got %+v", result)
	}
}

func TestDiffDetectsDeletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	before := mustScan(t, dir)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	after := mustScan(t, dir)

	result := Diff(before, after)
	if len(result.FilesDeleted) != 1 || result.FilesDeleted[0] != "a.txt" {
		t.Fatalf("expected a.txt deleted, got %+v", result)
	}
}

func TestScanNonRecursiveOnlyRecordsImmediateChildren(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "top.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := Scan(dir, ScanOptions{Recursive: false})
	if err != nil {
		t.Fatal(err)
	}

	paths := snap.Paths()
	if len(paths) != 2 {
		t.Fatalf("expected exactly [sub top.txt], got %v", paths)
	}
}
