package watching

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pathwatch/pathwatch/pkg/event"
)

func TestPollingEmitterReportsCreate(t *testing.T) {
	dir := t.TempDir()

	emitter, err := New(Watch{Path: dir, Recursive: true}, BackendPolling, Options{PollInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer emitter.Stop()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-emitter.Events():
		if evt.Kind != event.Created || evt.SrcPath != "a.txt" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for created event")
	}
}

func TestPollingEmitterReportsMove(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(oldPath, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	emitter, err := New(Watch{Path: dir, Recursive: true}, BackendPolling, Options{PollInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer emitter.Stop()

	// Let the emitter establish its baseline snapshot before the rename.
	time.Sleep(30 * time.Millisecond)

	newPath := filepath.Join(dir, "new.txt")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-emitter.Events():
		if evt.Kind != event.Moved || evt.SrcPath != "old.txt" || evt.DestPath != "new.txt" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for moved event")
	}
}

func TestPollingEmitterReportsRootDeletedAndStops(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "watched")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}

	emitter, err := New(Watch{Path: root, Recursive: true}, BackendPolling, Options{PollInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer emitter.Stop()

	// Let the emitter establish its baseline snapshot before removing root.
	time.Sleep(30 * time.Millisecond)

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-emitter.Events():
		if evt.Kind != event.Deleted || evt.SrcPath != "" || !evt.IsDirectory {
			t.Fatalf("expected a root DirDeleted event, got: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for root deleted event")
	}

	select {
	case _, ok := <-emitter.Events():
		if ok {
			t.Fatal("expected Events channel to be closed after root deletion")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Events to close after root deletion")
	}
}

func TestPollingEmitterStopClosesChannels(t *testing.T) {
	dir := t.TempDir()

	emitter, err := New(Watch{Path: dir}, BackendPolling, Options{PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	emitter.Stop()

	select {
	case _, ok := <-emitter.Events():
		if ok {
			t.Fatal("expected Events channel to be closed or empty after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Events to close")
	}
}
