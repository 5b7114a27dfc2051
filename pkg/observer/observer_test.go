package observer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pathwatch/pathwatch/pkg/event"
	"github.com/pathwatch/pathwatch/pkg/handler"
	"github.com/pathwatch/pathwatch/pkg/watching"
)

type collectingHandler struct {
	handler.NopHandler
	events chan event.Event
}

func newCollectingHandler() *collectingHandler {
	return &collectingHandler{events: make(chan event.Event, 16)}
}

func (h *collectingHandler) OnAny(evt event.Event) {
	h.events <- evt
}

func testOptions() watching.Options {
	return watching.Options{PollInterval: 20 * time.Millisecond}
}

func TestObserverDispatchesCreatedEvent(t *testing.T) {
	dir := t.TempDir()

	o := New(watching.BackendPolling, testOptions(), nil)
	o.Start()
	defer o.Stop()

	h := newCollectingHandler()
	if _, err := o.Schedule(h, dir, true); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-h.events:
		if evt.Kind != event.Created || evt.SrcPath != "a.txt" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestObserverUnscheduleStopsDelivery(t *testing.T) {
	dir := t.TempDir()

	o := New(watching.BackendPolling, testOptions(), nil)
	o.Start()
	defer o.Stop()

	h := newCollectingHandler()
	w, err := o.Schedule(h, dir, true)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if err := o.Unschedule(w); err != nil {
		t.Fatalf("Unschedule failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-h.events:
		t.Fatalf("expected no events after unschedule, got %+v", evt)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestObserverUnscheduleAllIsIdempotent(t *testing.T) {
	o := New(watching.BackendPolling, testOptions(), nil)
	o.Start()

	o.UnscheduleAll()
	o.UnscheduleAll()

	o.Stop()
	if !o.Join(2 * time.Second) {
		t.Fatal("expected dispatch loop to stop")
	}
}

func TestObserverFailedScheduleLeavesNoBookkeeping(t *testing.T) {
	o := New(watching.BackendNative, testOptions(), nil)
	o.Start()
	defer o.Stop()

	h := newCollectingHandler()
	// A path that cannot exist should fail to establish an emitter on any
	// backend.
	nonexistent := filepath.Join(os.TempDir(), "pathwatch-does-not-exist-xyz")
	if _, err := o.Schedule(h, nonexistent, true); err == nil {
		t.Fatal("expected Schedule to fail for a nonexistent path")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.handlers) != 0 {
		t.Fatalf("expected no leftover handler bookkeeping, got %+v", o.handlers)
	}
}

type panickingCollectingHandler struct {
	handler.NopHandler
}

func (panickingCollectingHandler) OnAny(event.Event) { panic("handler exploded") }

func TestObserverSurvivesPanickingHandlerAndStillDispatchesToOthers(t *testing.T) {
	dir := t.TempDir()

	o := New(watching.BackendPolling, testOptions(), nil)
	o.Start()
	defer o.Stop()

	bad := panickingCollectingHandler{}
	good := newCollectingHandler()

	w, err := o.Schedule(bad, dir, true)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	o.AddHandler(good, w)

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-good.events:
		if evt.Kind != event.Created || evt.SrcPath != "a.txt" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch to reach the non-panicking handler")
	}
}

func TestObserverHandlerCanUnscheduleItsOwnWatch(t *testing.T) {
	dir := t.TempDir()

	o := New(watching.BackendPolling, testOptions(), nil)
	o.Start()
	defer o.Stop()

	done := make(chan struct{})
	var w watching.Watch
	selfUnscheduling := &selfUnscheduleHandler{
		unschedule: func() { _ = o.Unschedule(w) },
		done:       done,
	}

	scheduled, err := o.Schedule(selfUnscheduling, dir, true)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	w = scheduled

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for self-unscheduling handler")
	}
}

type selfUnscheduleHandler struct {
	handler.NopHandler
	unschedule func()
	done       chan struct{}
}

func (h *selfUnscheduleHandler) OnAny(event.Event) {
	h.unschedule()
	close(h.done)
}
