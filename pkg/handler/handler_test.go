package handler

import (
	"testing"

	"github.com/pathwatch/pathwatch/pkg/event"
	"github.com/pathwatch/pathwatch/pkg/pattern"
)

type recordingHandler struct {
	NopHandler
	any     []event.Event
	created []event.Event
}

func (h *recordingHandler) OnAny(evt event.Event)     { h.any = append(h.any, evt) }
func (h *recordingHandler) OnCreated(evt event.Event) { h.created = append(h.created, evt) }

func TestDispatchCallsOnAnyAndKindSpecific(t *testing.T) {
	h := &recordingHandler{}
	evt := event.New(event.Created, "a.txt", false)
	Dispatch(h, evt)

	if len(h.any) != 1 || len(h.created) != 1 {
		t.Fatalf("expected one OnAny and one OnCreated call, got any=%d created=%d", len(h.any), len(h.created))
	}
}

type panickingHandler struct {
	NopHandler
	createdCalls int
}

func (h *panickingHandler) OnAny(event.Event) { panic("boom") }
func (h *panickingHandler) OnCreated(event.Event) {
	h.createdCalls++
}

func TestDispatchRecoversPanicAndStillCallsKindSpecificMethod(t *testing.T) {
	h := &panickingHandler{}
	evt := event.New(event.Created, "a.txt", false)

	recovered := Dispatch(h, evt)

	if recovered == nil {
		t.Fatal("expected Dispatch to report the recovered panic")
	}
	if h.createdCalls != 1 {
		t.Fatalf("expected OnCreated to still run after OnAny panicked, got %d calls", h.createdCalls)
	}
}

func TestDispatchReturnsNilWhenNothingPanics(t *testing.T) {
	h := &recordingHandler{}
	if recovered := Dispatch(h, event.New(event.Created, "a.txt", false)); recovered != nil {
		t.Fatalf("expected nil, got %v", recovered)
	}
}

func TestPatternMatchingHandlerFiltersByPath(t *testing.T) {
	next := &recordingHandler{}
	matcher, err := pattern.New([]string{"*.go"}, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	h := NewPatternMatchingHandler(next, matcher, false)

	Dispatch(h, event.New(event.Created, "a.go", false))
	Dispatch(h, event.New(event.Created, "a.txt", false))

	if len(next.any) != 1 {
		t.Fatalf("expected exactly one forwarded event, got %d", len(next.any))
	}
	if next.any[0].SrcPath != "a.go" {
		t.Fatalf("unexpected forwarded event: %+v", next.any[0])
	}
}

func TestPatternMatchingHandlerIgnoresDirectories(t *testing.T) {
	next := &recordingHandler{}
	matcher, err := pattern.New(nil, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	h := NewPatternMatchingHandler(next, matcher, true)

	Dispatch(h, event.New(event.Created, "sub", true))
	Dispatch(h, event.New(event.Created, "a.txt", false))

	if len(next.any) != 1 || next.any[0].IsDirectory {
		t.Fatalf("expected directory event to be filtered out, got %+v", next.any)
	}
}

func TestPatternMatchingHandlerMovedRequiresBothPathsMatch(t *testing.T) {
	next := &recordingHandler{}
	matcher, err := pattern.New([]string{"*.go"}, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	h := NewPatternMatchingHandler(next, matcher, false)

	Dispatch(h, event.NewMoved("a.go", "a.txt", false))
	if len(next.any) != 0 {
		t.Fatalf("expected move to non-matching destination to be filtered, got %+v", next.any)
	}

	Dispatch(h, event.NewMoved("a.go", "b.go", false))
	if len(next.any) != 1 {
		t.Fatalf("expected move between two matching paths to be forwarded, got %+v", next.any)
	}
}
