// Package handler provides the consumer-side Handler contract and a small
// set of ready-made handlers (pattern-filtering, regex-filtering, logging).
//
// Grounded in the Python original's src/watchdog/events.py
// FileSystemEventHandler hierarchy, translated from one dynamically-typed
// dispatch method into Go's per-kind interface methods plus a default
// Dispatch helper.
package handler

import "github.com/pathwatch/pathwatch/pkg/event"

// Handler receives classified filesystem events. OnAny is always called
// first for every event, followed by the kind-specific method. Embedding
// NopHandler lets a caller implement only the methods they care about.
type Handler interface {
	OnAny(event.Event)
	OnCreated(event.Event)
	OnDeleted(event.Event)
	OnModified(event.Event)
	OnMoved(event.Event)
	OnOpened(event.Event)
	OnClosed(event.Event)
	OnClosedNoWrite(event.Event)
}

// NopHandler implements Handler with no-op methods, so a concrete handler
// need only embed it and override what it cares about.
type NopHandler struct{}

func (NopHandler) OnAny(event.Event)           {}
func (NopHandler) OnCreated(event.Event)       {}
func (NopHandler) OnDeleted(event.Event)       {}
func (NopHandler) OnModified(event.Event)      {}
func (NopHandler) OnMoved(event.Event)         {}
func (NopHandler) OnOpened(event.Event)        {}
func (NopHandler) OnClosed(event.Event)        {}
func (NopHandler) OnClosedNoWrite(event.Event) {}

// Dispatch routes evt to h's OnAny and the method matching evt.Kind. It is
// what an observer's dispatch loop calls for every event delivered to a
// handler. Each method is invoked behind its own recover, so a handler that
// panics in OnAny still gets its kind-specific method called, and a panic
// here never takes down the caller's goroutine. If anything panicked, the
// recovered value is returned so the caller can log it; nil means clean
// dispatch.
func Dispatch(h Handler, evt event.Event) (recovered interface{}) {
	invoke := func(method func(event.Event)) {
		defer func() {
			if r := recover(); r != nil && recovered == nil {
				recovered = r
			}
		}()
		method(evt)
	}

	invoke(h.OnAny)
	switch evt.Kind {
	case event.Created:
		invoke(h.OnCreated)
	case event.Deleted:
		invoke(h.OnDeleted)
	case event.Modified:
		invoke(h.OnModified)
	case event.Moved:
		invoke(h.OnMoved)
	case event.Opened:
		invoke(h.OnOpened)
	case event.Closed:
		invoke(h.OnClosed)
	case event.ClosedNoWrite:
		invoke(h.OnClosedNoWrite)
	}
	return
}
