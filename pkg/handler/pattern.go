package handler

import (
	"github.com/pathwatch/pathwatch/pkg/event"
	"github.com/pathwatch/pathwatch/pkg/pattern"
)

// PatternMatchingHandler wraps a Handler so that events are forwarded only
// when their path matches a pattern.Matcher, optionally dropping directory
// events entirely. Grounded in the Python original's
// PatternMatchingEventHandler.
type PatternMatchingHandler struct {
	NopHandler
	Next              Handler
	Matcher           *pattern.Matcher
	IgnoreDirectories bool
}

// NewPatternMatchingHandler constructs a PatternMatchingHandler forwarding
// matched events to next.
func NewPatternMatchingHandler(next Handler, matcher *pattern.Matcher, ignoreDirectories bool) *PatternMatchingHandler {
	return &PatternMatchingHandler{Next: next, Matcher: matcher, IgnoreDirectories: ignoreDirectories}
}

func (h *PatternMatchingHandler) accepts(evt event.Event) bool {
	if h.IgnoreDirectories && evt.IsDirectory {
		return false
	}
	if !h.Matcher.Matches(evt.SrcPath) {
		return false
	}
	if evt.Kind == event.Moved && !h.Matcher.Matches(evt.DestPath) {
		return false
	}
	return true
}

func (h *PatternMatchingHandler) OnAny(evt event.Event) {
	if h.accepts(evt) {
		Dispatch(h.Next, evt)
	}
}
