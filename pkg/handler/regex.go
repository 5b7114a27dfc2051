package handler

import (
	"github.com/pathwatch/pathwatch/pkg/event"
	"github.com/pathwatch/pathwatch/pkg/pattern"
)

// RegexMatchingHandler is PatternMatchingHandler's regular-expression
// counterpart, supplementing a feature the distilled glob-only spec
// dropped but the Python original provides as
// RegexMatchingEventHandler.
type RegexMatchingHandler struct {
	NopHandler
	Next              Handler
	Matcher           *pattern.RegexMatcher
	IgnoreDirectories bool
}

// NewRegexMatchingHandler constructs a RegexMatchingHandler forwarding
// matched events to next.
func NewRegexMatchingHandler(next Handler, matcher *pattern.RegexMatcher, ignoreDirectories bool) *RegexMatchingHandler {
	return &RegexMatchingHandler{Next: next, Matcher: matcher, IgnoreDirectories: ignoreDirectories}
}

func (h *RegexMatchingHandler) accepts(evt event.Event) bool {
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

func (h *RegexMatchingHandler) OnAny(evt event.Event) {
	if h.accepts(evt) {
		Dispatch(h.Next, evt)
	}
}
