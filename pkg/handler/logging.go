package handler

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/pathwatch/pathwatch/pkg/event"
	"github.com/pathwatch/pathwatch/pkg/logging"
)

// LoggingHandler logs every event it receives through a *logging.Logger, one
// line per event, prefixed with a running, comma-grouped count of events
// seen (via go-humanize) so a long session's log stays easy to scan. It is
// meant as a diagnostic handler to chain in front of a real one.
type LoggingHandler struct {
	NopHandler
	Next   Handler
	Logger *logging.Logger

	count uint64
}

// NewLoggingHandler constructs a LoggingHandler that logs via logger and
// forwards every event to next (which may be nil to log only).
func NewLoggingHandler(logger *logging.Logger, next Handler) *LoggingHandler {
	return &LoggingHandler{Logger: logger, Next: next}
}

func (h *LoggingHandler) OnAny(evt event.Event) {
	h.Logger.Println(h.describe(evt))
	if h.Next != nil {
		Dispatch(h.Next, evt)
	}
}

func (h *LoggingHandler) describe(evt event.Event) string {
	n := atomic.AddUint64(&h.count, 1)

	kind := evt.Kind.String()
	if evt.IsSynthetic {
		kind += " (synthetic)"
	}

	prefix := "#" + humanizeCount(n) + " "
	if evt.Kind == event.Moved {
		return prefix + kind + ": " + evt.SrcPath + " -> " + evt.DestPath
	}
	return prefix + kind + ": " + evt.SrcPath
}

// humanizeCount renders n with thousands separators (e.g. "14,205"), so the
// running count in describe stays readable once a watch has logged a lot of
// events.
func humanizeCount(n uint64) string {
	return humanize.Comma(int64(n))
}
