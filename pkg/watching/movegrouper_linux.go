//go:build linux

package watching

import (
	"time"

	"github.com/pathwatch/pathwatch/pkg/queue"
)

// pendingMove is a MOVED_FROM half waiting in the delayed queue for its
// MOVED_TO pair to arrive (matched by inotify cookie).
type pendingMove struct {
	cookie      uint32
	path        string
	isDirectory bool
}

// moveGrouper pairs a MOVED_FROM raw event with its MOVED_TO counterpart by
// inotify cookie, so the emitter can report a single Moved event instead of
// a delete followed by an unrelated create. A MOVED_FROM with no matching
// MOVED_TO within the grouping window (the file was moved outside the
// watched tree) degrades to a plain Deleted.
//
// Grounded in the Python original's inotify_move_event_grouper.py, which
// holds MOVED_FROM events in a short delay queue keyed the same way.
type moveGrouper struct {
	window time.Duration
	queue  *queue.DelayedQueue[pendingMove]
}

func newMoveGrouper(window time.Duration) *moveGrouper {
	if window <= 0 {
		window = defaultMoveGroupingWindow
	}
	return &moveGrouper{
		window: window,
		queue:  queue.NewDelayed[pendingMove](),
	}
}

// holdFrom enqueues a MOVED_FROM half, to be released as a bare deletion if
// no MOVED_TO claims it within the grouping window.
func (g *moveGrouper) holdFrom(cookie uint32, path string, isDirectory bool) {
	g.queue.Put(pendingMove{cookie: cookie, path: path, isDirectory: isDirectory}, g.window)
}

// claimTo attempts to pair a MOVED_TO with a previously held MOVED_FROM
// sharing the same cookie. ok is false if no match is queued (e.g. the
// MOVED_FROM already expired, or the source was outside the watched tree).
func (g *moveGrouper) claimTo(cookie uint32) (pendingMove, bool) {
	return g.queue.Remove(func(p pendingMove) bool { return p.cookie == cookie })
}

// expired blocks until a held MOVED_FROM's grouping window elapses without
// being claimed, returning it so the caller can emit a plain deletion. It
// returns ok=false only once the grouper has been closed and drained.
func (g *moveGrouper) expired() (pendingMove, bool) {
	return g.queue.Get()
}

func (g *moveGrouper) close() {
	g.queue.Close()
}

const defaultMoveGroupingWindow = 500 * time.Millisecond
