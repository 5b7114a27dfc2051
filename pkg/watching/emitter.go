// Package watching implements the per-platform Emitter backends: the
// producers that turn filesystem activity under a single Watch into a
// stream of pkg/event.Event values for the observer's dispatch loop to
// consume.
package watching

import (
	"time"

	"github.com/pathwatch/pathwatch/pkg/event"
)

// watchEventsBufferSize is the channel capacity every backend buffers
// outgoing events in before a slow consumer causes backpressure.
const watchEventsBufferSize = 256

// Watch describes a single filesystem location to observe.
type Watch struct {
	// Path is the filesystem path to watch.
	Path string
	// Recursive controls whether the whole tree beneath Path is observed,
	// rather than only Path's immediate children.
	Recursive bool
}

// Emitter produces events for a single Watch until Stop is called. Each
// concrete backend (polling, inotify, FSEvents, ReadDirectoryChanges)
// implements this contract; the observer is backend-agnostic.
type Emitter interface {
	// Events returns the channel events are delivered on. It is closed once
	// the emitter has fully stopped.
	Events() <-chan event.Event
	// Errors returns the channel backend errors are delivered on (e.g. a
	// failed read of the kernel event stream, the watch root disappearing,
	// or a failed polling rescan). It is closed alongside Events.
	Errors() <-chan error
	// Stop requests the emitter shut down. It does not block; callers
	// needing shutdown to complete should drain Events until it closes.
	Stop()
}

// Backend identifies which concrete Emitter implementation to use for a
// Watch.
type Backend int

const (
	// BackendAuto selects the best available native backend for the
	// current platform, falling back to BackendPolling if none applies.
	BackendAuto Backend = iota
	// BackendPolling forces the portable snapshot-diff backend (C6),
	// regardless of platform. Exposed primarily so tests can force
	// deterministic, platform-independent behavior.
	BackendPolling
	// BackendNative selects the platform's native backend: inotify on
	// Linux, FSEvents on Darwin, ReadDirectoryChangesW on Windows.
	BackendNative
)

// New constructs an Emitter for watch using the requested backend,
// starting it immediately.
func New(watch Watch, backend Backend, opts Options) (Emitter, error) {
	if backend == BackendPolling {
		return newPollingEmitter(watch, opts)
	}
	return newNativeEmitter(watch, opts)
}

// Options configures an Emitter's behavior across backends.
type Options struct {
	// PollInterval is how often the polling backend rescans. Ignored by
	// native backends. Zero selects a one-second default.
	PollInterval time.Duration
	// MoveGroupingWindow is how long the Linux backend holds a MOVED_FROM
	// event waiting for its MOVED_TO pair before emitting it as a plain
	// Deleted. Ignored by other backends. Zero selects a 500ms default.
	MoveGroupingWindow time.Duration
}
