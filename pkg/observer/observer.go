// Package observer implements the Observer (C12): the scheduler that owns
// one Emitter per distinct Watch (path plus recursive flag), fans every
// emitter's events into a single deduplicating queue, and dispatches them to
// the handlers registered for that watch.
//
// Grounded in the Python original's src/watchdog/observers/api.py
// (ObservedWatch, EventEmitter, EventDispatcher, BaseObserver), translated
// from Python's GIL-protected shared dict/set bookkeeping into an
// explicit sync.Mutex over the same four maps the original keeps
// (_watches, _handlers, _emitters, _emitter_for_watch).
package observer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pathwatch/pathwatch/pkg/event"
	"github.com/pathwatch/pathwatch/pkg/handler"
	"github.com/pathwatch/pathwatch/pkg/logging"
	"github.com/pathwatch/pathwatch/pkg/queue"
	"github.com/pathwatch/pathwatch/pkg/watching"
)

// dispatched is an event paired with the watch it arrived on, the unit the
// internal dedup queue carries.
type dispatched struct {
	evt   event.Event
	watch watching.Watch
}

// Observer schedules watches, attaches handlers to them, and dispatches
// every emitted event to the handlers registered for its watch.
type Observer struct {
	// id uniquely identifies this Observer instance in log output, useful
	// when a process runs more than one concurrently.
	id string

	mu       sync.Mutex
	watches  map[watching.Watch]bool
	handlers map[watching.Watch][]handler.Handler
	emitters map[watching.Watch]watching.Emitter
	backend  watching.Backend
	options  watching.Options
	logger   *logging.Logger

	internalQueue *queue.DedupQueue[dispatched]
	stop          chan struct{}
	stopped       chan struct{}
	once          sync.Once
}

// New constructs an Observer. backend selects which Emitter implementation
// newly scheduled watches use (watching.BackendAuto picks the platform's
// native backend, falling back to polling).
func New(backend watching.Backend, opts watching.Options, logger *logging.Logger) *Observer {
	id := uuid.NewString()
	o := &Observer{
		id:            id,
		watches:       make(map[watching.Watch]bool),
		handlers:      make(map[watching.Watch][]handler.Handler),
		emitters:      make(map[watching.Watch]watching.Emitter),
		backend:       backend,
		options:       opts,
		logger:        logger.Sublogger(id),
		internalQueue: queue.NewDedup[dispatched](),
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	return o
}

// ID returns the Observer's unique instance identifier.
func (o *Observer) ID() string {
	return o.id
}

// Schedule starts watching path (recursive, if requested) and attaches h to
// receive its events. If an emitter for an equal Watch already exists, h is
// simply added to its handler list rather than starting a second emitter,
// matching the Python original's reuse-by-equal-watch behavior.
func (o *Observer) Schedule(h handler.Handler, path string, recursive bool) (watching.Watch, error) {
	w := watching.Watch{Path: path, Recursive: recursive}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.handlers[w] = append(o.handlers[w], h)

	if _, exists := o.emitters[w]; exists {
		o.watches[w] = true
		return w, nil
	}

	emitter, err := watching.New(w, o.backend, o.options)
	if err != nil {
		// Roll back the handler registration: a failed schedule must leave
		// no bookkeeping behind.
		o.removeHandlerLocked(h, w)
		if len(o.handlers[w]) == 0 {
			delete(o.handlers, w)
		}
		return watching.Watch{}, errors.Wrap(err, "unable to start emitter")
	}

	o.emitters[w] = emitter
	o.watches[w] = true

	go o.pump(w, emitter)

	return w, nil
}

// pump forwards every event an emitter produces into the observer's
// internal dedup queue, tagged with its originating watch. Errors from the
// emitter are logged as warnings, not queued.
func (o *Observer) pump(w watching.Watch, emitter watching.Emitter) {
	for {
		select {
		case evt, ok := <-emitter.Events():
			if !ok {
				return
			}
			o.internalQueue.Put(dispatched{evt: evt, watch: w})
		case err, ok := <-emitter.Errors():
			if !ok {
				continue
			}
			if o.logger != nil {
				o.logger.Warn(err)
			}
		}
	}
}

// AddHandler attaches h to an already-scheduled watch.
func (o *Observer) AddHandler(h handler.Handler, w watching.Watch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[w] = append(o.handlers[w], h)
}

// RemoveHandler detaches h from w. It is a no-op if h was never attached.
func (o *Observer) RemoveHandler(h handler.Handler, w watching.Watch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeHandlerLocked(h, w)
}

func (o *Observer) removeHandlerLocked(h handler.Handler, w watching.Watch) {
	handlers := o.handlers[w]
	for i, existing := range handlers {
		if existing == h {
			o.handlers[w] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// Unschedule stops w's emitter and detaches every handler registered for
// it. It is safe to call from within a handler callback: the dispatch loop
// snapshots its handler list before invoking any of them (see dispatchOne),
// so a handler unscheduling its own watch never deadlocks or mutates a
// slice mid-iteration.
func (o *Observer) Unschedule(w watching.Watch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	emitter, exists := o.emitters[w]
	if !exists {
		return errors.New("watch is not scheduled")
	}

	emitter.Stop()
	delete(o.emitters, w)
	delete(o.handlers, w)
	delete(o.watches, w)

	return nil
}

// UnscheduleAll stops every watch and detaches every handler. Calling it
// when nothing is scheduled is a harmless no-op.
func (o *Observer) UnscheduleAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for w, emitter := range o.emitters {
		emitter.Stop()
		delete(o.emitters, w)
	}
	o.handlers = make(map[watching.Watch][]handler.Handler)
	o.watches = make(map[watching.Watch]bool)
}

// Start begins the observer's dispatch loop in the background. It returns
// immediately; call Stop (and optionally Join) to shut it down.
func (o *Observer) Start() {
	go o.run()
}

func (o *Observer) run() {
	defer close(o.stopped)
	for {
		select {
		case <-o.stop:
			return
		default:
		}

		d, ok := o.internalQueue.Get()
		if !ok {
			return
		}
		o.dispatchOne(d)
	}
}

// dispatchOne invokes every handler currently registered for d.watch. The
// handler slice is copied under lock and then invoked without holding it,
// so a handler that calls Unschedule/AddHandler/RemoveHandler on this
// Observer does not deadlock and does not race the slice it's being
// iterated from — a deliberate departure from the Python original, which
// holds its lock for the whole dispatch and therefore cannot tolerate a
// handler re-entering the observer. A handler whose method panics is logged
// and skipped; dispatch still proceeds to every other handler in the list.
func (o *Observer) dispatchOne(d dispatched) {
	o.mu.Lock()
	handlers := append([]handler.Handler(nil), o.handlers[d.watch]...)
	o.mu.Unlock()

	for _, h := range handlers {
		if r := handler.Dispatch(h, d.evt); r != nil {
			if o.logger != nil {
				o.logger.Error(errors.Errorf("handler panicked: %v", r))
			}
		}
	}
}

// Stop requests the dispatch loop shut down and stops every scheduled
// emitter. It does not block; call Join to wait for shutdown to complete.
func (o *Observer) Stop() {
	o.once.Do(func() {
		close(o.stop)
		o.internalQueue.Close()
	})
	o.UnscheduleAll()
}

// Join blocks until the dispatch loop started by Start has fully exited, or
// the timeout elapses, in which case it returns false.
func (o *Observer) Join(timeout time.Duration) bool {
	select {
	case <-o.stopped:
		return true
	case <-time.After(timeout):
		return false
	}
}
