package watching

import (
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/pathwatch/pathwatch/pkg/event"
	"github.com/pathwatch/pathwatch/pkg/snapshot"
)

const defaultPollInterval = time.Second

// pollingEmitter is the portable Emitter (C6): it re-scans watch.Path on a
// timer and turns each snapshot.Diff into a batch of events. Grounded in the
// teacher's pkg/filesystem/watch_poll.go poll loop, generalized from a
// single change-notification signal into spec.md's full per-path event
// stream by routing through pkg/snapshot instead of a flat os.FileInfo map.
type pollingEmitter struct {
	events chan event.Event
	errs   chan error
	stop   chan struct{}
}

func newPollingEmitter(watch Watch, opts Options) (Emitter, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	e := &pollingEmitter{
		events: make(chan event.Event, watchEventsBufferSize),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
	}

	go e.run(watch, interval)

	return e, nil
}

func (e *pollingEmitter) run(watch Watch, interval time.Duration) {
	defer close(e.events)
	defer close(e.errs)

	scanOpts := snapshot.ScanOptions{Recursive: watch.Recursive}

	previous := snapshot.Empty(watch.Path)
	if initial, err := snapshot.Scan(watch.Path, scanOpts); err == nil {
		previous = initial
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			current, err := snapshot.Scan(watch.Path, scanOpts)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					// The root itself is gone: there is nothing left to poll,
					// so report it deleted and stop rather than spinning on
					// the same scan failure forever.
					select {
					case e.events <- event.New(event.Deleted, "", true):
					case <-e.stop:
					}
					return
				}
				select {
				case e.errs <- err:
				default:
				}
				continue
			}

			diff := snapshot.Diff(previous, current)
			previous = current

			if diff.Empty() {
				continue
			}

			for _, evt := range diffToEvents(diff) {
				select {
				case e.events <- evt:
				case <-e.stop:
					return
				}
			}
		}
	}
}

// diffToEvents expands a classified snapshot.Result into the event stream
// order spec.md expects: deletions and moves first (so a handler never sees
// a create at a path that's about to be vacated by a pending move),
// followed by creates, followed by modifications.
func diffToEvents(diff snapshot.Result) []event.Event {
	var events []event.Event

	for _, pair := range diff.DirsMoved {
		events = append(events, event.NewMoved(pair.From, pair.To, true))
	}
	for _, pair := range diff.FilesMoved {
		events = append(events, event.NewMoved(pair.From, pair.To, false))
	}
	for _, path := range diff.DirsDeleted {
		events = append(events, event.New(event.Deleted, path, true))
	}
	for _, path := range diff.FilesDeleted {
		events = append(events, event.New(event.Deleted, path, false))
	}
	for _, path := range diff.DirsCreated {
		events = append(events, event.New(event.Created, path, true))
	}
	for _, path := range diff.FilesCreated {
		events = append(events, event.New(event.Created, path, false))
	}
	for _, path := range diff.DirsModified {
		events = append(events, event.New(event.Modified, path, true))
	}
	for _, path := range diff.FilesModified {
		events = append(events, event.New(event.Modified, path, false))
	}

	return events
}

func (e *pollingEmitter) Events() <-chan event.Event { return e.events }
func (e *pollingEmitter) Errors() <-chan error        { return e.errs }

func (e *pollingEmitter) Stop() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}
