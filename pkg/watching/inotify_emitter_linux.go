//go:build linux

package watching

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/pathwatch/pathwatch/pkg/event"
)

// errWatchRootGone is surfaced on the error channel when the watch's root
// itself is removed or renamed away, since no amount of re-registration can
// recover a watch whose root no longer exists.
var errWatchRootGone = errors.New("watch root removed or renamed")

// inotifyEmitter is the Linux native Emitter (C9): it owns one inotifyHandle
// (C7), registers a watch per directory (recursively, if requested, walking
// the tree up front and adding new subdirectories as IN_CREATE|IN_ISDIR
// events arrive), and routes MOVED_FROM/MOVED_TO through a moveGrouper (C8)
// before translating the kernel's event mask into pkg/event.Event values.
type inotifyEmitter struct {
	handle *inotifyHandle
	mover  *moveGrouper
	root   string

	events chan event.Event
	errs   chan error
	stop   chan struct{}

	wg sync.WaitGroup
}

func newNativeEmitter(watch Watch, opts Options) (Emitter, error) {
	handle, err := newInotifyHandle()
	if err != nil {
		return nil, err
	}

	e := &inotifyEmitter{
		handle: handle,
		mover:  newMoveGrouper(opts.MoveGroupingWindow),
		root:   watch.Path,
		events: make(chan event.Event, watchEventsBufferSize),
		errs:   make(chan error, 8),
		stop:   make(chan struct{}),
	}

	if err := e.registerTree(watch.Path, watch.Recursive); err != nil {
		handle.close()
		return nil, err
	}

	e.wg.Add(2)
	go e.readLoop(watch.Recursive)
	go e.expiryLoop()

	go func() {
		e.wg.Wait()
		close(e.events)
		close(e.errs)
	}()

	return e, nil
}

// registerTree establishes a watch on root, and (if recursive) every
// subdirectory beneath it.
func (e *inotifyEmitter) registerTree(root string, recursive bool) error {
	if err := e.handle.add(root); err != nil {
		return err
	}
	if !recursive {
		return nil
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == root {
			return nil
		}
		if info.IsDir() {
			// Best-effort: a concurrently-removed subdirectory simply never
			// gets watched, which is consistent with it not existing by the
			// time the walk observes it.
			_ = e.handle.add(path)
		}
		return nil
	})
}

func (e *inotifyEmitter) readLoop(recursive bool) {
	defer e.wg.Done()
	for {
		raw, err := readRawEvents(e.handle.file)
		if err != nil {
			select {
			case <-e.stop:
				// Stop closed the descriptor out from under us; this is a
				// clean shutdown, not a backend failure.
			default:
				e.sendErr(err)
			}
			return
		}

		for _, r := range raw {
			e.handleRaw(r, recursive)
		}

		select {
		case <-e.stop:
			return
		default:
		}
	}
}

func (e *inotifyEmitter) handleRaw(r rawEvent, recursive bool) {
	if r.mask&unix.IN_Q_OVERFLOW != 0 {
		// The kernel's event queue overflowed and some events were lost.
		// Re-registering the tree repairs any watch the kernel may have
		// dropped along with them; the synthetic DirModified on the root
		// tells the caller its view of the tree may be stale and worth
		// reconciling, since the event stream it already saw is incomplete.
		_ = e.registerTree(e.root, recursive)
		e.emit(event.New(event.Modified, e.root, true).Synthetic())
		return
	}

	dirPath, ok := e.handle.pathForWD(r.wd)
	if !ok {
		return
	}
	path := dirPath
	if r.name != "" {
		path = filepath.Join(dirPath, r.name)
	}
	isDir := r.mask&unix.IN_ISDIR != 0

	switch {
	case r.mask&unix.IN_CREATE != 0:
		if isDir && recursive {
			_ = e.handle.add(path)
		}
		e.emit(event.New(event.Created, path, isDir))
	case r.mask&unix.IN_DELETE != 0:
		e.emit(event.New(event.Deleted, path, isDir))
	case r.mask&unix.IN_DELETE_SELF != 0, r.mask&unix.IN_MOVE_SELF != 0:
		e.handle.remove(dirPath)
		if dirPath == e.root {
			e.sendErr(errWatchRootGone)
			e.emit(event.New(event.Deleted, e.root, true))
			e.Stop()
		}
	case r.mask&unix.IN_MOVED_FROM != 0:
		e.mover.holdFrom(r.cookie, path, isDir)
	case r.mask&unix.IN_MOVED_TO != 0:
		if from, matched := e.mover.claimTo(r.cookie); matched {
			e.emit(event.NewMoved(from.path, path, isDir))
		} else {
			e.emit(event.New(event.Created, path, isDir))
		}
		if isDir && recursive {
			_ = e.handle.add(path)
		}
	case r.mask&unix.IN_CLOSE_WRITE != 0:
		e.emit(event.New(event.Modified, path, isDir))
		e.emit(event.New(event.Closed, path, isDir))
	case r.mask&unix.IN_CLOSE_NOWRITE != 0:
		e.emit(event.New(event.ClosedNoWrite, path, isDir))
	case r.mask&unix.IN_OPEN != 0:
		e.emit(event.New(event.Opened, path, isDir))
	case r.mask&unix.IN_MODIFY != 0, r.mask&unix.IN_ATTRIB != 0:
		e.emit(event.New(event.Modified, path, isDir))
	}
}

// expiryLoop drains MOVED_FROM halves whose grouping window elapsed without
// a matching MOVED_TO, emitting them as plain deletions.
func (e *inotifyEmitter) expiryLoop() {
	defer e.wg.Done()
	for {
		pending, ok := e.mover.expired()
		if !ok {
			return
		}
		e.emit(event.New(event.Deleted, pending.path, pending.isDirectory))
	}
}

func (e *inotifyEmitter) emit(evt event.Event) {
	select {
	case e.events <- evt:
	case <-e.stop:
	}
}

func (e *inotifyEmitter) sendErr(err error) {
	select {
	case e.errs <- err:
	default:
	}
}

func (e *inotifyEmitter) Events() <-chan event.Event { return e.events }
func (e *inotifyEmitter) Errors() <-chan error        { return e.errs }

func (e *inotifyEmitter) Stop() {
	select {
	case <-e.stop:
		return
	default:
	}
	close(e.stop)
	e.mover.close()
	e.handle.close()
}
