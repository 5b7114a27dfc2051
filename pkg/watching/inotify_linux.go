//go:build linux

package watching

import (
	"bytes"
	"os"
	"sync"
	"unsafe"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// inotifyWatchMask is the set of kernel events a watch descriptor is
// registered for. Grounded in the mask fsnotify/fsnotify's backend_inotify.go
// assembles for a recursive, create/delete/modify/move/attrib watch.
const inotifyWatchMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_DELETE_SELF |
	unix.IN_MODIFY | unix.IN_ATTRIB |
	unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_MOVE_SELF |
	unix.IN_OPEN | unix.IN_CLOSE_WRITE | unix.IN_CLOSE_NOWRITE |
	unix.IN_DONT_FOLLOW | unix.IN_EXCL_UNLINK

// ErrWatchLimitReached is wrapped and returned when inotify_add_watch
// fails with ENOSPC (fs.inotify.max_user_watches exhausted).
var ErrWatchLimitReached = errors.New("inotify watch limit reached (fs.inotify.max_user_watches)")

// ErrInstanceLimitReached is wrapped and returned when inotify_init1 or
// inotify_add_watch fails with EMFILE (fs.inotify.max_user_instances
// exhausted, or the process file descriptor limit reached).
var ErrInstanceLimitReached = errors.New("inotify instance limit reached (fs.inotify.max_user_instances)")

// maxWatchDescriptors bounds how many directories a single inotifyHandle
// keeps a live watch descriptor for. Beyond this, the least-recently-touched
// watch is removed from the kernel and its bookkeeping dropped; it is not
// re-established, so no further events arrive for that directory.
const maxWatchDescriptors = 8192

// inotifyHandle wraps a single inotify instance: the raw file descriptor,
// the live watch-descriptor bookkeeping (bidirectional wd<->path maps kept
// current via an LRU so long-lived recursive watches don't exhaust
// fs.inotify.max_user_watches), and the raw-event read loop.
//
// Wraps raw golang.org/x/sys/unix calls (per fsnotify/fsnotify's
// backend_inotify.go) with bidirectional wd<->path bookkeeping and LRU
// eviction, so a long-lived recursive watch degrades instead of failing
// outright once fs.inotify.max_user_watches is exhausted.
type inotifyHandle struct {
	// fd is the raw descriptor, used only for InotifyAddWatch/InotifyRmWatch
	// (which take a plain int). All reading and closing goes through file
	// instead, so that Stop can cancel a blocked read (see readRawEvents).
	fd   int
	file *os.File

	mu       sync.Mutex
	wdToPath map[int32]string
	pathToWd map[string]int32
	lru      *lru.Cache
}

func newInotifyHandle() (*inotifyHandle, error) {
	// IN_NONBLOCK, combined with wrapping the descriptor in an os.File below,
	// lets the Go runtime's poller manage the blocking read: it parks the
	// reading goroutine without busy-spinning on EAGAIN, and unblocks it the
	// moment the file is closed, rather than leaving a raw blocking read()
	// to race a concurrent close of the same fd number.
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		if err == unix.EMFILE {
			return nil, errors.Wrap(ErrInstanceLimitReached, err.Error())
		}
		return nil, errors.Wrap(err, "unable to initialize inotify")
	}

	h := &inotifyHandle{
		fd:       fd,
		file:     os.NewFile(uintptr(fd), "inotify"),
		wdToPath: make(map[int32]string),
		pathToWd: make(map[string]int32),
	}
	h.lru = lru.New(maxWatchDescriptors)
	h.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		h.evictWatch(key.(string))
	}

	return h, nil
}

// evictWatch drops the kernel watch for path (called with h.mu held via the
// LRU's OnEvicted hook, which groupcache/lru invokes synchronously from
// Add).
func (h *inotifyHandle) evictWatch(path string) {
	if wd, ok := h.pathToWd[path]; ok {
		unix.InotifyRmWatch(h.fd, uint32(wd))
		delete(h.pathToWd, path)
		delete(h.wdToPath, wd)
	}
}

// add registers path for events, evicting the least-recently-used watch if
// the bound is reached.
func (h *inotifyHandle) add(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.pathToWd[path]; exists {
		h.lru.Add(path, struct{}{})
		return nil
	}

	wd, err := unix.InotifyAddWatch(h.fd, path, inotifyWatchMask)
	if err != nil {
		switch err {
		case unix.ENOSPC:
			return errors.Wrap(ErrWatchLimitReached, err.Error())
		case unix.EMFILE:
			return errors.Wrap(ErrInstanceLimitReached, err.Error())
		case unix.EACCES:
			return errors.Wrap(err, "permission denied establishing inotify watch")
		}
		return errors.Wrap(err, "unable to establish inotify watch")
	}

	h.wdToPath[int32(wd)] = path
	h.pathToWd[path] = int32(wd)
	h.lru.Add(path, struct{}{})

	return nil
}

// remove unregisters path, if watched.
func (h *inotifyHandle) remove(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if wd, ok := h.pathToWd[path]; ok {
		unix.InotifyRmWatch(h.fd, uint32(wd))
		delete(h.pathToWd, path)
		delete(h.wdToPath, wd)
		h.lru.Remove(path)
	}
}

// pathForWD resolves a raw watch descriptor to its path, refreshing its
// recency in the LRU. Touched on every event so an actively-changing
// subtree is the last one evicted under pressure.
func (h *inotifyHandle) pathForWD(wd int32) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	path, ok := h.wdToPath[wd]
	if ok {
		h.lru.Add(path, struct{}{})
	}
	return path, ok
}

// close closes the underlying file, which also unblocks any goroutine
// currently parked in file.Read (see readRawEvents).
func (h *inotifyHandle) close() {
	h.file.Close()
}

// rawEvent mirrors the on-wire layout of struct inotify_event, after the
// variable-length name has been extracted: {s32 wd, u32 mask, u32 cookie,
// u32 len, char name[]}. An IN_Q_OVERFLOW event (kernel event queue
// overflowed, events were lost) is reported with wd == -1 and no name, per
// inotify(7); it is passed through rather than filtered so the emitter can
// resynchronize instead of silently missing whatever was dropped.
type rawEvent struct {
	wd     int32
	mask   uint32
	cookie uint32
	name   string
}

// readRawEvents performs one read of the inotify file (blocking the calling
// goroutine via the runtime's poller, not a busy spin, since the underlying
// descriptor is non-blocking) and parses every event frame out of the
// buffer. A read interrupted by the file being closed (Stop) surfaces as
// os.ErrClosed, which the caller distinguishes from a genuine backend
// failure.
func readRawEvents(file *os.File) ([]rawEvent, error) {
	var buf [unix.SizeofInotifyEvent * 4096]byte

	n, err := file.Read(buf[:])
	if err != nil {
		return nil, err
	}
	if n < unix.SizeofInotifyEvent {
		return nil, errors.New("short read from inotify descriptor")
	}

	var events []rawEvent
	var offset uint32
	for offset <= uint32(n)-unix.SizeofInotifyEvent {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameLen := uint32(raw.Len)

		name := ""
		if nameLen > 0 {
			nameBytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
			name = string(bytes.TrimRight(nameBytes, "\x00"))
		}

		events = append(events, rawEvent{
			wd:     raw.Wd,
			mask:   raw.Mask,
			cookie: raw.Cookie,
			name:   name,
		})

		offset += unix.SizeofInotifyEvent + nameLen
	}

	return events, nil
}
