package queue

import (
	"container/list"
	"sync"
	"time"
)

// delayedItem pairs a queued value with the time at which it becomes
// visible to Get.
type delayedItem[T any] struct {
	value     T
	visibleAt time.Time
}

// DelayedQueue is a thread-safe queue whose items are invisible to Get
// until a per-item delay elapses. It backs the inotify move-event grouper
// (C8): a MOVED_FROM event is held here for a short window so that its
// paired MOVED_TO (if any) can be matched before the lone delete/create
// fallback fires.
//
// Grounded in the pairing window inotify_buffer.py implements around
// raw inotify reads: items are scanned in insertion order, and Find/Remove
// let a later MOVED_TO locate and pull out its MOVED_FROM half by predicate
// rather than by position.
type DelayedQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool
}

// NewDelayed constructs an empty DelayedQueue.
func NewDelayed[T any]() *DelayedQueue[T] {
	q := &DelayedQueue[T]{items: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends value, making it visible to Get only once delay has elapsed.
// A zero or negative delay makes it visible immediately.
func (q *DelayedQueue[T]) Put(value T, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items.PushBack(delayedItem[T]{value: value, visibleAt: time.Now().Add(delay)})
	q.cond.Broadcast()
}

// Get removes and returns the earliest-inserted item whose delay has
// elapsed, blocking until one becomes visible or the queue is closed. ok is
// false only once the queue is closed and has no more items that will ever
// become visible.
func (q *DelayedQueue[T]) Get() (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if elem, wait := q.earliestReady(); elem != nil {
			q.items.Remove(elem)
			return elem.Value.(delayedItem[T]).value, true
		} else if q.closed && q.items.Len() == 0 {
			return value, false
		} else if wait > 0 {
			q.waitWithTimeout(wait)
		} else {
			q.cond.Wait()
		}
	}
}

// earliestReady returns the front-most element whose visibleAt has passed,
// along with how long the caller should wait if none is ready yet (0 if the
// queue is empty and a signal should be awaited instead).
func (q *DelayedQueue[T]) earliestReady() (*list.Element, time.Duration) {
	now := time.Now()
	var soonest time.Duration
	for e := q.items.Front(); e != nil; e = e.Next() {
		item := e.Value.(delayedItem[T])
		if !item.visibleAt.After(now) {
			return e, 0
		}
		remaining := item.visibleAt.Sub(now)
		if soonest == 0 || remaining < soonest {
			soonest = remaining
		}
	}
	return nil, soonest
}

// waitWithTimeout releases the lock for at most d, so that a delayed item
// becoming visible is noticed without a spurious Put/Close.
func (q *DelayedQueue[T]) waitWithTimeout(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()
	q.cond.Wait()
}

// Remove deletes and returns the first item (in insertion order, regardless
// of visibility) for which match returns true. ok is false if no item
// matched.
func (q *DelayedQueue[T]) Remove(match func(T) bool) (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.items.Front(); e != nil; e = e.Next() {
		item := e.Value.(delayedItem[T])
		if match(item.value) {
			q.items.Remove(e)
			return item.value, true
		}
	}
	return value, false
}

// Find reports whether any queued item (visible or not) matches, without
// removing it.
func (q *DelayedQueue[T]) Find(match func(T) bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.items.Front(); e != nil; e = e.Next() {
		if match(e.Value.(delayedItem[T]).value) {
			return true
		}
	}
	return false
}

// Len returns the number of items currently queued, visible or not.
func (q *DelayedQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close unblocks every pending and future Get once the queue drains.
func (q *DelayedQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
