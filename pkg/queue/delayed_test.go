package queue

import (
	"testing"
	"time"
)

func TestDelayedQueueHoldsItemUntilDelayElapses(t *testing.T) {
	q := NewDelayed[string]()
	start := time.Now()
	q.Put("late", 50*time.Millisecond)

	v, ok := q.Get()
	elapsed := time.Since(start)
	if !ok || v != "late" {
		t.Fatalf("got (%q, %v)", v, ok)
	}
	if elapsed < 40*time.Millisecond {
		t.Fatalf("item became visible too early: %v", elapsed)
	}
}

func TestDelayedQueueImmediateByDefault(t *testing.T) {
	q := NewDelayed[int]()
	q.Put(7, 0)
	v, ok := q.Get()
	if !ok || v != 7 {
		t.Fatalf("got (%v, %v)", v, ok)
	}
}

func TestDelayedQueueRemoveByPredicate(t *testing.T) {
	q := NewDelayed[int]()
	q.Put(1, time.Hour)
	q.Put(2, time.Hour)
	q.Put(3, time.Hour)

	v, ok := q.Remove(func(x int) bool { return x == 2 })
	if !ok || v != 2 {
		t.Fatalf("got (%v, %v)", v, ok)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 remaining items, got %d", q.Len())
	}
	if _, ok := q.Remove(func(x int) bool { return x == 2 }); ok {
		t.Fatal("expected second Remove for the same predicate to fail")
	}
}

func TestDelayedQueueFindDoesNotRemove(t *testing.T) {
	q := NewDelayed[int]()
	q.Put(42, time.Hour)
	if !q.Find(func(x int) bool { return x == 42 }) {
		t.Fatal("expected Find to locate the item")
	}
	if q.Len() != 1 {
		t.Fatal("Find must not remove the item")
	}
}

func TestDelayedQueueCloseUnblocksGet(t *testing.T) {
	q := NewDelayed[int]()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get()
		done <- ok
	}()

	q.Close()
	if ok := <-done; ok {
		t.Fatal("expected Get to report ok=false after Close on empty queue")
	}
}
