package queue

import "testing"

func TestDedupQueueCollapsesOnlyAdjacentRuns(t *testing.T) {
	q := NewDedup[int]()
	q.Put(1)
	q.Put(1) // dropped: equals tail
	q.Put(2)
	q.Put(1) // kept: tail is 2, not globally deduplicated
	q.Put(1) // dropped: equals tail

	var got []int
	for i := 0; i < 3; i++ {
		v, ok := q.Get()
		if !ok {
			t.Fatalf("expected item %d", i)
		}
		got = append(got, v)
	}

	want := []int{1, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDedupQueueBlocksUntilPut(t *testing.T) {
	q := NewDedup[string]()
	done := make(chan string, 1)
	go func() {
		v, _ := q.Get()
		done <- v
	}()

	q.Put("hello")
	if v := <-done; v != "hello" {
		t.Fatalf("got %q, want %q", v, "hello")
	}
}

func TestDedupQueueCloseUnblocksGet(t *testing.T) {
	q := NewDedup[int]()
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
