package spsc

import (
	"sync"
	"testing"
)

func TestQueuePushPopFIFO(t *testing.T) {
	q := New[int](4)
	for i := 1; i <= 4; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	if q.Push(5) {
		t.Fatalf("push into full queue succeeded")
	}
	if q.Len() != 4 {
		t.Fatalf("len = %d, want 4", q.Len())
	}
	for want := 1; want <= 4; want++ {
		v := q.Front()
		if v == nil {
			t.Fatalf("front nil, want %d", want)
		}
		if *v != want {
			t.Fatalf("front = %d, want %d", *v, want)
		}
		q.Pop()
	}
	if q.Front() != nil {
		t.Fatalf("expected empty queue")
	}
}

func TestQueueWrapsAround(t *testing.T) {
	q := New[int](3)
	next := 0
	want := 0
	for round := 0; round < 10; round++ {
		for q.Push(next) {
			next++
		}
		for v := q.Front(); v != nil; v = q.Front() {
			if *v != want {
				t.Fatalf("round %d: got %d, want %d", round, *v, want)
			}
			want++
			q.Pop()
		}
	}
	if want != next {
		t.Fatalf("consumed %d, produced %d", want, next)
	}
}

func TestQueueConcurrentOrder(t *testing.T) {
	const n = 100000
	q := New[int](64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if q.Push(i) {
				i++
			}
		}
	}()
	for want := 0; want < n; {
		v := q.Front()
		if v == nil {
			continue
		}
		if *v != want {
			t.Fatalf("got %d, want %d", *v, want)
		}
		q.Pop()
		want++
	}
	wg.Wait()
}

func BenchmarkQueuePushPop(b *testing.B) {
	q := New[[4]int64](64)
	var v [4]int64
	for i := 0; i < b.N; i++ {
		q.Push(v)
		q.Front()
		q.Pop()
	}
}
