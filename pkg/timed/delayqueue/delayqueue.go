package delayqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Delayed is an item that becomes ready once its remaining delay reaches zero.
type Delayed interface {
	// Remaining reports the time left until the item is ready.
	// Values <= 0 mean the item is ready now.
	Remaining() time.Duration

	// Before reports whether this item should be taken ahead of other.
	// It must define a total order over all items held by the queue.
	Before(other Delayed) bool
}

// Queue is a delay-ordered queue for many producers and a single consumer.
// Any number of goroutines may call Add concurrently; exactly one goroutine
// may call Take. The consumer blocks until the earliest item is ready and is
// woken early when a new item with an earlier deadline is inserted.
type Queue struct {
	mu    sync.Mutex
	items delayHeap

	// wake carries at most one pending insertion signal. Producers never
	// block on it; the single consumer drains it between waits.
	wake chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Add inserts an item and wakes the consumer if it is blocked.
// It never waits for the consumer's timed sleep to elapse.
func (q *Queue) Add(item Delayed) {
	q.mu.Lock()
	heap.Push(&q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Take blocks until the earliest item's delay has elapsed, then removes and
// returns it. Items inserted with earlier deadlines are observed even while
// blocked. Take returns ctx.Err() if the context is canceled first.
//
// Take must only be called from a single consumer goroutine.
func (q *Queue) Take(ctx context.Context) (Delayed, error) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		wait := q.items[0].Remaining()
		if wait <= 0 {
			item := heap.Pop(&q.items).(Delayed)
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-q.wake:
			// A new item arrived; the head may have changed.
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		timer.Stop()
	}
}

// Peek returns the earliest item without removing it, or nil if the queue
// is empty.
func (q *Queue) Peek() Delayed {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain atomically removes and returns all remaining items, earliest first.
func (q *Queue) Drain() []Delayed {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Delayed, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(Delayed))
	}
	return out
}

// delayHeap is a min-heap of Delayed items ordered by their Before relation,
// earliest at the root.
type delayHeap []Delayed

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool {
	return h[i].Before(h[j])
}

func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *delayHeap) Push(x interface{}) {
	*h = append(*h, x.(Delayed))
}

func (h *delayHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // allow GC
	*h = old[:n-1]
	return item
}
