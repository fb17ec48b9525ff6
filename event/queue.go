package event

import (
	"container/heap"

	"github.com/lixenwraith/chronon/core"
)

// Queue is a min-heap of scheduled events keyed (Time ASC, Seq ASC).
// Pop order equals the canonical dispatch order regardless of insertion
// interleaving.
//
// Thread-Safety: none. The scheduler serializes all access under its
// own mutex; handlers never touch the queue directly
type Queue struct {
	h eventHeap
}

// NewQueue creates an empty queue with room for hint events
func NewQueue(hint int) *Queue {
	q := &Queue{h: make(eventHeap, 0, hint)}
	heap.Init(&q.h)
	return q
}

// Push inserts an event. O(log n)
func (q *Queue) Push(ev Event) {
	heap.Push(&q.h, ev)
}

// Len returns the number of pending events
func (q *Queue) Len() int {
	return len(q.h)
}

// NextTime returns the smallest scheduled time without removing anything
func (q *Queue) NextTime() (core.SimTime, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].Time, true
}

// DrainNext removes and returns every event sharing the smallest
// scheduled time, in ascending Seq order. The returned slice is the
// canonical per-batch dispatch order. Amortised O(k log n) for batch
// size k
func (q *Queue) DrainNext() []Event {
	if len(q.h) == 0 {
		return nil
	}
	t := q.h[0].Time
	batch := make([]Event, 0, 4)
	for len(q.h) > 0 && q.h[0].Time == t {
		batch = append(batch, heap.Pop(&q.h).(Event))
	}
	return batch
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}
