package sim

import (
	"container/heap"
	"slices"
)

// EventQueue is a min-heap of events under the canonical Ordering.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type EventQueue struct {
	events []Event
	order  Ordering
}

// NewEventQueue creates an empty queue ordered by order.
func NewEventQueue(order Ordering) *EventQueue {
	q := &EventQueue{
		events: make([]Event, 0),
		order:  order,
	}
	heap.Init(q)
	return q
}

// Len implements heap.Interface
func (q *EventQueue) Len() int { return len(q.events) }

// Less implements heap.Interface
func (q *EventQueue) Less(i, j int) bool { return q.order.Less(q.events[i], q.events[j]) }

// Swap implements heap.Interface
func (q *EventQueue) Swap(i, j int) { q.events[i], q.events[j] = q.events[j], q.events[i] }

// Push implements heap.Interface
func (q *EventQueue) Push(x any) {
	q.events = append(q.events, x.(Event))
}

// Pop implements heap.Interface
func (q *EventQueue) Pop() any {
	old := q.events
	n := len(old)
	item := old[n-1]
	q.events = old[0 : n-1]
	return item
}

// Schedule adds an event to the queue.
func (q *EventQueue) Schedule(e Event) {
	heap.Push(q, e)
}

// PopNext removes and returns the minimum event.
func (q *EventQueue) PopNext() (Event, bool) {
	if q.Len() == 0 {
		return Event{}, false
	}
	return heap.Pop(q).(Event), true
}

// Peek returns the minimum event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	if q.Len() == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

// PopBatch removes the minimum event together with every queued event sharing its
// interval bounds, returned in canonical order.
func (q *EventQueue) PopBatch() []Event {
	first, ok := q.PopNext()
	if !ok {
		return nil
	}
	batch := []Event{first}
	for {
		next, ok := q.Peek()
		if !ok || !sameKey(first, next) {
			return batch
		}
		q.PopNext()
		batch = append(batch, next)
	}
}

// Sorted returns a copy of the queued events in canonical order.
func (q *EventQueue) Sorted() []Event {
	out := slices.Clone(q.events)
	slices.SortFunc(out, q.order.Compare)
	return out
}

// Clear discards all queued events.
func (q *EventQueue) Clear() {
	q.events = q.events[:0]
}
