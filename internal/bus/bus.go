package bus

import (
	"container/heap"

	"main/internal/schema"
)

// timedEvent pairs an event with its ordering key.
type timedEvent struct {
	ts  schema.Timestamp
	seq uint64
	ev  schema.Event
}

type eventHeap []timedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].ts != h[j].ts {
		return h[i].ts < h[j].ts
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(timedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Bus orders events from any number of producers into a single
// deterministic timeline: ascending timestamp, ties broken by
// insertion sequence. The same multiset of events pushed in the
// same arrival order always pops identically, which is what makes
// live processing and backtest replay byte-compatible.
type Bus struct {
	h   eventHeap
	seq uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Push inserts an event. It never rejects; malformed events are the
// producer's concern.
func (b *Bus) Push(ev schema.Event) {
	b.seq++
	heap.Push(&b.h, timedEvent{ts: ev.Timestamp(), seq: b.seq, ev: ev})
}

// Pop removes and returns the globally earliest pending event.
func (b *Bus) Pop() (schema.Event, bool) {
	if len(b.h) == 0 {
		return nil, false
	}
	item := heap.Pop(&b.h).(timedEvent)
	return item.ev, true
}

// Peek returns the earliest pending event without removing it.
func (b *Bus) Peek() (schema.Event, bool) {
	if len(b.h) == 0 {
		return nil, false
	}
	return b.h[0].ev, true
}

// Drain removes all events in order.
func (b *Bus) Drain() []schema.Event {
	out := make([]schema.Event, 0, len(b.h))
	for {
		ev, ok := b.Pop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

// Len returns the number of pending events.
func (b *Bus) Len() int {
	return len(b.h)
}
