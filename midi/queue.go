package midi

import "container/heap"

type item struct {
	Event
	off bool
	seq uint64
}

type items []item

func (h items) Len() int { return len(h) }
func (h items) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	// Note-Off before Note-On at the same instant
	if a.off != b.off {
		return a.off
	}
	return a.seq < b.seq
}
func (h items) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *items) Push(x any)   { *h = append(*h, x.(item)) }
func (h *items) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is a min-heap of events keyed by (time, note-off first, insertion).
// Not safe for concurrent use; owners guard it.
type Queue struct {
	h   items
	seq uint64
}

// Push inserts an event
func (q *Queue) Push(e Event) {
	q.seq++
	heap.Push(&q.h, item{Event: e, off: IsNoteOff(e.Msg), seq: q.seq})
}

// Len returns the number of pending events
func (q *Queue) Len() int { return len(q.h) }

// Peek returns the earliest event without removing it
func (q *Queue) Peek() (Event, bool) {
	if len(q.h) == 0 {
		return Event{}, false
	}
	return q.h[0].Event, true
}

// Pop removes and returns the earliest event
func (q *Queue) Pop() (Event, bool) {
	if len(q.h) == 0 {
		return Event{}, false
	}
	return heap.Pop(&q.h).(item).Event, true
}

// PopBefore removes every event with Time < t, in order
func (q *Queue) PopBefore(t float64) []Event {
	var out []Event
	for len(q.h) > 0 && q.h[0].Time < t {
		out = append(out, heap.Pop(&q.h).(item).Event)
	}
	return out
}

// Clear drops every pending event
func (q *Queue) Clear() {
	q.h = q.h[:0]
}

// KeepNoteOffs drops everything but pending Note-Offs
func (q *Queue) KeepNoteOffs() {
	kept := q.h[:0]
	for _, it := range q.h {
		if it.off {
			kept = append(kept, it)
		}
	}
	q.h = kept
	heap.Init(&q.h)
}
