// Package paramqueue implements a bounded, fail-fast multi-producer/single-
// consumer queue used to carry parameter changes from UI goroutines to the
// audio thread.
package paramqueue

import "sync/atomic"

// Change is the discriminated parameter-change record carried from UI
// goroutines to the audio thread. It is a plain value type so Enqueue never
// allocates beyond the queue's own pre-sized backing array.
type Change struct {
	ChannelID        int
	Kind             Kind
	PluginInstanceID uint64
	ParamIndex       int
	Value            float64
	Command          string
}

// Kind discriminates the fields that are meaningful on a Change.
type Kind int

const (
	InputGainDb Kind = iota
	OutputGainDb
	Mute
	Solo
	PluginBypass
	PluginParameter
	PluginCommand
)

// Queue is a bounded MPSC ring of Change values. The zero value is not
// usable; use New.
type Queue struct {
	buf  []Change
	mask uint64

	writeCursor atomic.Uint64 // claimed by producers via CAS
	published   atomic.Uint64 // highest contiguous claimed+written index
	readCursor  atomic.Uint64 // owned by the single consumer

	dropped atomic.Uint64
}

// New returns a Queue whose capacity is the smallest power of two >= size.
func New(size int) *Queue {
	if size < 1 {
		size = 1
	}
	cap := 1
	for cap < size {
		cap <<= 1
	}
	return &Queue{
		buf:  make([]Change, cap),
		mask: uint64(cap - 1),
	}
}

// Enqueue attempts to add c to the queue. Any number of goroutines may call
// Enqueue concurrently. On overflow the change is discarded and Dropped is
// incremented; Enqueue never blocks.
func (q *Queue) Enqueue(c Change) bool {
	for {
		w := q.writeCursor.Load()
		rd := q.readCursor.Load()
		if w-rd >= uint64(len(q.buf)) {
			q.dropped.Add(1)
			return false
		}
		if q.writeCursor.CompareAndSwap(w, w+1) {
			q.buf[w&q.mask] = c
			// Publish this slot once it is visible; spin until our
			// predecessor has published so the consumer never sees a
			// torn prefix of claimed-but-unwritten slots.
			for !q.published.CompareAndSwap(w, w+1) {
			}
			return true
		}
	}
}

// Pop removes and returns the oldest pending Change. Like Drain it must
// only ever be called from the single consumer; the audio thread uses it to
// drain without constructing a callback.
func (q *Queue) Pop() (Change, bool) {
	pub := q.published.Load()
	rd := q.readCursor.Load()
	if rd == pub {
		return Change{}, false
	}
	c := q.buf[rd&q.mask]
	q.readCursor.Store(rd + 1)
	return c, true
}

// Drain calls fn once for every Change enqueued since the last Drain, in
// FIFO order. Drain must only ever be called from the single consumer
// (the audio thread, once per block, before processing).
func (q *Queue) Drain(fn func(Change)) int {
	pub := q.published.Load()
	rd := q.readCursor.Load()
	n := 0
	for rd != pub {
		fn(q.buf[rd&q.mask])
		rd++
		n++
	}
	q.readCursor.Store(rd)
	return n
}

// Dropped returns the number of changes discarded due to overflow since
// construction (monotonic; not reset by reads).
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
