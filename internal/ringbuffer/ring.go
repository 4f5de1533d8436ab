// Package ringbuffer implements a single-producer/single-consumer ring
// buffer of float32 samples.
//
// Usage:
//
//	r := ringbuffer.New(4096)      // rounded up to a power of two
//
//	// Producer goroutine (e.g. a capture callback):
//	n := r.Write(frame)
//
//	// Consumer goroutine (e.g. the audio callback):
//	n := r.Read(scratch)
package ringbuffer

import "sync/atomic"

// Ring is a fixed-capacity SPSC float32 ring buffer. The zero value is not
// usable; use New. A Ring must have exactly one writer goroutine and one
// reader goroutine for its lifetime — it is not safe for multiple writers
// or multiple readers.
type Ring struct {
	buf  []float32
	mask uint64

	// writeCursor is owned by the writer; readCursor is owned by the
	// reader. Each side only ever reads the other's cursor.
	writeCursor atomic.Uint64
	readCursor  atomic.Uint64
}

// New returns a Ring whose capacity is the smallest power of two >= size.
func New(size int) *Ring {
	if size < 1 {
		size = 1
	}
	cap := 1
	for cap < size {
		cap <<= 1
	}
	return &Ring{
		buf:  make([]float32, cap),
		mask: uint64(cap - 1),
	}
}

// Cap returns the ring's capacity in samples.
func (r *Ring) Cap() int { return len(r.buf) }

// AvailableRead returns the number of samples available to read.
func (r *Ring) AvailableRead() int {
	w := r.writeCursor.Load()
	rd := r.readCursor.Load()
	return int(w - rd)
}

// AvailableWrite returns the number of samples that can be written without
// overflowing the ring.
func (r *Ring) AvailableWrite() int {
	return len(r.buf) - r.AvailableRead()
}

// Write copies as much of src as fits without overflowing and returns the
// number of samples written. It never blocks; excess samples are dropped by
// the caller (the caller decides whether to report the drop).
func (r *Ring) Write(src []float32) int {
	avail := r.AvailableWrite()
	n := len(src)
	if n > avail {
		n = avail
	}
	w := r.writeCursor.Load()
	for i := 0; i < n; i++ {
		r.buf[(w+uint64(i))&r.mask] = src[i]
	}
	r.writeCursor.Store(w + uint64(n))
	return n
}

// Read copies as many samples as are available into dst, up to len(dst),
// and returns the number of samples read.
func (r *Ring) Read(dst []float32) int {
	avail := r.AvailableRead()
	n := len(dst)
	if n > avail {
		n = avail
	}
	rd := r.readCursor.Load()
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(rd+uint64(i))&r.mask]
	}
	r.readCursor.Store(rd + uint64(n))
	return n
}

// Skip advances the read cursor by up to n samples without copying them,
// never skipping more than is available. It returns the number actually
// skipped.
func (r *Ring) Skip(n int) int {
	avail := r.AvailableRead()
	if n > avail {
		n = avail
	}
	if n < 0 {
		n = 0
	}
	r.readCursor.Store(r.readCursor.Load() + uint64(n))
	return n
}

// Clear discards all buffered samples, resetting the ring to empty.
// Only safe to call when the writer is quiesced (e.g. during preset pause).
func (r *Ring) Clear() {
	r.readCursor.Store(r.writeCursor.Load())
}
