// Package capture implements the per-channel input capture manager:
// capture lifecycle, channel-mode down-mix, back-pressure trim, and device
// identity resolution/duplicate-binding rejection.
package capture

import (
	"sync/atomic"

	"hotmic/internal/plugin"
	"hotmic/internal/ringbuffer"
)

// Capture owns one channel's live input: a device binding, its declared
// down-mix mode, a mono SPSC ring written by the capture (device) thread
// and read by the audio thread, and atomic drop/underflow/trim counters.
type Capture struct {
	DeviceID int
	Mode     plugin.ChannelMode

	ring *ringbuffer.Ring

	dropped     atomic.Uint64
	underflowed atomic.Uint64
	trimmed     atomic.Uint64

	// callbackCount and lastFrames feed the per-channel diagnostics
	// snapshot: how many times OnData has fired and the native frame
	// count of the most recent call.
	callbackCount   atomic.Uint64
	lastFrames      atomic.Int64
	nativeChannels  atomic.Int64

	// scratch is the down-mix destination buffer, preallocated to avoid
	// per-write allocation on the capture thread.
	scratch []float32
}

// New returns a Capture bound to deviceID with the given down-mix mode and
// ring capacity (rounded up to a power of two by ringbuffer.New).
func New(deviceID int, mode plugin.ChannelMode, ringCapacity, scratchCapacity int) *Capture {
	return &Capture{
		DeviceID: deviceID,
		Mode:     mode,
		ring:     ringbuffer.New(ringCapacity),
		scratch:  make([]float32, scratchCapacity),
	}
}

// Dropped returns the count of samples dropped on ring overflow.
func (c *Capture) Dropped() uint64 { return c.dropped.Load() }

// Underflowed returns the count of reads that observed fewer samples than
// requested.
func (c *Capture) Underflowed() uint64 { return c.underflowed.Load() }

// Trimmed returns the count of back-pressure trims applied on read.
func (c *Capture) Trimmed() uint64 { return c.trimmed.Load() }

// downmix writes the down-mixed mono samples for frame (nativeChannels
// interleaved channels per frame) into c.scratch[:frames] and returns that
// slice.
func (c *Capture) downmix(frame []float32, nativeChannels int) []float32 {
	frames := len(frame) / nativeChannels
	if cap(c.scratch) < frames {
		c.scratch = make([]float32, frames)
	}
	dst := c.scratch[:frames]

	if nativeChannels == 1 {
		copy(dst, frame)
		return dst
	}

	for i := 0; i < frames; i++ {
		l := frame[i*nativeChannels]
		r := frame[i*nativeChannels+1]
		switch c.Mode {
		case plugin.ModeLeft:
			dst[i] = l
		case plugin.ModeRight:
			dst[i] = r
		default: // ModeSum
			dst[i] = (l + r) * 0.5
		}
	}
	return dst
}

// OnData down-mixes a native-channel-count interleaved frame and writes it
// to the ring. Called from the capture (device) thread. Excess samples
// that would overflow the ring are dropped and counted, never blocking the
// writer.
func (c *Capture) OnData(frame []float32, nativeChannels int) {
	mono := c.downmix(frame, nativeChannels)
	written := c.ring.Write(mono)
	if written < len(mono) {
		c.dropped.Add(uint64(len(mono) - written))
	}
	c.callbackCount.Add(1)
	c.lastFrames.Store(int64(len(mono)))
	c.nativeChannels.Store(int64(nativeChannels))
}

// CallbackCount returns the number of times OnData has been called.
func (c *Capture) CallbackCount() uint64 { return c.callbackCount.Load() }

// LastFrames returns the mono frame count delivered by the most recent
// OnData call.
func (c *Capture) LastFrames() int { return int(c.lastFrames.Load()) }

// NativeChannels returns the device channel count (1 or 2) observed on the
// most recent OnData call.
func (c *Capture) NativeChannels() int { return int(c.nativeChannels.Load()) }

// Capacity returns the capture ring's capacity in samples.
func (c *Capture) Capacity() int { return c.ring.Cap() }

// Read fills dst from the ring, applying the back-pressure bound: if
// available_read exceeds 3/4 capacity before the read, the oldest
// samples are skipped down to max(len(dst), capacity/2) first, bounding
// steady-state latency against capture/output clock drift. Returns the
// number of samples actually read (may be less than len(dst) on
// underflow, in which case the caller is responsible for zero-filling the
// remainder).
func (c *Capture) Read(dst []float32) int {
	capacity := c.ring.Cap()
	if avail := c.ring.AvailableRead(); avail > (capacity*3)/4 {
		target := len(dst)
		if half := capacity / 2; half > target {
			target = half
		}
		skip := avail - target
		if skip > 0 {
			c.ring.Skip(skip)
			c.trimmed.Add(1)
		}
	}

	n := c.ring.Read(dst)
	if n < len(dst) {
		c.underflowed.Add(1)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
	}
	return n
}

// AvailableRead reports the number of samples currently buffered.
func (c *Capture) AvailableRead() int { return c.ring.AvailableRead() }

// Clear discards all buffered samples, used on preset pause.
func (c *Capture) Clear() { c.ring.Clear() }
