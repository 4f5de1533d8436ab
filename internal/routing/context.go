// Package routing implements the per-block cross-channel routing context
// (copy buses, the process-wide output bus) and the topological processing
// order scheduler.
package routing

import "hotmic/internal/plugin"

// CopyBus is a per-channel snapshot captured at the point of a Copy plugin
// in the source channel, consumed by the BusInput plugin of the
// copy-created target channel.
type CopyBus struct {
	Audio          []float32
	Signals        map[int]float32 // analysis.Kind -> value, captured at copy time
	LatencySamples int
	SampleClock    int64
	valid          bool
}

// OutputMode mirrors plugin.SendMode for the process-wide output bus.
type OutputMode = plugin.SendMode

// OutputBus is the process-wide per-block stereo staging buffer with
// single-writer semantics: the first OutputSend plugin to write in a block
// wins.
type OutputBus struct {
	Left, Right []float32
	Length      int
	written     bool
	mode        OutputMode

	// Contention counts rejected (late) writers, including the benign
	// transient double-writer case that can occur across a snapshot
	// transition.
	Contention uint64
}

// NewOutputBus returns an OutputBus with buffers pre-sized to blockSize.
func NewOutputBus(blockSize int) *OutputBus {
	return &OutputBus{Left: make([]float32, blockSize), Right: make([]float32, blockSize)}
}

// Reset clears the bus for a new block. Called once per block by
// Context.BeginBlock.
func (b *OutputBus) Reset() {
	for i := range b.Left {
		b.Left[i] = 0
		b.Right[i] = 0
	}
	b.Length = 0
	b.written = false
}

// TryWrite attempts to claim the bus for this block. The first caller in
// dependency order wins; later callers are rejected and counted.
func (b *OutputBus) TryWrite(mode OutputMode, buf []float32) bool {
	if b.written {
		b.Contention++
		return false
	}
	b.written = true
	b.mode = mode
	b.Length = len(buf)
	switch mode {
	case plugin.SendLeft:
		copy(b.Left, buf)
	case plugin.SendRight:
		copy(b.Right, buf)
	case plugin.SendBoth:
		copy(b.Left, buf)
		copy(b.Right, buf)
	}
	return true
}

// HasData reports whether a writer has claimed the bus this block.
func (b *OutputBus) HasData() bool { return b.written }

// Mode returns the send mode of this block's writer, meaningful only when
// HasData is true.
func (b *OutputBus) Mode() OutputMode { return b.mode }

// Context is the per-block routing state threaded through channel
// processing: per-channel copy buses, per-channel published outputs (for
// Merge to pull from), and the single process-wide output bus.
type Context struct {
	copyBuses    map[int]*CopyBus // target channel id -> bus
	outputs      map[int][]float32 // source channel id -> its published block output
	outputBus    *OutputBus
	sampleClock  int64
}

// NewContext returns a Context with buffers pre-sized to blockSize and
// pre-allocated maps for up to channelHint channels, so BeginBlock never
// allocates in steady state once warmed up.
func NewContext(blockSize, channelHint int) *Context {
	return &Context{
		copyBuses: make(map[int]*CopyBus, channelHint),
		outputs:   make(map[int][]float32, channelHint),
		outputBus: NewOutputBus(blockSize),
	}
}

// BeginBlock resets per-channel copy/output state and the output bus for a
// new block.
func (c *Context) BeginBlock(sampleClock int64) {
	c.sampleClock = sampleClock
	for k := range c.copyBuses {
		c.copyBuses[k].valid = false
	}
	for k := range c.outputs {
		delete(c.outputs, k)
	}
	c.outputBus.Reset()
}

// PublishCopyBus captures audio+signals for targetChannelID, overwriting
// any prior capture this block (a channel may only be the target of one
// Copy per block in a well-formed graph).
func (c *Context) PublishCopyBus(targetChannelID int, audio []float32, signals map[int]float32, latencySamples int) {
	bus, ok := c.copyBuses[targetChannelID]
	if !ok {
		bus = &CopyBus{Audio: make([]float32, len(audio))}
		c.copyBuses[targetChannelID] = bus
	}
	if cap(bus.Audio) < len(audio) {
		bus.Audio = make([]float32, len(audio))
	}
	bus.Audio = bus.Audio[:len(audio)]
	copy(bus.Audio, audio)
	bus.Signals = signals
	bus.LatencySamples = latencySamples
	bus.SampleClock = c.sampleClock
	bus.valid = true
}

// ReadCopyBus implements plugin.RoutingAccessor.
func (c *Context) ReadCopyBus(targetChannelID int) ([]float32, int, bool) {
	bus, ok := c.copyBuses[targetChannelID]
	if !ok || !bus.valid {
		return nil, 0, false
	}
	return bus.Audio, bus.LatencySamples, true
}

// ReadCopyBusSignal returns a captured analysis signal value from the copy
// bus for targetChannelID and kind (encoded as an int by the caller).
func (c *Context) ReadCopyBusSignal(targetChannelID, kind int) (float32, bool) {
	bus, ok := c.copyBuses[targetChannelID]
	if !ok || !bus.valid || bus.Signals == nil {
		return 0, false
	}
	v, ok := bus.Signals[kind]
	return v, ok
}

// ReadCopyBusSignals returns the full set of analysis signals captured on
// targetChannelID's copy bus this block, or nil if none were captured.
func (c *Context) ReadCopyBusSignals(targetChannelID int) map[int]float32 {
	bus, ok := c.copyBuses[targetChannelID]
	if !ok || !bus.valid {
		return nil
	}
	return bus.Signals
}

// PublishChannelOutput records sourceChannelID's published block output so
// Merge (and diagnostics) can read it later in the same block.
func (c *Context) PublishChannelOutput(sourceChannelID int, buf []float32) {
	dst, ok := c.outputs[sourceChannelID]
	if !ok || cap(dst) < len(buf) {
		dst = make([]float32, len(buf))
	}
	dst = dst[:len(buf)]
	copy(dst, buf)
	c.outputs[sourceChannelID] = dst
}

// ReadChannelOutput implements plugin.RoutingAccessor.
func (c *Context) ReadChannelOutput(sourceChannelID int) ([]float32, bool) {
	buf, ok := c.outputs[sourceChannelID]
	return buf, ok
}

// TryWriteOutputBus implements plugin.RoutingAccessor.
func (c *Context) TryWriteOutputBus(mode OutputMode, buf []float32) bool {
	return c.outputBus.TryWrite(mode, buf)
}

// OutputBus exposes the process-wide output bus for the output pipeline to
// read after all channels have processed.
func (c *Context) OutputBus() *OutputBus { return c.outputBus }

var _ plugin.RoutingAccessor = (*Context)(nil)
