package plugin

import (
	"math"
	"sync/atomic"
)

// Slot is one position in a channel's plugin chain.
type Slot struct {
	// InstanceID is unique per session, assigned at construction; it is
	// never reused and is not an array index.
	InstanceID uint64
	Plugin     Plugin
	// Bypassed seeds the snapshot's live bypass flag at rebuild time. The
	// live state is the snapshot's per-slot atomic (Snapshot.Bypassed),
	// which SetBypassed mutates in place; this field is only read when a
	// structural mutation constructs the next snapshot.
	Bypassed bool
	// Latency caches Plugin.Latency() as of the last Initialize, so the
	// chain can recompute cumulative latency without calling into the
	// plugin on the audio thread.
	Latency int
	// LastPeak/LastRMS are not updated by the chain; the slot's live
	// last-output levels are read through Snapshot.SlotMeters.
	LastPeak float64
	LastRMS  float64
}

// meterCell holds one slot's cached last-output peak/RMS, written by the
// audio thread and read by diagnostics. It lives inside the snapshot (sized
// once at construction) rather than in a side array, so there is never a
// resize race between the mutation side rebuilding the chain and the audio
// thread updating levels for the snapshot it currently holds.
type meterCell struct {
	peakBits atomic.Uint64
	rmsBits  atomic.Uint64
}

// snapshot is the immutable-shape, append-only-published state read by the
// audio thread. A new snapshot is built and published atomically on every
// structural mutation; the previous one is retired for drain. Only the
// meterCell and bypass flag contents (not the slice shape) mutate after
// publication.
type snapshot struct {
	slots []Slot
	// cumLatency[i] is the sum of Latency for slots[0:i] — the latency
	// "before" slot i.
	cumLatency   []int
	totalLatency int
	meters       []meterCell
	// bypass[i] is slot i's live bypass flag. Like meters it mutates in
	// place after publication: bypass is a parameter-style change applied
	// from the audio thread, which must not allocate, so it cannot go
	// through a snapshot rebuild.
	bypass []atomic.Bool
}

// Chain is one channel's ordered plugin sequence. The audio thread only
// ever reads through Load(); all mutation methods run on the UI
// thread and publish a new snapshot via a single atomic pointer store.
type Chain struct {
	current atomic.Pointer[snapshot]

	// nextInstanceID hands out stable identities; mutation-side only.
	nextInstanceID *uint64
}

// NewChain returns an empty Chain. nextInstanceID is a pointer to a
// process-wide counter (typically owned by the Engine) so instance ids are
// unique across the whole session, not just within one chain.
func NewChain(nextInstanceID *uint64) *Chain {
	c := &Chain{nextInstanceID: nextInstanceID}
	c.current.Store(&snapshot{})
	return c
}

func (c *Chain) allocInstanceID() uint64 {
	return atomic.AddUint64(c.nextInstanceID, 1)
}

// Snapshot is an immutable, caller-visible view of the chain's current
// slots, safe to range over without holding any lock.
type Snapshot struct {
	s *snapshot
}

// Load returns the currently published snapshot. Safe to call from the
// audio thread; never blocks, never allocates.
func (c *Chain) Load() Snapshot {
	return Snapshot{s: c.current.Load()}
}

// Len returns the number of slots in the snapshot.
func (s Snapshot) Len() int { return len(s.s.slots) }

// Slot returns a copy of the slot at index i.
func (s Snapshot) Slot(i int) Slot { return s.s.slots[i] }

// CumulativeLatencyBefore returns the cumulative latency of all slots
// before index i.
func (s Snapshot) CumulativeLatencyBefore(i int) int { return s.s.cumLatency[i] }

// TotalLatency returns the sum of all slot latencies in this snapshot.
func (s Snapshot) TotalLatency() int { return s.s.totalLatency }

// Bypassed reports slot i's live bypass flag. Safe to call from any
// goroutine.
func (s Snapshot) Bypassed(i int) bool { return s.s.bypass[i].Load() }

// SlotMeters returns the cached last-output peak/RMS for slot i, as of the
// most recent audio-thread update. Safe to call from any goroutine.
func (s Snapshot) SlotMeters(i int) (peak, rms float64) {
	cell := &s.s.meters[i]
	return math.Float64frombits(cell.peakBits.Load()), math.Float64frombits(cell.rmsBits.Load())
}

func (s Snapshot) setSlotMeters(i int, peak, rms float64) {
	cell := &s.s.meters[i]
	cell.peakBits.Store(math.Float64bits(peak))
	cell.rmsBits.Store(math.Float64bits(rms))
}

// FindByInstanceID returns the index of the slot with the given instance
// id, or -1 if not present in this snapshot (the caller — parameter
// application — discards the change in that case).
func (s Snapshot) FindByInstanceID(id uint64) int {
	for i, slot := range s.s.slots {
		if slot.InstanceID == id {
			return i
		}
	}
	return -1
}

// rebuild constructs and publishes a new snapshot from slots, recomputing
// the cumulative-latency prefix sum (cumLatency[i] always equals the sum of
// slot-reported latencies before i, in order) and seeding each slot's live
// bypass flag from its Bypassed field.
func (c *Chain) rebuild(slots []Slot) {
	cum := make([]int, len(slots))
	total := 0
	bypass := make([]atomic.Bool, len(slots))
	for i, s := range slots {
		cum[i] = total
		total += s.Latency
		bypass[i].Store(s.Bypassed)
	}
	c.current.Store(&snapshot{slots: slots, cumLatency: cum, totalLatency: total, meters: make([]meterCell, len(slots)), bypass: bypass})
}

// currentSlots returns a mutable copy of the published slots with each
// slot's Bypassed field refreshed from its live flag, so a structural
// rebuild carries bypass toggles applied since the last publication
// forward. Mutation-side only.
func (c *Chain) currentSlots() []Slot {
	s := c.current.Load()
	out := make([]Slot, len(s.slots))
	for i, slot := range s.slots {
		slot.Bypassed = s.bypass[i].Load()
		out[i] = slot
	}
	return out
}

// Insert adds p at position idx (clamped to [0, len]), assigns it a fresh
// instance id, and publishes a new snapshot. It returns the assigned
// instance id.
func (c *Chain) Insert(idx int, p Plugin) uint64 {
	old := c.currentSlots()
	if idx < 0 {
		idx = 0
	}
	if idx > len(old) {
		idx = len(old)
	}
	id := c.allocInstanceID()
	newSlots := make([]Slot, 0, len(old)+1)
	newSlots = append(newSlots, old[:idx]...)
	newSlots = append(newSlots, Slot{InstanceID: id, Plugin: p, Latency: p.Latency()})
	newSlots = append(newSlots, old[idx:]...)
	c.rebuild(newSlots)
	return id
}

// Remove deletes the slot with the given instance id, if present, and
// publishes a new snapshot. It returns the removed Plugin (for retirement
// bookkeeping) or nil if the id was not found.
func (c *Chain) Remove(instanceID uint64) Plugin {
	old := c.currentSlots()
	newSlots := make([]Slot, 0, len(old))
	var removed Plugin
	for _, s := range old {
		if s.InstanceID == instanceID {
			removed = s.Plugin
			continue
		}
		newSlots = append(newSlots, s)
	}
	if removed != nil {
		c.rebuild(newSlots)
	}
	return removed
}

// Reorder moves the slot at position from to position to and publishes a
// new snapshot. Out-of-range indices are a no-op.
func (c *Chain) Reorder(from, to int) {
	newSlots := c.currentSlots()
	if from < 0 || from >= len(newSlots) || to < 0 || to >= len(newSlots) || from == to {
		return
	}
	s := newSlots[from]
	newSlots = append(newSlots[:from], newSlots[from+1:]...)
	newSlots = append(newSlots[:to], append([]Slot{s}, newSlots[to:]...)...)
	c.rebuild(newSlots)
}

// Replace swaps the plugin at instanceID for newPlugin, keeping the same
// instance id and bypass flag, and publishes a new snapshot. It returns the
// replaced Plugin, or nil if instanceID was not found.
func (c *Chain) Replace(instanceID uint64, newPlugin Plugin) Plugin {
	newSlots := c.currentSlots()
	var replaced Plugin
	for i, s := range newSlots {
		if s.InstanceID == instanceID {
			replaced = s.Plugin
			newSlots[i] = Slot{InstanceID: instanceID, Plugin: newPlugin, Bypassed: s.Bypassed, Latency: newPlugin.Latency()}
			break
		}
	}
	if replaced != nil {
		c.rebuild(newSlots)
	}
	return replaced
}

// SetBypassed sets the live bypass flag for instanceID in place, without
// rebuilding or republishing the snapshot: bypass is a parameter-style
// mutation applied from the audio thread via the parameter queue, which
// must not allocate, unlike the structural mutations above. Returns false
// if instanceID is not present in the current snapshot.
func (c *Chain) SetBypassed(instanceID uint64, bypassed bool) bool {
	s := c.current.Load()
	for i, slot := range s.slots {
		if slot.InstanceID == instanceID {
			s.bypass[i].Store(bypassed)
			return true
		}
	}
	return false
}

// RefreshLatency re-reads Latency() from every slot's plugin (called after
// a plugin's Initialize has run again, e.g. on sample-rate change) and
// publishes a new snapshot with updated cumulative latencies.
func (c *Chain) RefreshLatency() {
	newSlots := c.currentSlots()
	for i := range newSlots {
		newSlots[i].Latency = newSlots[i].Plugin.Latency()
	}
	c.rebuild(newSlots)
}
