// Package pipeline implements per-block profiling counters for the output
// pipeline's audio callback. The callback loop itself lives in the root
// package (engine.go) since it operates on the engine's RoutingSnapshot and
// Channel types; this package holds only the allocation-free, lock-free
// counter machinery those types call into.
package pipeline

import "sync/atomic"

// Profile accumulates wall-clock and overrun statistics for the audio
// callback: plain atomic.Uint64 fields updated with Store/Add, and a CAS
// loop for the running maximum.
type Profile struct {
	blocks       atomic.Uint64
	totalTicks   atomic.Uint64
	overruns     atomic.Uint64
	maxTicks     atomic.Uint64
	lastTicks    atomic.Uint64
	budgetTicks  atomic.Uint64
}

// SetBudget sets the per-block tick budget (block_size * ticks_per_sample).
func (p *Profile) SetBudget(budgetTicks uint64) {
	p.budgetTicks.Store(budgetTicks)
}

// Record accounts for one block that took elapsedTicks wall-clock ticks to
// process. If elapsedTicks exceeds the configured budget, the overrun
// counter is incremented. The running maximum is updated via a CAS loop so
// concurrent readers never observe a torn value.
func (p *Profile) Record(elapsedTicks uint64) {
	p.blocks.Add(1)
	p.totalTicks.Add(elapsedTicks)
	p.lastTicks.Store(elapsedTicks)

	if budget := p.budgetTicks.Load(); budget > 0 && elapsedTicks > budget {
		p.overruns.Add(1)
	}

	for {
		cur := p.maxTicks.Load()
		if elapsedTicks <= cur {
			return
		}
		if p.maxTicks.CompareAndSwap(cur, elapsedTicks) {
			return
		}
	}
}

// Blocks returns the number of blocks recorded.
func (p *Profile) Blocks() uint64 { return p.blocks.Load() }

// Overruns returns the number of blocks that exceeded budget.
func (p *Profile) Overruns() uint64 { return p.overruns.Load() }

// MaxTicks returns the largest elapsed-tick value ever recorded.
func (p *Profile) MaxTicks() uint64 { return p.maxTicks.Load() }

// LastTicks returns the most recently recorded elapsed-tick value.
func (p *Profile) LastTicks() uint64 { return p.lastTicks.Load() }

// MeanTicks returns the mean elapsed ticks per block, or 0 if no blocks
// have been recorded yet.
func (p *Profile) MeanTicks() float64 {
	blocks := p.blocks.Load()
	if blocks == 0 {
		return 0
	}
	return float64(p.totalTicks.Load()) / float64(blocks)
}

// Reset clears all counters, used on preset pause so stale
// statistics from before the pause don't persist into the resumed session.
func (p *Profile) Reset() {
	p.blocks.Store(0)
	p.totalTicks.Store(0)
	p.overruns.Store(0)
	p.maxTicks.Store(0)
	p.lastTicks.Store(0)
}
