package hotmic

import (
	"hotmic/internal/analysis"
	"hotmic/internal/plugin"
)

// AnalysisSignalMask is a bitmask over analysis.Kind reporting which signal
// kinds had at least one producer in a processed block. The optional mono
// analysis tap is delivered alongside a mask naming what's live, since a
// consumer-only graph or a freshly rewired one may not populate every kind.
type AnalysisSignalMask uint16

// Has reports whether kind is set in the mask.
func (m AnalysisSignalMask) Has(kind analysis.Kind) bool {
	return m&(1<<uint(kind)) != 0
}

// chainSignalMask scans a channel's current chain for AnalysisProducer
// slots and ORs their declared kinds into the running mask. Called once per
// channel per block from ProcessOutput; bounded by analysis.NumKinds (10)
// iterations per producer slot, so it stays allocation-free.
func chainSignalMask(snap plugin.Snapshot) AnalysisSignalMask {
	var mask AnalysisSignalMask
	for i := 0; i < snap.Len(); i++ {
		producer, ok := snap.Slot(i).Plugin.(plugin.AnalysisProducer)
		if !ok {
			continue
		}
		for _, kind := range producer.ProducedSignals() {
			mask |= 1 << uint(kind)
		}
	}
	return mask
}
