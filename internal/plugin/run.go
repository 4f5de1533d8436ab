package plugin

import (
	"math"

	"hotmic/internal/analysis"
)

// ResolveSignalFunc resolves the nearest-upstream producer's value for kind
// as observed at absolute sample time t.
type ResolveSignalFunc func(t int64, kind analysis.Kind) float32

// PublishSignalFunc forwards a produced analysis value to the bus.
type PublishSignalFunc func(channelID int, kind analysis.Kind, sampleTime int64, value float32)

// RunParams bundles the per-block inputs to Snapshot.Run.
type RunParams struct {
	Buf         []float32
	SampleClock int64
	Muted       bool
	Routing     RoutingAccessor
	Resolve     ResolveSignalFunc
	// Ctx is a caller-owned scratch ProcessContext reused across slots and
	// blocks, so Run never allocates one on the audio thread. May be nil in
	// tests; Run then falls back to a local.
	Ctx *ProcessContext
	// ChannelID identifies the owning channel, used to attribute any
	// analysis values produced by AnalysisProducer slots to the bus.
	ChannelID int
	// PublishSignal is called once per declared signal kind for any slot
	// implementing AnalysisProducer, after that slot's Process runs. May be
	// nil, in which case produced values are simply not forwarded.
	PublishSignal PublishSignalFunc
	// PreInput is invoked once, immediately after the chain's
	// InputStagePlugin slot produces its output — the channel-level input
	// gain/meter split. Placing it after rather than before that slot's
	// Process means it acts on whatever that slot actually produced (the
	// live capture for Input, the resolved copy-bus audio for BusInput)
	// rather than on a buffer that, for a copy-target channel, has no live
	// input in it yet. It may be nil.
	PreInput func(buf []float32)
	// PreOutputSend is invoked once, immediately before the chain's
	// OutputSendPlugin slot (if any) runs — the channel-level output
	// gain/mute smoother application, so it lands before the channel's
	// buffer reaches the output bus. If no slot implements
	// OutputSendPlugin, it runs once after the last slot instead, so a
	// channel with no send still gets its output gain/mute applied. It may
	// be nil.
	PreOutputSend func(buf []float32)
}

// Run executes the per-block chain processing protocol: for each slot in
// order, call Process (or ProcessMeters when muted or bypassed), apply
// PreInput once immediately after the InputStagePlugin slot runs, and
// return the chain's total cumulative latency for this block.
func (s Snapshot) Run(p RunParams) int {
	preInputDone := p.PreInput == nil // if nil, treat as already applied
	preOutputSendDone := p.PreOutputSend == nil

	ctx := p.Ctx
	if ctx == nil {
		ctx = &ProcessContext{}
	}
	ctx.Routing = p.Routing
	ctx.resolve = p.Resolve

	for i, slot := range s.s.slots {
		cumLatency := s.CumulativeLatencyBefore(i)
		ctx.SampleClock = p.SampleClock
		ctx.SampleTime = p.SampleClock + int64(cumLatency)
		ctx.CumulativeLatency = cumLatency
		ctx.InstanceID = slot.InstanceID

		if !preOutputSendDone {
			if _, ok := slot.Plugin.(OutputSendPlugin); ok {
				p.PreOutputSend(p.Buf)
				preOutputSendDone = true
			}
		}

		if p.Muted || s.Bypassed(i) {
			slot.Plugin.ProcessMeters(p.Buf)
		} else {
			slot.Plugin.Process(p.Buf, ctx)
			if producer, ok := slot.Plugin.(AnalysisProducer); ok && p.PublishSignal != nil {
				for _, kind := range producer.ProducedSignals() {
					p.PublishSignal(p.ChannelID, kind, ctx.SampleTime, producer.ProducedValue(kind))
				}
			}
		}

		if !preInputDone {
			if _, ok := slot.Plugin.(InputStagePlugin); ok {
				p.PreInput(p.Buf)
				preInputDone = true
			}
		}

		peak, rms := levelOf(p.Buf)
		s.setSlotMeters(i, peak, rms)
	}

	if !preOutputSendDone {
		p.PreOutputSend(p.Buf)
	}

	return s.TotalLatency()
}

func levelOf(buf []float32) (peak, rms float64) {
	var sumSquares float64
	for _, v := range buf {
		a := float64(v)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
		sumSquares += a * a
	}
	if len(buf) > 0 {
		rms = math.Sqrt(sumSquares / float64(len(buf)))
	}
	return peak, rms
}
