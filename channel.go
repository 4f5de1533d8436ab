package hotmic

import (
	"math"
	"sync/atomic"

	"hotmic/internal/analysis"
	"hotmic/internal/plugin"
	"hotmic/internal/routing"
	"hotmic/internal/smoother"
)

// dbToLinear converts a decibel gain value to a linear amplitude
// multiplier.
func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// Channel is a mono processing lane: one plugin chain, input/output meter
// envelopes, and three scalar smoothers (input gain, output gain, mute).
// Only the audio thread mutates a channel's smoothers and meters, and only
// once a snapshot publish has made the channel visible to it.
type Channel struct {
	ID    int
	Chain *plugin.Chain

	inputGain  *smoother.Linear
	outputGain *smoother.Linear
	muteGain   *smoother.Linear
	muteTarget float64

	inputMeter  *smoother.PeakRMS
	outputMeter *smoother.PeakRMS

	mute atomic.Bool
	solo atomic.Bool

	lastLatency atomic.Int64

	bus *analysis.Bus

	// Per-block hooks and context scratch, built once at construction so
	// Process never allocates on the audio thread.
	preInput      func([]float32)
	preOutputSend func([]float32)
	resolve       plugin.ResolveSignalFunc
	publish       plugin.PublishSignalFunc
	procCtx       plugin.ProcessContext
}

// NewChannel returns a Channel with smoothers/meters configured for
// sampleRate and an empty plugin chain. nextInstanceID is the process-wide
// instance id counter shared across every channel's chain (see
// plugin.NewChain); bus is the engine's analysis signal bus.
func NewChannel(id, sampleRate int, nextInstanceID *uint64, bus *analysis.Bus) *Channel {
	ch := &Channel{
		ID:          id,
		Chain:       plugin.NewChain(nextInstanceID),
		inputGain:   smoother.New(sampleRate, smoother.DefaultRampMS, 1.0),
		outputGain:  smoother.New(sampleRate, smoother.DefaultRampMS, 1.0),
		muteGain:    smoother.New(sampleRate, smoother.DefaultRampMS, 1.0),
		muteTarget:  1.0,
		inputMeter:  smoother.NewPeakRMS(sampleRate),
		outputMeter: smoother.NewPeakRMS(sampleRate),
		bus:         bus,
	}
	ch.preInput = func(buf []float32) {
		for i := range buf {
			buf[i] = float32(float64(buf[i]) * ch.inputGain.Next())
		}
		ch.inputMeter.Process(buf)
	}
	ch.preOutputSend = func(buf []float32) {
		for i := range buf {
			buf[i] = float32(float64(buf[i]) * ch.outputGain.Next() * ch.muteGain.Next())
		}
	}
	ch.resolve = func(t int64, kind analysis.Kind) float32 {
		return ch.bus.Read(ch.ID, kind, t)
	}
	ch.publish = func(channelID int, kind analysis.Kind, sampleTime int64, value float32) {
		ch.bus.Publish(channelID, kind, sampleTime, value)
	}
	return ch
}

// SetInputGainDb begins ramping the channel's input gain to db decibels.
func (ch *Channel) SetInputGainDb(db float64) { ch.inputGain.SetTarget(dbToLinear(db)) }

// SetOutputGainDb begins ramping the channel's output gain to db decibels.
func (ch *Channel) SetOutputGainDb(db float64) { ch.outputGain.SetTarget(dbToLinear(db)) }

// SetMute sets the channel's own mute flag. The audible effect ramps over
// the mute smoother's 5 ms window rather than cutting instantly, so a mute
// toggle never zippers.
func (ch *Channel) SetMute(muted bool) { ch.mute.Store(muted) }

// Muted reports the channel's own mute flag (not global solo-muting).
func (ch *Channel) Muted() bool { return ch.mute.Load() }

// SetSolo sets the channel's solo flag.
func (ch *Channel) SetSolo(solo bool) { ch.solo.Store(solo) }

// Solo reports the channel's solo flag.
func (ch *Channel) Solo() bool { return ch.solo.Load() }

// InputMeter returns the channel's input-stage peak/RMS meter.
func (ch *Channel) InputMeter() *smoother.PeakRMS { return ch.inputMeter }

// OutputMeter returns the channel's output-stage peak/RMS meter.
func (ch *Channel) OutputMeter() *smoother.PeakRMS { return ch.outputMeter }

// LastLatency returns the channel's total reported chain latency as of the
// most recently processed block.
func (ch *Channel) LastLatency() int { return int(ch.lastLatency.Load()) }

// ChannelProcessParams bundles the per-block inputs to Channel.Process.
type ChannelProcessParams struct {
	Buf         []float32
	GlobalMute  bool // true when another channel is soloed and this one is not
	SampleClock int64
	Routing     *routing.Context
}

// Process runs the channel's chain processing protocol for one block:
// the chain runs end to end with the channel-level input
// gain/meter split applied immediately after the input stage, the output
// gain/mute smoothers applied immediately before (or, absent an
// OutputSend, immediately after) any OutputSend slot, and the output
// meter updated on the final buffer contents. While the mute smoother is
// still ramping the chain runs normally, so the ramp reaches the output
// bus; once a muted channel's ramp has finished, every slot runs
// ProcessMeters instead. It returns the chain's total reported latency for
// this block.
func (ch *Channel) Process(p ChannelProcessParams) int {
	muted := p.GlobalMute || ch.mute.Load()

	target := 1.0
	if muted {
		target = 0.0
	}
	if target != ch.muteTarget {
		ch.muteTarget = target
		ch.muteGain.SetTarget(target)
	}

	snap := ch.Chain.Load()
	total := snap.Run(plugin.RunParams{
		Buf:           p.Buf,
		SampleClock:   p.SampleClock,
		Muted:         muted && !ch.muteGain.IsSmoothing(),
		Routing:       p.Routing,
		Resolve:       ch.resolve,
		Ctx:           &ch.procCtx,
		ChannelID:     ch.ID,
		PublishSignal: ch.publish,
		PreInput:      ch.preInput,
		PreOutputSend: ch.preOutputSend,
	})

	ch.outputMeter.Process(p.Buf)
	ch.lastLatency.Store(int64(total))

	// Published unconditionally (not only for channels carrying an
	// OutputSend): Merge needs to read any upstream channel's block output,
	// whether or not that channel also sends to the master bus.
	p.Routing.PublishChannelOutput(ch.ID, p.Buf)

	return total
}

// findOutputSend returns the snapshot's OutputSendPlugin slot, if any, for
// diagnostics callers that need to report a channel's send mode without
// re-running the chain.
func findOutputSend(snap plugin.Snapshot) (slot plugin.Slot, mode plugin.SendMode, ok bool) {
	for i := 0; i < snap.Len(); i++ {
		s := snap.Slot(i)
		if sender, isSend := s.Plugin.(plugin.OutputSendPlugin); isSend {
			return s, sender.Mode(), true
		}
	}
	return plugin.Slot{}, 0, false
}
