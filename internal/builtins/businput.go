package builtins

import (
	"hotmic/internal/analysis"
	"hotmic/internal/plugin"
)

// BusInputID is the stable plugin id for BusInput.
const BusInputID = "builtin:bus_input"

// BusInput is pinned at slot 0 of a copy-created channel. It reads the
// source channel's per-block CopyBus (audio and captured analysis signals)
// instead of a live capture, and re-emits the captured signals on the
// analysis bus under its own channel's identity so downstream consumers on
// the copy-target channel see them at the correct latency-corrected time.
type BusInput struct {
	sourceChannelID int
	ownChannelID    int
	captured        map[int]float32
	kindsScratch    []analysis.Kind
}

// NewBusInput returns a BusInput reading from sourceChannelID's copy bus,
// attributing re-emitted signals to ownChannelID.
func NewBusInput(sourceChannelID, ownChannelID int) *BusInput {
	return &BusInput{
		sourceChannelID: sourceChannelID,
		ownChannelID:    ownChannelID,
		kindsScratch:    make([]analysis.Kind, 0, int(analysis.NumKinds)),
	}
}

func (p *BusInput) ID() string    { return BusInputID }
func (p *BusInput) Name() string  { return "Bus Input" }
func (p *BusInput) Initialize(sampleRate, blockSize int) error { return nil }

func (p *BusInput) Process(buf []float32, ctx *plugin.ProcessContext) {
	audio, _, ok := ctx.Routing.ReadCopyBus(p.ownChannelID)
	if !ok {
		for i := range buf {
			buf[i] = 0
		}
		p.captured = nil
		return
	}
	n := copy(buf, audio)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	p.captured = ctx.Routing.ReadCopyBusSignals(p.ownChannelID)
}

func (p *BusInput) ProcessMeters(buf []float32) {}
func (p *BusInput) Latency() int                { return 0 }
func (p *BusInput) Parameters() []plugin.Descriptor { return nil }
func (p *BusInput) SetParameter(index int, value float64) {}
func (p *BusInput) State() []byte                          { return nil }

// ChannelMode implements plugin.InputStagePlugin. Copy-bus audio is already
// mono, so the mode is informational only.
func (p *BusInput) ChannelMode() plugin.ChannelMode { return plugin.ModeSum }

// DependsOn implements plugin.RoutingDependencyProvider: the copy-target
// channel must be scheduled after its source so the copy bus is populated
// before BusInput reads it.
func (p *BusInput) DependsOn() []int { return []int{p.sourceChannelID} }

// ProducedSignals implements plugin.AnalysisProducer: BusInput re-emits
// every signal kind the source channel's Copy captured this block. The
// returned slice is a scratch reused across blocks, valid until the next
// call.
func (p *BusInput) ProducedSignals() []analysis.Kind {
	p.kindsScratch = p.kindsScratch[:0]
	for k := range p.captured {
		p.kindsScratch = append(p.kindsScratch, analysis.Kind(k))
	}
	return p.kindsScratch
}

// ProducedValue implements plugin.AnalysisProducer.
func (p *BusInput) ProducedValue(kind analysis.Kind) float32 {
	return p.captured[int(kind)]
}

var (
	_ plugin.Plugin                    = (*BusInput)(nil)
	_ plugin.InputStagePlugin          = (*BusInput)(nil)
	_ plugin.RoutingDependencyProvider = (*BusInput)(nil)
	_ plugin.AnalysisProducer          = (*BusInput)(nil)
)
