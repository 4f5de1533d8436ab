package builtins

import (
	"hotmic/internal/analysis"
	"hotmic/internal/plugin"
)

// CopyID is the stable plugin id for Copy.
const CopyID = "builtin:copy"

// Copy captures the current buffer and the set of upstream-available
// analysis signals into a new CopyBus entry for a target (copy-created)
// channel. It never mutates buf — it is a tap, not a filter.
type Copy struct {
	targetChannelID int
	signals         map[int]float32 // reused scratch map, never reallocated after warmup
}

// NewCopy returns a Copy plugin publishing to targetChannelID's copy bus.
func NewCopy(targetChannelID int) *Copy {
	return &Copy{targetChannelID: targetChannelID, signals: make(map[int]float32, int(analysis.NumKinds))}
}

func (p *Copy) ID() string    { return CopyID }
func (p *Copy) Name() string  { return "Copy" }
func (p *Copy) Initialize(sampleRate, blockSize int) error { return nil }

func (p *Copy) Process(buf []float32, ctx *plugin.ProcessContext) {
	for k := analysis.Kind(0); k < analysis.NumKinds; k++ {
		p.signals[int(k)] = ctx.ResolveSignal(k)
	}
	ctx.Routing.PublishCopyBus(p.targetChannelID, buf, p.signals, ctx.CumulativeLatency)
}

func (p *Copy) ProcessMeters(buf []float32) {}
func (p *Copy) Latency() int                { return 0 }
func (p *Copy) Parameters() []plugin.Descriptor { return nil }
func (p *Copy) SetParameter(index int, value float64) {}
func (p *Copy) State() []byte                          { return nil }

var _ plugin.Plugin = (*Copy)(nil)
