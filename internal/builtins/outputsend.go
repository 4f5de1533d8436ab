package builtins

import "hotmic/internal/plugin"

// OutputSendID is the stable plugin id for OutputSend.
const OutputSendID = "builtin:output_send"

// OutputSend writes the channel buffer into the process-wide output bus
// with the configured mode. It is a tap: buf is never modified. The first
// non-bypassed writer in dependency order wins; later writers' TryWrite
// calls fail silently (counted by the routing context as contention).
type OutputSend struct {
	mode plugin.SendMode
}

// NewOutputSend returns an OutputSend plugin for the given send mode.
func NewOutputSend(mode plugin.SendMode) *OutputSend {
	return &OutputSend{mode: mode}
}

func (p *OutputSend) ID() string    { return OutputSendID }
func (p *OutputSend) Name() string  { return "Output Send" }
func (p *OutputSend) Initialize(sampleRate, blockSize int) error { return nil }

func (p *OutputSend) Process(buf []float32, ctx *plugin.ProcessContext) {
	ctx.Routing.TryWriteOutputBus(p.mode, buf)
}

func (p *OutputSend) ProcessMeters(buf []float32)          {}
func (p *OutputSend) Latency() int                         { return 0 }
func (p *OutputSend) Parameters() []plugin.Descriptor      { return nil }
func (p *OutputSend) SetParameter(index int, value float64) {}
func (p *OutputSend) State() []byte                         { return nil }

// Mode implements plugin.OutputSendPlugin.
func (p *OutputSend) Mode() plugin.SendMode { return p.mode }

var (
	_ plugin.Plugin           = (*OutputSend)(nil)
	_ plugin.OutputSendPlugin = (*OutputSend)(nil)
)
