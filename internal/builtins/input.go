// Package builtins implements the engine's pinned routing plugins (Input,
// BusInput, Copy, Merge, OutputSend) and a small set of effect plugins
// (gate, leveler, echo canceller, voice activity) that exercise the plugin
// contract with real signal processing.
package builtins

import "hotmic/internal/plugin"

// InputID is the stable plugin id for Input.
const InputID = "builtin:input"

// Input is pinned at slot 0 of a non-copy channel. The raw capture is
// already down-mixed and copied into the block buffer by the input capture
// manager before the chain runs; Input's only role is to mark the
// channel-level pre-gain/meter split point via the InputStagePlugin
// capability and to report the channel's configured down-mix mode for
// diagnostics. Process is therefore a pass-through.
type Input struct {
	mode plugin.ChannelMode
}

// NewInput returns an Input pinned plugin for the given down-mix mode.
func NewInput(mode plugin.ChannelMode) *Input {
	return &Input{mode: mode}
}

func (p *Input) ID() string    { return InputID }
func (p *Input) Name() string  { return "Input" }
func (p *Input) Initialize(sampleRate, blockSize int) error { return nil }
func (p *Input) Process(buf []float32, ctx *plugin.ProcessContext) {}
func (p *Input) ProcessMeters(buf []float32)                       {}
func (p *Input) Latency() int                                      { return 0 }
func (p *Input) Parameters() []plugin.Descriptor                   { return nil }
func (p *Input) SetParameter(index int, value float64)             {}
func (p *Input) State() []byte                                     { return nil }

// ChannelMode implements plugin.InputStagePlugin.
func (p *Input) ChannelMode() plugin.ChannelMode { return p.mode }

// SetMode updates the mode reported by ChannelMode. It does not change the
// capture down-mix, which uses the mode given when the device was bound
// (Engine.SetInputDevice).
func (p *Input) SetMode(mode plugin.ChannelMode) { p.mode = mode }

var (
	_ plugin.Plugin            = (*Input)(nil)
	_ plugin.InputStagePlugin  = (*Input)(nil)
)
