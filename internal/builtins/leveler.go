package builtins

import (
	"hotmic/internal/agc"
	"hotmic/internal/plugin"
)

// LevelerID is the stable plugin id for Leveler.
const LevelerID = "builtin:leveler"

// Leveler is an effect plugin wrapping internal/agc, an automatic gain
// control that rides a channel's level toward a target RMS with independent
// attack/release. It has no knee, ratio, or lookahead, only a single-pole
// gain follower.
type Leveler struct {
	agc *agc.AGC
}

// NewLeveler returns a Leveler plugin. The wrapped AGC is constructed on
// Initialize, once the chain's sample rate is known.
func NewLeveler() *Leveler {
	return &Leveler{}
}

func (p *Leveler) ID() string   { return LevelerID }
func (p *Leveler) Name() string { return "Leveler" }

func (p *Leveler) Initialize(sampleRate, blockSize int) error {
	p.agc = agc.New(sampleRate)
	return nil
}

func (p *Leveler) Process(buf []float32, ctx *plugin.ProcessContext) {
	p.agc.Process(buf)
}

func (p *Leveler) ProcessMeters(buf []float32) {}
func (p *Leveler) Latency() int                { return 0 }

func (p *Leveler) Parameters() []plugin.Descriptor {
	return []plugin.Descriptor{
		{Index: 0, Name: "target_db", Min: -40, Max: -6, Default: agc.DefaultTargetDb},
	}
}

func (p *Leveler) SetParameter(index int, value float64) {
	if index == 0 {
		p.agc.SetTargetDb(value)
	}
}

func (p *Leveler) State() []byte { return nil }

var _ plugin.Plugin = (*Leveler)(nil)
