package builtins

import (
	"hotmic/internal/aec"
	"hotmic/internal/plugin"
)

// EchoCancellerID is the stable plugin id for EchoCanceller.
const EchoCancellerID = "builtin:echo_canceller"

// EchoCanceller is an effect plugin wrapping internal/aec, an NLMS
// adaptive-filter echo canceller. It feeds the configured reference
// channel's published output as the far-end signal before running echo
// cancellation on its own channel's near-end buffer, so it must be
// scheduled after the reference channel (declared via DependsOn).
type EchoCanceller struct {
	aec             *aec.AEC
	referenceChannelID int
	hasReference    bool
	blockSize       int
}

// NewEchoCanceller returns an EchoCanceller referencing referenceChannelID
// as the far-end (loudspeaker) signal. If hasReference is false, the
// canceller runs with a silent reference (pass-through, no cancellation).
func NewEchoCanceller(referenceChannelID int, hasReference bool) *EchoCanceller {
	return &EchoCanceller{referenceChannelID: referenceChannelID, hasReference: hasReference}
}

func (p *EchoCanceller) ID() string   { return EchoCancellerID }
func (p *EchoCanceller) Name() string { return "Echo Canceller" }

func (p *EchoCanceller) Initialize(sampleRate, blockSize int) error {
	p.blockSize = blockSize
	p.aec = aec.New(blockSize)
	return nil
}

func (p *EchoCanceller) Process(buf []float32, ctx *plugin.ProcessContext) {
	if p.hasReference {
		if ref, ok := ctx.Routing.ReadChannelOutput(p.referenceChannelID); ok {
			p.aec.FeedFarEnd(ref)
		}
	}
	p.aec.Process(buf)
}

func (p *EchoCanceller) ProcessMeters(buf []float32) {}
func (p *EchoCanceller) Latency() int                { return 0 }

func (p *EchoCanceller) Parameters() []plugin.Descriptor {
	return []plugin.Descriptor{
		{Index: 0, Name: "enabled", Min: 0, Max: 1, Default: 1},
	}
}

func (p *EchoCanceller) SetParameter(index int, value float64) {
	if index == 0 {
		p.aec.SetEnabled(value >= 0.5)
	}
}

func (p *EchoCanceller) State() []byte { return nil }

// DependsOn implements plugin.RoutingDependencyProvider: the reference
// channel must publish its output before this channel consumes it as the
// far-end signal.
func (p *EchoCanceller) DependsOn() []int {
	if !p.hasReference {
		return nil
	}
	return []int{p.referenceChannelID}
}

var (
	_ plugin.Plugin                    = (*EchoCanceller)(nil)
	_ plugin.RoutingDependencyProvider = (*EchoCanceller)(nil)
)
