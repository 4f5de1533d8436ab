package builtins

import (
	"hotmic/internal/analysis"
	"hotmic/internal/noisegate"
	"hotmic/internal/plugin"
)

// GateID is the stable plugin id for Gate.
const GateID = "builtin:gate"

// Gate is an effect plugin wrapping internal/noisegate. It also publishes
// SpeechPresence based on whether the gate is currently open, so downstream
// consumers can key off it.
type Gate struct {
	gate *noisegate.Gate
	open float32
}

// NewGate returns a Gate plugin. The wrapped noise gate is constructed on
// Initialize, once the chain's sample rate is known.
func NewGate() *Gate {
	return &Gate{}
}

func (p *Gate) ID() string   { return GateID }
func (p *Gate) Name() string { return "Noise Gate" }

func (p *Gate) Initialize(sampleRate, blockSize int) error {
	p.gate = noisegate.New(sampleRate)
	return nil
}

func (p *Gate) Process(buf []float32, ctx *plugin.ProcessContext) {
	p.gate.Process(buf)
	if p.gate.IsOpen() {
		p.open = 1
	} else {
		p.open = 0
	}
}

func (p *Gate) ProcessMeters(buf []float32) {}
func (p *Gate) Latency() int                { return 0 }

func (p *Gate) Parameters() []plugin.Descriptor {
	return []plugin.Descriptor{
		{Index: 0, Name: "threshold_db", Min: -60, Max: -10, Default: noisegate.DefaultThresholdDb},
		{Index: 1, Name: "enabled", Min: 0, Max: 1, Default: 1},
	}
}

func (p *Gate) SetParameter(index int, value float64) {
	switch index {
	case 0:
		p.gate.SetThresholdDb(value)
	case 1:
		p.gate.SetEnabled(value >= 0.5)
	}
}

func (p *Gate) State() []byte { return nil }

var gateSignals = []analysis.Kind{analysis.SpeechPresence}

// ProducedSignals implements plugin.AnalysisProducer.
func (p *Gate) ProducedSignals() []analysis.Kind { return gateSignals }

// ProducedValue implements plugin.AnalysisProducer.
func (p *Gate) ProducedValue(kind analysis.Kind) float32 {
	if kind == analysis.SpeechPresence {
		return p.open
	}
	return analysis.NeutralValue
}

var (
	_ plugin.Plugin           = (*Gate)(nil)
	_ plugin.AnalysisProducer = (*Gate)(nil)
)
