package builtins

import (
	"hotmic/internal/analysis"
	"hotmic/internal/plugin"
	"hotmic/internal/vad"
)

// VoiceActivityID is the stable plugin id for VoiceActivity.
const VoiceActivityID = "builtin:voice_activity"

// VoiceActivity is an AnalysisSignalProducer plugin wrapping
// internal/vad.Detector. It passes audio through unmodified and publishes
// SpeechPresence and VoicingState each block for downstream consumers that
// declare AnalysisConsumer for either kind.
type VoiceActivity struct {
	detector *vad.Detector
	presence float32
	voicing  float32
}

// NewVoiceActivity returns a VoiceActivity plugin. The wrapped detector is
// constructed on Initialize, once the chain's sample rate is known.
func NewVoiceActivity() *VoiceActivity {
	return &VoiceActivity{}
}

func (p *VoiceActivity) ID() string   { return VoiceActivityID }
func (p *VoiceActivity) Name() string { return "Voice Activity" }

func (p *VoiceActivity) Initialize(sampleRate, blockSize int) error {
	p.detector = vad.New(sampleRate)
	return nil
}

func (p *VoiceActivity) Process(buf []float32, ctx *plugin.ProcessContext) {
	p.presence, p.voicing = p.detector.Process(buf)
}

// ProcessMeters keeps the detector updating while the channel is muted, so
// downstream consumers still see accurate presence/voicing signals.
func (p *VoiceActivity) ProcessMeters(buf []float32) {
	p.presence, p.voicing = p.detector.Process(buf)
}

func (p *VoiceActivity) Latency() int { return 0 }

func (p *VoiceActivity) Parameters() []plugin.Descriptor {
	return []plugin.Descriptor{
		{Index: 0, Name: "threshold_db", Min: -60, Max: -20, Default: vad.DefaultThresholdDb},
		{Index: 1, Name: "hangover_ms", Min: 50, Max: 1000, Default: vad.DefaultHangoverMS},
	}
}

func (p *VoiceActivity) SetParameter(index int, value float64) {
	switch index {
	case 0:
		p.detector.SetThresholdDb(value)
	case 1:
		p.detector.SetHangoverMS(value)
	}
}

func (p *VoiceActivity) State() []byte { return nil }

var voiceActivitySignals = []analysis.Kind{analysis.SpeechPresence, analysis.VoicingState}

// ProducedSignals implements plugin.AnalysisProducer.
func (p *VoiceActivity) ProducedSignals() []analysis.Kind { return voiceActivitySignals }

// ProducedValue implements plugin.AnalysisProducer.
func (p *VoiceActivity) ProducedValue(kind analysis.Kind) float32 {
	switch kind {
	case analysis.SpeechPresence:
		return p.presence
	case analysis.VoicingState:
		return p.voicing
	default:
		return analysis.NeutralValue
	}
}

var (
	_ plugin.Plugin           = (*VoiceActivity)(nil)
	_ plugin.AnalysisProducer = (*VoiceActivity)(nil)
)
