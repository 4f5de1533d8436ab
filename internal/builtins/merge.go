package builtins

import (
	"math"

	"hotmic/internal/plugin"
)

// MergeStrategy selects how Merge combines source channel outputs with the
// current buffer.
type MergeStrategy int

const (
	MergeSum MergeStrategy = iota
	MergeAverage
	MergeEqualPower
)

// MergePolarity selects which operands Merge inverts before summing.
type MergePolarity int

const (
	PolarityNone MergePolarity = iota
	PolarityInvertSources
	PolarityInvertTarget
)

// mergeSource is one source channel's alignment delay line, sized at
// construction from its declared worst-case latency so Process never
// allocates.
type mergeSource struct {
	channelID int
	delay     []float32 // ring of length = alignment deficit for this source
	write     int
}

// MergeID is the stable plugin id for Merge.
const MergeID = "builtin:merge"

// Merge pulls the published outputs of N source channels for the current
// block, time-aligns each by a preallocated delay line sized from declared
// worst-case latencies, and sums into the current buffer per the
// configured strategy and polarity.
type Merge struct {
	sources    []mergeSource
	targetDeficit int // alignment deficit applied to the channel's own (target) signal
	targetDelay   []float32
	targetWrite   int

	strategy MergeStrategy
	polarity MergePolarity
	aligned  bool
}

// MergeSourceSpec describes one source channel to merge, including its
// declared worst-case latency in samples (used to size the alignment delay
// line at construction).
type MergeSourceSpec struct {
	ChannelID int
	Latency   int
}

// NewMerge returns a Merge plugin. targetLatency is this channel's own
// cumulative latency up to the Merge slot, used (together with each
// source's declared latency) to compute per-path alignment deficits when
// aligned is true.
func NewMerge(sourceSpecs []MergeSourceSpec, targetLatency int, strategy MergeStrategy, polarity MergePolarity, aligned bool) *Merge {
	maxLatency := targetLatency
	for _, s := range sourceSpecs {
		if s.Latency > maxLatency {
			maxLatency = s.Latency
		}
	}

	m := &Merge{strategy: strategy, polarity: polarity, aligned: aligned}
	m.targetDeficit = maxLatency - targetLatency
	if aligned && m.targetDeficit > 0 {
		m.targetDelay = make([]float32, m.targetDeficit)
	}
	m.sources = make([]mergeSource, len(sourceSpecs))
	for i, s := range sourceSpecs {
		deficit := 0
		if aligned {
			deficit = maxLatency - s.Latency
		}
		m.sources[i] = mergeSource{channelID: s.ChannelID}
		if deficit > 0 {
			m.sources[i].delay = make([]float32, deficit)
		}
	}
	return m
}

func (p *Merge) ID() string   { return MergeID }
func (p *Merge) Name() string { return "Merge" }

func (p *Merge) Initialize(sampleRate, blockSize int) error {
	return nil
}

// delayedSample pushes v into the ring delay and returns the sample that
// falls out the other end (or v unchanged if the line has zero length).
func delayedSample(line []float32, writeIdx *int, v float32) float32 {
	if len(line) == 0 {
		return v
	}
	out := line[*writeIdx]
	line[*writeIdx] = v
	*writeIdx = (*writeIdx + 1) % len(line)
	return out
}

func (p *Merge) Process(buf []float32, ctx *plugin.ProcessContext) {
	n := len(p.sources)
	invertTarget := p.polarity == PolarityInvertTarget
	invertSources := p.polarity == PolarityInvertSources

	var scale float64
	switch p.strategy {
	case MergeAverage:
		scale = 1.0 / float64(n+1)
	case MergeEqualPower:
		if n > 0 {
			scale = 1.0 / math.Sqrt(float64(n))
		} else {
			scale = 1.0
		}
	default:
		scale = 1.0
	}

	for i, v := range buf {
		target := v
		if invertTarget {
			target = -target
		}
		if p.aligned {
			target = delayedSample(p.targetDelay, &p.targetWrite, target)
		}

		sum := target
		for si, src := range p.sources {
			out, ok := ctx.Routing.ReadChannelOutput(src.channelID)
			var s float32
			if ok && i < len(out) {
				s = out[i]
			}
			if invertSources {
				s = -s
			}
			if p.aligned {
				s = delayedSample(p.sources[si].delay, &p.sources[si].write, s)
			}
			sum += s
		}

		switch p.strategy {
		case MergeSum:
			buf[i] = sum
		case MergeAverage, MergeEqualPower:
			buf[i] = float32(float64(sum) * scale)
		}
	}
}

func (p *Merge) ProcessMeters(buf []float32) {}

// Latency reports zero: alignment delay is a fixed-depth line applied
// per-sample within the block, not an additional reported chain latency.
func (p *Merge) Latency() int { return 0 }

func (p *Merge) Parameters() []plugin.Descriptor { return nil }
func (p *Merge) SetParameter(index int, value float64) {}
func (p *Merge) State() []byte                          { return nil }

// DependsOn implements plugin.RoutingDependencyProvider.
func (p *Merge) DependsOn() []int {
	ids := make([]int, len(p.sources))
	for i, s := range p.sources {
		ids[i] = s.channelID
	}
	return ids
}

var (
	_ plugin.Plugin                    = (*Merge)(nil)
	_ plugin.RoutingDependencyProvider = (*Merge)(nil)
)
