// Package smoother provides per-sample parameter ramps and level metering
// used on the audio thread: a linear gain smoother (to avoid zipper noise
// on any UI-driven gain change), a peak/RMS envelope follower, and an
// ITU-R BS.1770 K-weighted loudness meter.
package smoother

// DefaultRampMS is the default smoothing time for gain/mute ramps.
const DefaultRampMS = 5.0

// Linear is a per-sample linear ramp from a current value toward a target
// over a configured time. Zero value is not usable; use New.
type Linear struct {
	current  float64
	target   float64
	stepSize float64 // per-sample increment toward target, recomputed on SetTarget
	remain   int     // samples left in the current ramp
	rampLen  int     // ramp length in samples, derived from rampMS and sample rate
	rampMS   float64
}

// New returns a Linear smoother initialized to value, ramping over rampMS
// milliseconds at the given sample rate.
func New(sampleRate int, rampMS float64, value float64) *Linear {
	if rampMS <= 0 {
		rampMS = DefaultRampMS
	}
	l := &Linear{current: value, target: value, rampMS: rampMS}
	l.rampLen = rampSamples(sampleRate, rampMS)
	return l
}

func rampSamples(sampleRate int, rampMS float64) int {
	n := int(float64(sampleRate) * rampMS / 1000.0)
	if n < 1 {
		n = 1
	}
	return n
}

// SetSampleRate recomputes the ramp length for a new sample rate. Called
// only when a plugin/channel is (re)initialized, never mid-block.
func (l *Linear) SetSampleRate(sampleRate int) {
	l.rampLen = rampSamples(sampleRate, l.rampMS)
}

// SetTarget begins ramping toward target over the configured ramp time.
func (l *Linear) SetTarget(target float64) {
	l.target = target
	l.remain = l.rampLen
	l.stepSize = (l.target - l.current) / float64(l.rampLen)
}

// SetImmediate sets both current and target to value with no ramp,
// cancelling any in-flight smoothing. Used only at construction/reset, never
// as a substitute for SetTarget in steady-state operation.
func (l *Linear) SetImmediate(value float64) {
	l.current = value
	l.target = value
	l.remain = 0
}

// IsSmoothing reports whether the ramp has not yet reached its target.
func (l *Linear) IsSmoothing() bool { return l.remain > 0 }

// Next advances the ramp by one sample and returns the new current value.
func (l *Linear) Next() float64 {
	if l.remain <= 0 {
		return l.current
	}
	l.remain--
	if l.remain == 0 {
		l.current = l.target
	} else {
		l.current += l.stepSize
	}
	return l.current
}

// Value returns the current value without advancing the ramp.
func (l *Linear) Value() float64 { return l.current }

// Target returns the ramp's destination value.
func (l *Linear) Target() float64 { return l.target }
