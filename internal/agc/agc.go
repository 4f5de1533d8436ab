// Package agc implements automatic gain control for mono float32 PCM
// blocks: an RMS envelope drives a linear gain multiplier toward a target
// level using independent attack (gain-down) and release (gain-up) time
// constants, converted to per-block exponential coefficients the same way
// internal/smoother's peak/RMS meter derives its ballistics. Wrapped by
// internal/builtins.Leveler for use inside a channel's plugin chain.
package agc

import "math"

const (
	// DefaultTargetDb is the desired RMS level (~-14 dBFS).
	DefaultTargetDb = -14.0

	// MinGain limits attenuation of loud signals to 20 dB.
	MinGain = 0.1
	// MaxGain allows up to +20 dB of amplification.
	MaxGain = 10.0

	// attackMS shapes how quickly gain is reduced when level exceeds
	// target; fast, to tame transients before they clip.
	attackMS = 5.0
	// releaseMS shapes how quickly gain recovers after a loud transient;
	// slow, to avoid audible pumping.
	releaseMS = 300.0

	// minRMS suppresses gain updates on near-silent blocks (below the noise
	// floor) so gain doesn't chase noise toward the target.
	minRMS = 0.001
)

// AGC is a single-channel automatic gain control processor, sample-rate
// aware so attack/release behave consistently regardless of block size.
// Zero value is not usable; use New.
type AGC struct {
	sampleRate int
	target     float64 // desired RMS level, linear amplitude
	gain       float64 // current linear gain multiplier
}

// New returns an AGC at DefaultTargetDb and unity gain for sampleRate.
func New(sampleRate int) *AGC {
	return &AGC{sampleRate: sampleRate, target: dbToLinear(DefaultTargetDb), gain: 1.0}
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20.0) }

// SetTargetDb sets the desired RMS level in dBFS.
func (a *AGC) SetTargetDb(db float64) { a.target = dbToLinear(db) }

// blockCoeff converts a time constant in milliseconds to a per-block
// exponential coefficient for the current sample rate and block length,
// matching internal/smoother.PeakRMS's ballistics.
func blockCoeff(tauMS float64, sampleRate, blockSize int) float64 {
	c := 1.0 - math.Exp(-1.0/(tauMS/1000.0*float64(sampleRate)))
	return 1 - math.Pow(1-c, float64(blockSize))
}

func rms(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(block)))
}

// Process applies the current gain to block in-place, then updates the
// gain estimate from this block's RMS. Returns block for chaining.
func (a *AGC) Process(block []float32) []float32 {
	if len(block) == 0 {
		return block
	}

	level := rms(block)

	for i, s := range block {
		v := s * float32(a.gain)
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		block[i] = v
	}

	if level < minRMS {
		return block
	}

	desired := a.target / level
	if desired < MinGain {
		desired = MinGain
	} else if desired > MaxGain {
		desired = MaxGain
	}

	var coeff float64
	if desired < a.gain {
		coeff = blockCoeff(attackMS, a.sampleRate, len(block))
	} else {
		coeff = blockCoeff(releaseMS, a.sampleRate, len(block))
	}
	a.gain += coeff * (desired - a.gain)

	return block
}

// Gain returns the current linear gain multiplier (informational).
func (a *AGC) Gain() float64 { return a.gain }

// Reset resets the gain to unity without changing the target.
func (a *AGC) Reset() { a.gain = 1.0 }
