package smoother

import (
	"math"
	"time"
)

// Ballistics time constants.
const (
	peakAttackMS  = 1.0
	peakReleaseMS = 100.0
	rmsAttackMS   = 50.0
	rmsReleaseMS  = 150.0

	// ClipHoldDuration is how long the clip latch stays true after the
	// triggering sample.
	ClipHoldDuration = 500 * time.Millisecond
)

// PeakRMS is a combined peak-follower and RMS envelope meter with a clip
// latch. The zero value is not usable; use NewPeakRMS.
type PeakRMS struct {
	sampleRate int

	peak      float64
	rmsSquare float64

	clipped  bool
	clipHold int // samples remaining in the clip-hold window
}

// NewPeakRMS returns a meter configured for sampleRate.
func NewPeakRMS(sampleRate int) *PeakRMS {
	return &PeakRMS{sampleRate: sampleRate}
}

// blockCoeff converts a per-sample time-constant coefficient to the
// equivalent per-block coefficient: coeff = 1 - (1-c)^N.
func blockCoeff(tauMS float64, sampleRate, blockSize int) float64 {
	c := 1.0 - math.Exp(-1.0/(tauMS/1000.0*float64(sampleRate)))
	return 1 - math.Pow(1-c, float64(blockSize))
}

// Process updates the meter from one block of mono samples. It must be
// called once per block (not per sample) so the block-coefficient
// approximation holds.
func (m *PeakRMS) Process(block []float32) {
	if len(block) == 0 {
		return
	}

	var maxAbs float64
	var sumSquares float64
	triggerClip := false
	for _, s := range block {
		v := float64(s)
		if math.IsInf(v, 0) || math.IsNaN(v) {
			triggerClip = true
			continue
		}
		a := math.Abs(v)
		if a > maxAbs {
			maxAbs = a
		}
		if a > 1.0 {
			triggerClip = true
		}
		sumSquares += v * v
	}
	blockRMS := math.Sqrt(sumSquares / float64(len(block)))

	attackPeak := blockCoeff(peakAttackMS, m.sampleRate, len(block))
	releasePeak := blockCoeff(peakReleaseMS, m.sampleRate, len(block))
	if maxAbs > m.peak {
		m.peak += attackPeak * (maxAbs - m.peak)
	} else {
		m.peak += releasePeak * (maxAbs - m.peak)
	}

	attackRMS := blockCoeff(rmsAttackMS, m.sampleRate, len(block))
	releaseRMS := blockCoeff(rmsReleaseMS, m.sampleRate, len(block))
	if blockRMS > m.rmsSquare {
		m.rmsSquare += attackRMS * (blockRMS - m.rmsSquare)
	} else {
		m.rmsSquare += releaseRMS * (blockRMS - m.rmsSquare)
	}

	if triggerClip {
		m.clipped = true
		m.clipHold = int(ClipHoldDuration.Seconds() * float64(m.sampleRate))
	} else if m.clipHold > 0 {
		m.clipHold -= len(block)
		if m.clipHold <= 0 {
			m.clipHold = 0
			m.clipped = false
		}
	}
}

// Peak returns the current peak envelope value (>= 0).
func (m *PeakRMS) Peak() float64 { return m.peak }

// RMS returns the current RMS envelope value (>= 0).
func (m *PeakRMS) RMS() float64 { return m.rmsSquare }

// Clipped reports whether the clip latch is currently engaged.
func (m *PeakRMS) Clipped() bool { return m.clipped }

// Reset clears the meter to silence.
func (m *PeakRMS) Reset() {
	m.peak = 0
	m.rmsSquare = 0
	m.clipped = false
	m.clipHold = 0
}
