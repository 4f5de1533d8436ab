// Package aec provides a Normalized Least Mean Squares (NLMS) acoustic echo
// canceller: a reference (far-end) channel's output is fed in each block,
// and Process subtracts the adaptively estimated echo of that reference
// from the near-end capture in place.
//
// Usage:
//
//	aecProc := aec.New(480)   // 480 samples = 10 ms @ 48 kHz
//
//	// Each block, after the reference channel has produced its output:
//	aecProc.FeedFarEnd(ref)
//
//	// Then, on the channel carrying the echo:
//	aecProc.Process(buf)     // modifies buf in-place
//
// All methods are called from the single audio thread (FeedFarEnd and
// Process from a plugin's Process, SetEnabled via the parameter queue,
// which is also drained on the audio thread), so no locking is needed and
// none is done.
package aec

const (
	// DefaultDelay is the bulk delay (samples) assumed between playback and the
	// echo arriving at the microphone. 1920 samples = 40 ms at 48 kHz, which
	// covers typical system latency (DAC + acoustic path + ADC).
	DefaultDelay = 1920

	// DefaultTaps is the NLMS filter length (samples). 480 samples = 10 ms at
	// 48 kHz. The filter handles residual delay and room response within this
	// window after the bulk delay.
	DefaultTaps = 480

	// DefaultStep is the NLMS step size mu (0 < mu < 2). Smaller values
	// converge more slowly but are more stable; 0.1 is conservative.
	DefaultStep = 0.1
)

// AEC is an NLMS-based acoustic echo canceller. Not safe for concurrent
// use; it belongs to exactly one channel's chain.
type AEC struct {
	enabled bool

	// NLMS filter state
	weights []float64 // adaptive filter coefficients [tapLen]
	tapLen  int
	step    float64 // NLMS step size (mu)

	// Circular buffer for the far-end (reference) signal.
	// Size = frameSize + delayLen + tapLen, so a full delay-plus-filter
	// window is always resident.
	farBuf    []float32
	farHead   int // next write position in farBuf
	bufLen    int
	delayLen  int
	frameSize int

	// ref is a preallocated scratch window reused by Process every block, so
	// echo cancellation never allocates on the audio thread.
	ref []float32
}

// New creates an AEC for the given PCM frame size (in samples).
// frameSize = 480 for 10 ms at 48 kHz.
func New(frameSize int) *AEC {
	bufLen := frameSize + DefaultDelay + DefaultTaps
	return &AEC{
		enabled:   true,
		weights:   make([]float64, DefaultTaps),
		tapLen:    DefaultTaps,
		step:      DefaultStep,
		farBuf:    make([]float32, bufLen),
		bufLen:    bufLen,
		delayLen:  DefaultDelay,
		frameSize: frameSize,
		ref:       make([]float32, frameSize+DefaultTaps-1),
	}
}

// SetEnabled enables or disables echo cancellation. Enabling resets the
// filter weights so it adapts cleanly from scratch.
func (a *AEC) SetEnabled(enabled bool) {
	a.enabled = enabled
	if enabled {
		for i := range a.weights {
			a.weights[i] = 0
		}
	}
}

// FeedFarEnd stores the most recent reference frame as the far-end signal.
// Call once per block, before Process.
func (a *AEC) FeedFarEnd(frame []float32) {
	for _, s := range frame {
		a.farBuf[a.farHead] = s
		a.farHead = (a.farHead + 1) % a.bufLen
	}
}

// Process applies echo cancellation to a captured frame in-place.
//
// The algorithm:
//  1. Copies the relevant far-end reference window into a contiguous
//     scratch slice.
//  2. Runs NLMS sample-by-sample over that window.
//  3. Output sample = near_end[i] − Σ w[k]*far_end[i+tapLen−1−k].
//     The NLMS update adapts the weights toward the actual echo path.
func (a *AEC) Process(frame []float32) {
	if !a.enabled {
		return
	}

	// We need frameSize+tapLen−1 reference samples, starting at:
	//   startIdx = farHead − frameSize − delayLen − tapLen + 1
	// For sample i, tap k: ref[i + tapLen − 1 − k].
	refLen := a.frameSize + a.tapLen - 1
	ref := a.ref
	startIdx := a.farHead - a.frameSize - a.delayLen - a.tapLen + 1
	for j := 0; j < refLen; j++ {
		// Add 3*bufLen to guarantee a positive dividend before modulo.
		idx := ((startIdx+j)%a.bufLen + 3*a.bufLen) % a.bufLen
		ref[j] = a.farBuf[idx]
	}

	for i := range frame {
		// refBase: index into ref of the most-recent tap (k=0) for sample i.
		refBase := i + a.tapLen - 1

		// Compute filter output y and power of the reference vector.
		var y, powerSum float64
		for k := 0; k < a.tapLen; k++ {
			x := float64(ref[refBase-k])
			y += a.weights[k] * x
			powerSum += x * x
		}

		// Error = near-end − echo estimate.
		e := float64(frame[i]) - y

		// Normalised weight update: w[k] += mu * e * x[k] / (||x||² + ε).
		if powerSum > 1e-10 {
			step := a.step * e / powerSum
			for k := 0; k < a.tapLen; k++ {
				a.weights[k] += step * float64(ref[refBase-k])
			}
		}

		frame[i] = float32(e)
	}
}
