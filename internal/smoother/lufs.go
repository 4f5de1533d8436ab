package smoother

import "math"

// K-weighting and gating constants from ITU-R BS.1770.
const (
	lufsOffset = -0.691
	lufsFloor  = -70.0

	momentaryWindow = 0.4 // seconds
	shortTermWindow = 3.0 // seconds
)

// biquad is a direct-form-II transposed second-order IIR filter.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x + f.z2 - f.a1*y
	f.z2 = f.b2*x - f.a2*y
	return y
}

// newHighPass returns the BS.1770 60 Hz Q=0.5 high-pass stage.
func newHighPass(sampleRate int) *biquad {
	return rbjHighPass(float64(sampleRate), 60.0, 0.5)
}

// newHighShelf returns the BS.1770 4 kHz +4 dB Q=0.707 high-shelf stage.
func newHighShelf(sampleRate int) *biquad {
	return rbjHighShelf(float64(sampleRate), 4000.0, 0.707, 4.0)
}

func rbjHighPass(fs, fc, q float64) *biquad {
	w0 := 2 * math.Pi * fc / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return &biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func rbjHighShelf(fs, fc, q, gainDb float64) *biquad {
	a := math.Pow(10, gainDb/40)
	w0 := 2 * math.Pi * fc / fs
	cosw0 := math.Cos(w0)
	sinw0 := math.Sin(w0)
	alpha := sinw0 / (2 * q)
	twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) + (a-1)*cosw0 + twoSqrtAAlpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw0)
	b2 := a * ((a + 1) + (a-1)*cosw0 - twoSqrtAAlpha)
	a0 := (a + 1) - (a-1)*cosw0 + twoSqrtAAlpha
	a1 := 2 * ((a - 1) - (a+1)*cosw0)
	a2 := (a + 1) - (a-1)*cosw0 - twoSqrtAAlpha

	return &biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// LUFS computes ITU-R BS.1770 K-weighted loudness for a single channel,
// with momentary (400 ms) and short-term (3 s) sliding windows. Stereo
// programs run one LUFS per channel and combine mean-square sums before
// taking the log (see Combine).
type LUFS struct {
	sampleRate int
	hp, shelf  *biquad

	momentaryBuf []float64
	momentaryPos int
	momentaryLen int
	momentarySum float64
	momentaryN   int

	shortTermBuf []float64
	shortTermPos int
	shortTermLen int
	shortTermSum float64
	shortTermN   int
}

// NewLUFS returns a LUFS meter for one channel at sampleRate, processing in
// blockSize-sample chunks (the block is the meter's update granularity).
func NewLUFS(sampleRate, blockSize int) *LUFS {
	momentarySamples := int(momentaryWindow * float64(sampleRate))
	shortTermSamples := int(shortTermWindow * float64(sampleRate))

	momentaryBlocks := ceilDiv(momentarySamples, blockSize)
	shortTermBlocks := ceilDiv(shortTermSamples, blockSize)
	if momentaryBlocks < 1 {
		momentaryBlocks = 1
	}
	if shortTermBlocks < 1 {
		shortTermBlocks = 1
	}

	return &LUFS{
		sampleRate:   sampleRate,
		hp:           newHighPass(sampleRate),
		shelf:        newHighShelf(sampleRate),
		momentaryBuf: make([]float64, momentaryBlocks),
		momentaryLen: momentaryBlocks,
		shortTermBuf: make([]float64, shortTermBlocks),
		shortTermLen: shortTermBlocks,
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// Process K-weights block and folds its mean-square power into both
// sliding windows.
func (l *LUFS) Process(block []float32) {
	if len(block) == 0 {
		return
	}
	var sumSquares float64
	for _, s := range block {
		v := l.hp.process(float64(s))
		v = l.shelf.process(v)
		sumSquares += v * v
	}
	meanSquare := sumSquares / float64(len(block))

	l.push(&l.momentaryBuf, &l.momentaryPos, l.momentaryLen, &l.momentarySum, &l.momentaryN, meanSquare)
	l.push(&l.shortTermBuf, &l.shortTermPos, l.shortTermLen, &l.shortTermSum, &l.shortTermN, meanSquare)
}

func (l *LUFS) push(buf *[]float64, pos *int, length int, sum *float64, n *int, v float64) {
	if *n >= length {
		*sum -= (*buf)[*pos]
	} else {
		*n++
	}
	(*buf)[*pos] = v
	*sum += v
	*pos = (*pos + 1) % length
}

// Momentary returns the 400 ms momentary loudness in LUFS.
func (l *LUFS) Momentary() float64 {
	return toLUFS(l.momentarySum / float64(maxInt(l.momentaryN, 1)))
}

// ShortTerm returns the 3 s short-term loudness in LUFS.
func (l *LUFS) ShortTerm() float64 {
	return toLUFS(l.shortTermSum / float64(maxInt(l.shortTermN, 1)))
}

func toLUFS(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return lufsFloor
	}
	v := lufsOffset + 10*math.Log10(meanSquare)
	if v < lufsFloor {
		return lufsFloor
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MomentaryPower returns the raw momentary mean-square power (pre-log),
// for combining multiple channels before taking the logarithm.
func (l *LUFS) MomentaryPower() float64 {
	return l.momentarySum / float64(maxInt(l.momentaryN, 1))
}

// ShortTermPower returns the raw short-term mean-square power (pre-log).
func (l *LUFS) ShortTermPower() float64 {
	return l.shortTermSum / float64(maxInt(l.shortTermN, 1))
}

// Combine merges per-channel mean-square power (as produced by
// MomentaryPower/ShortTermPower) into a single program loudness value, used
// for the stereo master meter.
func Combine(meanSquares ...float64) float64 {
	var sum float64
	for _, m := range meanSquares {
		sum += m
	}
	return toLUFS(sum)
}
