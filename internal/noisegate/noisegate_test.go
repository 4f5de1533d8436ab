package noisegate

import (
	"math"
	"testing"
)

const testSampleRate = 48000

func sineBlock(amplitude float32, size int) []float32 {
	block := make([]float32, size)
	for i := range block {
		t := float64(i) / testSampleRate
		block[i] = amplitude * float32(math.Sin(2*math.Pi*440*t))
	}
	return block
}

func silentBlock(size int) []float32 {
	return make([]float32, size)
}

func TestNewDefaults(t *testing.T) {
	g := New(testSampleRate)
	wantThreshold := math.Pow(10, DefaultThresholdDb/20.0)
	if math.Abs(g.thresholdLinear-wantThreshold) > 1e-9 {
		t.Errorf("thresholdLinear: got %f, want %f", g.thresholdLinear, wantThreshold)
	}
	wantHold := int(DefaultHoldMS / 1000.0 * testSampleRate)
	if g.holdSamples != wantHold {
		t.Errorf("holdSamples: got %d, want %d", g.holdSamples, wantHold)
	}
	if !g.enabled {
		t.Error("gate should be enabled by default")
	}
}

func TestProcessZeroesBlockBelowThreshold(t *testing.T) {
	g := New(testSampleRate)
	block := sineBlock(0.0005, 960) // well below default threshold
	g.Process(block)
	for i, s := range block {
		if s != 0 {
			t.Fatalf("block[%d] = %f, expected 0 (gated)", i, s)
		}
	}
	if g.IsOpen() {
		t.Error("gate should report closed after zeroing")
	}
}

func TestProcessPassesBlockAboveThreshold(t *testing.T) {
	g := New(testSampleRate)
	block := sineBlock(0.5, 960) // well above threshold
	g.Process(block)
	nonZero := false
	for _, s := range block {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatal("loud block was zeroed; gate should pass it through")
	}
	if !g.IsOpen() {
		t.Error("gate should report open while passing audio")
	}
}

func TestHoldKeepsGateOpenUntilElapsed(t *testing.T) {
	g := New(testSampleRate)
	g.SetHoldMS(40) // 1920 samples at 48kHz, i.e. exactly two 960-sample blocks

	g.Process(sineBlock(0.5, 960))
	if !g.IsOpen() {
		t.Fatal("gate should be open after a loud block")
	}

	// First silent block (960 samples) is still within the hold window.
	g.Process(silentBlock(960))
	if !g.IsOpen() {
		t.Fatal("gate closed before the hold window elapsed")
	}

	// Second silent block exhausts the hold window (960+960=1920).
	g.Process(silentBlock(960))
	if g.IsOpen() {
		t.Fatal("gate should close once the hold window elapses")
	}
}

func TestHoldResetsOnRenewedSignal(t *testing.T) {
	g := New(testSampleRate)
	g.SetHoldMS(40)

	g.Process(sineBlock(0.5, 960))
	g.Process(silentBlock(960)) // consumes half the hold window
	g.Process(sineBlock(0.5, 960)) // renews it

	g.Process(silentBlock(960))
	if !g.IsOpen() {
		t.Error("renewed signal should reset the hold countdown")
	}
}

func TestDisabledGateNeverZeroes(t *testing.T) {
	g := New(testSampleRate)
	g.SetEnabled(false)

	block := sineBlock(0.0001, 960) // very quiet
	orig := append([]float32(nil), block...)
	g.Process(block)

	for i := range block {
		if block[i] != orig[i] {
			t.Fatalf("block[%d] modified while gate disabled: got %f, want %f", i, block[i], orig[i])
		}
	}
	if !g.IsOpen() {
		t.Error("a disabled gate should always report open")
	}
}

func TestSetThresholdDbConvertsToLinear(t *testing.T) {
	g := New(testSampleRate)
	g.SetThresholdDb(-20)
	want := math.Pow(10, -20.0/20.0)
	if math.Abs(g.Threshold()-want) > 1e-9 {
		t.Errorf("threshold after SetThresholdDb(-20): got %f, want %f", g.Threshold(), want)
	}
}

func TestProcessReturnsRMSRegardlessOfGating(t *testing.T) {
	g := New(testSampleRate)
	block := sineBlock(0.5, 960)
	level := g.Process(block)
	if level <= 0 {
		t.Errorf("Process returned rms=%f, expected > 0", level)
	}
}

func TestResetClosesGateImmediately(t *testing.T) {
	g := New(testSampleRate)
	g.Process(sineBlock(0.5, 960))
	g.Reset()
	if g.IsOpen() {
		t.Fatal("gate should report closed immediately after Reset")
	}

	g.Process(silentBlock(960))
	if g.IsOpen() {
		t.Fatal("gate should remain closed for a silent block right after Reset")
	}
}

func TestRMSHelperOnEmptyOrSilentBlock(t *testing.T) {
	if rms(nil) != 0 {
		t.Error("rms(nil) should be 0")
	}
	if rms(silentBlock(960)) != 0 {
		t.Error("rms of silence should be 0")
	}
}
