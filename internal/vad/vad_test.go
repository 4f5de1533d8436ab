package vad

import (
	"math"
	"testing"
)

const testSampleRate = 48000

func loudBlock(n int) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / testSampleRate))
	}
	return b
}

func silentBlock(n int) []float32 {
	return make([]float32, n)
}

func TestNewDefaults(t *testing.T) {
	d := New(testSampleRate)
	wantThreshold := math.Pow(10, DefaultThresholdDb/20.0)
	if math.Abs(d.thresholdLinear-wantThreshold) > 1e-9 {
		t.Errorf("thresholdLinear: got %f, want %f", d.thresholdLinear, wantThreshold)
	}
	wantHangover := int(DefaultHangoverMS / 1000.0 * testSampleRate)
	if d.hangoverSamples != wantHangover {
		t.Errorf("hangoverSamples: got %d, want %d", d.hangoverSamples, wantHangover)
	}
}

func TestProcessSilenceReportsNoPresence(t *testing.T) {
	d := New(testSampleRate)
	presence, voicing := d.Process(silentBlock(960))
	if presence != 0 {
		t.Error("silent block should report SpeechPresence=0")
	}
	if voicing != 0 {
		t.Errorf("silent block should report VoicingState=0, got %f", voicing)
	}
}

func TestProcessLoudBlockLatchesPresence(t *testing.T) {
	d := New(testSampleRate)
	presence, _ := d.Process(loudBlock(960))
	if presence != 1 {
		t.Error("block above threshold should report SpeechPresence=1")
	}
}

func TestHangoverKeepsPresenceAfterSpeechEnds(t *testing.T) {
	d := New(testSampleRate)
	d.SetHangoverMS(40) // 1920 samples at 48kHz
	d.Process(loudBlock(960))

	// One silent block (960 samples) should still be within the 1920-sample
	// hangover window.
	presence, _ := d.Process(silentBlock(960))
	if presence != 1 {
		t.Error("presence should remain latched within the hangover window")
	}

	// A second silent block exhausts the hangover (960+960=1920).
	presence, _ = d.Process(silentBlock(960))
	if presence != 0 {
		t.Error("presence should clear once the hangover window elapses")
	}
}

func TestHangoverResetsOnRenewedSpeech(t *testing.T) {
	d := New(testSampleRate)
	d.SetHangoverMS(40)
	d.Process(loudBlock(960))
	d.Process(silentBlock(960)) // consumes half the hangover
	d.Process(loudBlock(960))   // renews it

	presence, _ := d.Process(silentBlock(960))
	if presence != 1 {
		t.Error("renewed speech should reset the hangover countdown")
	}
}

func TestVoicingStateTracksEnvelopeTowardThreshold(t *testing.T) {
	d := New(testSampleRate)
	var last float32
	for i := 0; i < 200; i++ {
		_, last = d.Process(loudBlock(960))
	}
	if last < 0.9 {
		t.Errorf("voicing state should approach 1 once the envelope settles at a loud input, got %f", last)
	}
}

func TestVoicingStateClampedToUnitRange(t *testing.T) {
	d := New(testSampleRate)
	block := make([]float32, 960)
	for i := range block {
		block[i] = 5.0 // far above unity, well past threshold
	}
	var last float32
	for i := 0; i < 500; i++ {
		_, last = d.Process(block)
	}
	if last > 1.0 || last < 0.0 {
		t.Errorf("voicing state must stay within [0,1], got %f", last)
	}
}

func TestSetThresholdDbRaisesBarForPresence(t *testing.T) {
	d := New(testSampleRate)
	d.SetThresholdDb(0) // 0 dBFS: nothing short of clipping crosses it

	presence, _ := d.Process(loudBlock(960))
	if presence != 0 {
		t.Error("raising the threshold to 0 dBFS should suppress presence for a normal-level block")
	}
}

func TestResetClearsLatchAndEnvelope(t *testing.T) {
	d := New(testSampleRate)
	d.Process(loudBlock(960))
	d.Reset()

	presence, voicing := d.Process(silentBlock(960))
	if presence != 0 {
		t.Error("presence should be false immediately after Reset")
	}
	if voicing != 0 {
		t.Errorf("voicing envelope should be zero immediately after Reset, got %f", voicing)
	}
}

func TestProcessEmptyBlockReturnsCurrentState(t *testing.T) {
	d := New(testSampleRate)
	d.Process(loudBlock(960))
	presence, _ := d.Process(nil)
	if presence != 1 {
		t.Error("an empty block must not clear an active hangover")
	}
}
