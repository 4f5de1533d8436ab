package agc

import (
	"math"
	"testing"
)

const testSampleRate = 48000

func constantBlock(n int, level float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = level
	}
	return b
}

func TestNewDefaults(t *testing.T) {
	a := New(testSampleRate)
	wantTarget := dbToLinear(DefaultTargetDb)
	if math.Abs(a.target-wantTarget) > 1e-9 {
		t.Errorf("target: got %f, want %f", a.target, wantTarget)
	}
	if a.gain != 1.0 {
		t.Errorf("gain: got %f, want 1.0", a.gain)
	}
}

func TestSetTargetDbConvertsToLinear(t *testing.T) {
	a := New(testSampleRate)
	a.SetTargetDb(-20)
	want := dbToLinear(-20)
	if math.Abs(a.target-want) > 1e-9 {
		t.Errorf("target after SetTargetDb(-20): got %f, want %f", a.target, want)
	}
}

func TestProcessAppliesCurrentGainBeforeUpdating(t *testing.T) {
	a := New(testSampleRate)
	a.gain = 2.0
	block := constantBlock(16, 0.1)
	a.Process(block)
	for i, s := range block {
		if math.Abs(float64(s-0.2)) > 1e-5 {
			t.Fatalf("sample %d: got %f, want 0.2 (applied with pre-update gain)", i, s)
		}
	}
}

func TestProcessClampsOutputToUnitRange(t *testing.T) {
	a := New(testSampleRate)
	a.gain = 10.0
	block := constantBlock(8, 0.5)
	a.Process(block)
	for i, s := range block {
		if s > 1.0 || s < -1.0 {
			t.Errorf("sample %d out of range after clamping: %f", i, s)
		}
	}
}

func TestProcessSkipsGainUpdateBelowNoiseFloor(t *testing.T) {
	a := New(testSampleRate)
	a.gain = 3.0
	block := constantBlock(960, 0.0001) // below minRMS
	a.Process(block)
	if a.gain != 3.0 {
		t.Errorf("gain should not move on a near-silent block, got %f", a.gain)
	}
}

func TestProcessAttacksFasterThanItReleases(t *testing.T) {
	quiet := New(testSampleRate)
	quiet.gain = 1.0
	loud := New(testSampleRate)
	loud.gain = 1.0

	// Quiet input drives gain up (release); loud input drives gain down
	// (attack). The two desired gains lie at different distances from 1.0,
	// so after an equal number of identical-shape steps the attack path
	// should have covered a larger fraction of its distance to the target.
	for i := 0; i < 10; i++ {
		quiet.Process(constantBlock(960, 0.02)) // below target, gain rises
		loud.Process(constantBlock(960, 2.0))   // above target, gain falls
	}

	quietDesired := math.Min(MaxGain, quiet.target/0.02)
	loudDesired := math.Max(MinGain, loud.target/2.0)
	quietMoved := (quiet.gain - 1.0) / (quietDesired - 1.0)
	loudMoved := (1.0 - loud.gain) / (1.0 - loudDesired)
	if loudMoved <= quietMoved {
		t.Errorf("attack (covered %f of its distance) should outpace release (covered %f) over equal steps", loudMoved, quietMoved)
	}
}

func TestProcessDrivesGainTowardTargetOverTime(t *testing.T) {
	a := New(testSampleRate)
	a.SetTargetDb(-10) // linear ~0.316, well above the quiet input below

	block := constantBlock(960, 0.02)
	for i := 0; i < 200; i++ {
		a.Process(append([]float32(nil), block...))
	}
	if a.Gain() <= 1.0 {
		t.Errorf("gain should rise above unity driving a quiet signal toward a higher target, got %f", a.Gain())
	}
	if a.Gain() > MaxGain {
		t.Errorf("gain must never exceed MaxGain, got %f", a.Gain())
	}
}

func TestGainBoundedByConstants(t *testing.T) {
	a := New(testSampleRate)
	tiny := constantBlock(960, 0.0001)
	for i := 0; i < 500; i++ {
		a.Process(append([]float32(nil), tiny...))
	}
	if a.gain > MaxGain+1e-9 {
		t.Errorf("gain exceeded MaxGain: %f", a.gain)
	}

	loud := constantBlock(960, 0.99)
	for i := 0; i < 500; i++ {
		a.Process(append([]float32(nil), loud...))
	}
	if a.gain < MinGain-1e-9 {
		t.Errorf("gain below MinGain: %f", a.gain)
	}
}

func TestResetRestoresUnityGain(t *testing.T) {
	a := New(testSampleRate)
	a.gain = 5.0
	a.Reset()
	if a.Gain() != 1.0 {
		t.Errorf("Reset should restore unity gain, got %f", a.Gain())
	}
}

func TestProcessEmptyBlockIsNoop(t *testing.T) {
	a := New(testSampleRate)
	a.gain = 2.5
	out := a.Process(nil)
	if out != nil {
		t.Error("Process(nil) should return nil")
	}
	if a.gain != 2.5 {
		t.Error("Process(nil) must not change the gain estimate")
	}
}

func TestRMSOfSilenceIsZero(t *testing.T) {
	if rms(nil) != 0 {
		t.Error("rms(nil) should be 0")
	}
	if rms(constantBlock(960, 0)) != 0 {
		t.Error("rms of silence should be 0")
	}
}

func TestBlockCoeffIncreasesWithBlockLength(t *testing.T) {
	short := blockCoeff(attackMS, testSampleRate, 64)
	long := blockCoeff(attackMS, testSampleRate, 960)
	if long <= short {
		t.Errorf("a longer block should move further per call: short=%f long=%f", short, long)
	}
}
