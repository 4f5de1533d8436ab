package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadNeutralWhenNoProducer(t *testing.T) {
	b := New(64)
	require.Equal(t, float32(NeutralValue), b.Read(1, SpeechPresence, 100))
	require.False(t, b.HasProducer(1, SpeechPresence))
}

func TestReadExactSampleTime(t *testing.T) {
	b := New(64)
	for i := int64(0); i < 10; i++ {
		b.Publish(1, PitchHz, i, float32(100+i))
	}
	v := b.Read(1, PitchHz, 5)
	require.Equal(t, float32(105), v)
}

func TestReadOutsideLookbackIsNeutral(t *testing.T) {
	b := New(4)
	for i := int64(0); i < 10; i++ {
		b.Publish(1, PitchHz, i, float32(i))
	}
	// Only the last 4 samples (6,7,8,9) remain addressable.
	require.Equal(t, float32(NeutralValue), b.Read(1, PitchHz, 5))
	require.Equal(t, float32(6), b.Read(1, PitchHz, 6))
	require.Equal(t, float32(9), b.Read(1, PitchHz, 9))
}

func TestReadAheadOfWriteHeadIsNeutral(t *testing.T) {
	b := New(64)
	b.Publish(1, PitchHz, 5, 42)
	require.Equal(t, float32(NeutralValue), b.Read(1, PitchHz, 6))
}

// TestSampleTimeCorrectnessAcrossLatency: a producer at cumulative latency
// P publishes at its own sample_time (clock + P). A consumer at cumulative
// latency L reading at its own sample_time (clock + L) gets the value the
// producer published for that same sample time, i.e. the one the producer
// emitted L - P clock ticks later than the consumer's clock.
func TestSampleTimeCorrectnessAcrossLatency(t *testing.T) {
	b := New(256)
	const producerLatency = 10
	const consumerLatency = 40
	sampleClock := int64(1000)

	for i := int64(0); i < 60; i++ {
		producerSampleTime := sampleClock + i + producerLatency
		b.Publish(1, VoicingScore, producerSampleTime, float32(producerSampleTime))
	}

	consumerSampleTime := sampleClock + 20 + consumerLatency
	got := b.Read(1, VoicingScore, consumerSampleTime)
	want := float32(sampleClock + 20 + (consumerLatency - producerLatency) + producerLatency)
	require.Equal(t, want, got)
}

func TestResetClearsProducers(t *testing.T) {
	b := New(64)
	b.Publish(1, PitchHz, 1, 1)
	b.Reset()
	require.False(t, b.HasProducer(1, PitchHz))
}
