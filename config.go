package hotmic

// EngineConfig is the only configuration surface the engine accepts — a
// host supplies it at construction. On-disk persistence, preset formats,
// and MIDI binding belong to the host, not here.
type EngineConfig struct {
	// SampleRate is fixed for the session; the graph performs no
	// sample-rate conversion.
	SampleRate int
	// BlockSize is the audio thread's per-call processing granularity. A
	// host callback may deliver more than BlockSize frames at once; the
	// pipeline chunks its work into BlockSize-sized slices.
	BlockSize int

	// InputRingSize sizes each channel's capture ring, in samples. Rounded
	// up to a power of two by internal/ringbuffer. Defaults to 8192 if 0.
	InputRingSize int
	// MonitorRingSize sizes the stereo monitor mirror ring, in interleaved
	// frames. Defaults to 8192 if 0.
	MonitorRingSize int
	// ParameterQueueSize sizes the MPSC parameter queue. Defaults to 256
	// if 0.
	ParameterQueueSize int
	// AnalysisLookback sizes each analysis producer ring's bounded
	// lookback, in samples. Defaults to analysis.DefaultLookback if 0.
	AnalysisLookback int
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.InputRingSize <= 0 {
		c.InputRingSize = 8192
	}
	if c.MonitorRingSize <= 0 {
		c.MonitorRingSize = 8192
	}
	if c.ParameterQueueSize <= 0 {
		c.ParameterQueueSize = 256
	}
	return c
}
