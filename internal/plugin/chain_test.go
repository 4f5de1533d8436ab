package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakePlugin is a minimal Plugin used for chain tests: Process adds gain to
// every sample and records the context values it was called with. The chain
// reuses one ProcessContext across slots, so the values must be copied out
// rather than keeping the pointer.
type fakePlugin struct {
	id      string
	gain    float32
	latency int
	params  []float64

	lastSampleTime int64
	lastCumLatency int
}

func newFake(id string, latency int) *fakePlugin {
	return &fakePlugin{id: id, gain: 1, latency: latency, params: make([]float64, 1)}
}

func (f *fakePlugin) ID() string                        { return f.id }
func (f *fakePlugin) Name() string                       { return f.id }
func (f *fakePlugin) Initialize(sampleRate, block int) error { return nil }
func (f *fakePlugin) Process(buf []float32, ctx *ProcessContext) {
	f.lastSampleTime = ctx.SampleTime
	f.lastCumLatency = ctx.CumulativeLatency
	for i := range buf {
		buf[i] *= f.gain
	}
}
func (f *fakePlugin) ProcessMeters(buf []float32) {}
func (f *fakePlugin) Latency() int                 { return f.latency }
func (f *fakePlugin) Parameters() []Descriptor {
	return []Descriptor{{Index: 0, Name: "gain", Min: 0, Max: 4, Default: 1}}
}
func (f *fakePlugin) SetParameter(index int, value float64) {
	if index == 0 {
		f.gain = float32(value)
	}
}
func (f *fakePlugin) State() []byte { return nil }

func TestInsertAssignsUniqueStableInstanceIDs(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	id1 := c.Insert(0, newFake("a", 0))
	id2 := c.Insert(1, newFake("b", 0))
	require.NotEqual(t, id1, id2)

	snap := c.Load()
	require.Equal(t, 0, snap.FindByInstanceID(id1))
	require.Equal(t, 1, snap.FindByInstanceID(id2))
}

func TestRemoveByInstanceIDSurvivesReorder(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	idA := c.Insert(0, newFake("a", 0))
	c.Insert(1, newFake("b", 0))
	c.Reorder(0, 1) // now order is b, a

	snap := c.Load()
	require.Equal(t, 1, snap.FindByInstanceID(idA))

	removed := c.Remove(idA)
	require.NotNil(t, removed)
	snap = c.Load()
	require.Equal(t, -1, snap.FindByInstanceID(idA))
	require.Equal(t, 1, snap.Len())
}

func TestCumulativeLatencyPrefixSum(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	c.Insert(0, newFake("a", 10))
	c.Insert(1, newFake("b", 20))
	c.Insert(2, newFake("c", 30))

	snap := c.Load()
	require.Equal(t, 0, snap.CumulativeLatencyBefore(0))
	require.Equal(t, 10, snap.CumulativeLatencyBefore(1))
	require.Equal(t, 30, snap.CumulativeLatencyBefore(2))
	require.Equal(t, 60, snap.TotalLatency())
}

// TestSampleTimePassedToEachSlot: ProcessContext.SampleTime for slot k
// equals SampleClock + sum(latency_i for i<k).
func TestSampleTimePassedToEachSlot(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	pa := newFake("a", 5)
	pb := newFake("b", 7)
	c.Insert(0, pa)
	c.Insert(1, pb)

	snap := c.Load()
	const sampleClock = int64(1000)
	buf := make([]float32, 16)
	snap.Run(RunParams{Buf: buf, SampleClock: sampleClock, Routing: nil, Resolve: nil})

	require.Equal(t, sampleClock, pa.lastSampleTime)
	require.Equal(t, 0, pa.lastCumLatency)
	require.Equal(t, sampleClock+5, pb.lastSampleTime)
	require.Equal(t, 5, pb.lastCumLatency)
}

// TestBypassAndMuteCallProcessMeters verifies that bypassed/muted slots
// never call Process (no gain applied), only ProcessMeters.
func TestBypassAndMuteCallProcessMeters(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	p := newFake("a", 0)
	p.gain = 2
	id := c.Insert(0, p)
	c.SetBypassed(id, true)

	snap := c.Load()
	buf := []float32{1, 1, 1}
	snap.Run(RunParams{Buf: buf, SampleClock: 0})
	for _, v := range buf {
		require.Equal(t, float32(1), v, "bypassed slot must not apply gain")
	}

	c.SetBypassed(id, false)
	buf = []float32{1, 1, 1}
	snap.Run(RunParams{Buf: buf, SampleClock: 0, Muted: true})
	for _, v := range buf {
		require.Equal(t, float32(1), v, "muted chain must not apply gain")
	}
}

// TestSetBypassedMutatesInPlace: toggling bypass flips the live flag on
// the already-published snapshot rather than publishing a new one, since
// it is applied from the audio thread and must not allocate.
func TestSetBypassedMutatesInPlace(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	id := c.Insert(0, newFake("a", 0))

	snap := c.Load()
	require.False(t, snap.Bypassed(0))

	require.True(t, c.SetBypassed(id, true))
	require.True(t, snap.Bypassed(0), "bypass must be visible through the previously loaded snapshot")

	require.False(t, c.SetBypassed(999, true), "unknown instance id must be a discarded no-op")
}

// TestStructuralMutationCarriesBypassForward: a bypass toggled in place
// survives the next structural rebuild.
func TestStructuralMutationCarriesBypassForward(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	idA := c.Insert(0, newFake("a", 0))
	c.SetBypassed(idA, true)

	c.Insert(1, newFake("b", 0))

	snap := c.Load()
	require.True(t, snap.Bypassed(snap.FindByInstanceID(idA)))
}

// TestParameterDiscardedWhenInstanceMissing: a parameter change addressed
// to an instance id not present in the current snapshot is discarded rather
// than applied to a different plugin.
func TestParameterDiscardedWhenInstanceMissing(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	idA := c.Insert(0, newFake("a", 0))
	pb := newFake("b", 0)
	c.Insert(1, pb)
	c.Remove(idA) // idA no longer exists

	snap := c.Load()
	idx := snap.FindByInstanceID(idA)
	require.Equal(t, -1, idx)
	// Applying a change to idA must not touch pb.
	if idx >= 0 {
		t.Fatal("unreachable")
	}
	require.Equal(t, float32(1), pb.gain)
}

// TestSnapshotIsStableDuringIteration: once Load() returns a Snapshot,
// concurrent mutation of the chain does not change the slots that Snapshot
// iterates over.
func TestSnapshotIsStableDuringIteration(t *testing.T) {
	var counter uint64
	c := NewChain(&counter)
	c.Insert(0, newFake("a", 1))
	snap := c.Load()
	lenBefore := snap.Len()

	c.Insert(1, newFake("b", 2))
	c.Remove(snap.Slot(0).InstanceID)

	require.Equal(t, lenBefore, snap.Len(), "previously loaded snapshot must not mutate")
}

// TestLatencyPrefixSumHoldsForArbitraryChains is a property test: for any
// sequence of inserted latencies, the cumulative prefix sum before slot k
// always equals the sum of the preceding latencies.
func TestLatencyPrefixSumHoldsForArbitraryChains(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var counter uint64
		c := NewChain(&counter)
		latencies := rapid.SliceOfN(rapid.IntRange(0, 500), 0, 12).Draw(t, "latencies")
		for _, lat := range latencies {
			c.Insert(len(c.Load().s.slots), newFake("x", lat))
		}
		snap := c.Load()
		sum := 0
		for i, lat := range latencies {
			require.Equal(t, sum, snap.CumulativeLatencyBefore(i))
			sum += lat
		}
		require.Equal(t, sum, snap.TotalLatency())
	})
}
