package hotmic

import (
	"math"

	"hotmic/internal/plugin"
)

// ChannelDiagnostics is the per-channel slice of the engine-wide
// Diagnostics snapshot.
type ChannelDiagnostics struct {
	ChannelID        int
	DeviceID         int
	IsActive         bool
	Muted            bool
	Solo             bool
	LastLatency      int
	HasOutputSend    bool
	SendMode         plugin.SendMode
	CallbackCount    uint64
	LastFrames       int
	Buffered         int
	Capacity         int
	NativeChannels   int
	SampleRate       int
	DroppedSamples   uint64
	UnderflowSamples uint64
}

// Diagnostics is the read-only engine-wide snapshot the UI thread polls.
// It is built fresh on every call to Engine.Diagnostics from atomic
// counters and the current routing snapshot; it never blocks the audio
// thread and never shares mutable state with it.
type Diagnostics struct {
	OutputActive               bool
	MonitorActive              bool
	IsRecovering                bool
	LastOutputCallbackMonotonic int64 // UnixNano of the last ProcessOutput call
	OutputCallbackCount        uint64
	LastOutputFrames           int
	MonitorBuffered            int
	MonitorCapacity            int
	OutputUnderflowSamples     uint64
	OutputContention           uint64
	CycleRejected              uint64
	Cyclic                     bool
	CycleMembers               []int
	Channels                   []ChannelDiagnostics
}

// DeviceDisconnectedEvent reports an invalidated device entering recovery.
type DeviceDisconnectedEvent struct {
	DeviceID int
	Message  string
}

// DeviceRecoveredEvent reports a successful device recovery and the
// resolved device ids.
type DeviceRecoveredEvent struct {
	InputDeviceIDs  []int
	OutputDeviceID  int
	MonitorDeviceID int
}

// MasterLoudness is the K-weighted program loudness of the master output.
type MasterLoudness struct {
	MomentaryLUFS float64
	ShortTermLUFS float64
}

// MasterLoudness returns the most recently published master loudness
// values. Safe to call from any goroutine; the audio thread publishes
// fresh values once per block.
func (e *Engine) MasterLoudness() MasterLoudness {
	return MasterLoudness{
		MomentaryLUFS: math.Float64frombits(e.masterMomentaryBits.Load()),
		ShortTermLUFS: math.Float64frombits(e.masterShortTermBits.Load()),
	}
}

// Diagnostics builds and returns the current diagnostics snapshot.
func (e *Engine) Diagnostics() Diagnostics {
	snap := e.current.Load()

	d := Diagnostics{
		OutputActive:                e.active.Load(),
		MonitorActive:               e.active.Load() && !e.halted.Load(),
		IsRecovering:                e.recoveryLoop.IsRecovering(),
		LastOutputCallbackMonotonic: e.lastCallbackNanos.Load(),
		OutputCallbackCount:         e.outputCallbackCount.Load(),
		LastOutputFrames:            int(e.lastOutputFrames.Load()),
		MonitorBuffered:             e.monitorRing.AvailableRead(),
		MonitorCapacity:             e.monitorRing.Cap(),
		OutputUnderflowSamples:      e.outputUnderflowSamples.Load(),
		OutputContention:            snap.routingCtx.OutputBus().Contention,
		CycleRejected:               e.cycleRejected.Load(),
		Cyclic:                      snap.Cyclic(),
		CycleMembers:                snap.CycleMembers(),
	}

	for _, id := range snap.ChannelIDs() {
		ch := snap.Channel(id)
		cd := ChannelDiagnostics{
			ChannelID:   id,
			SampleRate:  snap.sampleRate,
			Muted:       ch.Muted(),
			Solo:        ch.Solo(),
			LastLatency: ch.LastLatency(),
		}
		if _, mode, ok := findOutputSend(ch.Chain.Load()); ok {
			cd.HasOutputSend = true
			cd.SendMode = mode
		}
		if c := e.captures.Get(id); c != nil {
			cd.DeviceID = c.DeviceID
			cd.IsActive = true
			cd.CallbackCount = c.CallbackCount()
			cd.LastFrames = c.LastFrames()
			cd.Buffered = c.AvailableRead()
			cd.Capacity = c.Capacity()
			cd.NativeChannels = c.NativeChannels()
			cd.DroppedSamples = c.Dropped()
			cd.UnderflowSamples = c.Underflowed()
		}
		d.Channels = append(d.Channels, cd)
	}

	return d
}
