// Package plugin defines the plugin contract and the ordered per-channel
// chain that hosts plugin instances, publishes immutable snapshots for the
// audio thread, and tracks cumulative latency.
package plugin

import "hotmic/internal/analysis"

// Descriptor describes one parameter a plugin exposes.
type Descriptor struct {
	Index   int
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// Plugin is the required contract every plugin instance implements. A
// plugin may additionally implement any of the capability interfaces below
// (InputStage, OutputSend, AnalysisProducer, AnalysisConsumer,
// RoutingDependencyProvider, CommandHandler); the chain probes for these
// with a type assertion rather than modelling them as a class hierarchy.
type Plugin interface {
	// ID returns a stable plugin-type identifier, e.g. "builtin:input".
	ID() string
	// Name returns a display name.
	Name() string
	// Initialize is called once before the first Process call, and again
	// whenever the sample rate or block size changes. It may allocate.
	Initialize(sampleRate, blockSize int) error
	// Process runs on the audio thread and mutates buf in place. It must
	// not allocate or block.
	Process(buf []float32, ctx *ProcessContext)
	// ProcessMeters is called instead of Process when the slot is bypassed,
	// or when the owning channel is muted and its mute ramp has finished,
	// so metering continues without producing audible output.
	ProcessMeters(buf []float32)
	// Latency returns this plugin's reported latency in samples, constant
	// between Initialize calls.
	Latency() int
	// Parameters returns the plugin's fixed ordered parameter list.
	Parameters() []Descriptor
	// SetParameter applies a parameter change; invoked only from the audio
	// thread via the parameter queue.
	SetParameter(index int, value float64)
	// State returns opaque serialized state (persistence is out of scope
	// for this core; the bytes are never interpreted here).
	State() []byte
}

// InputStagePlugin is implemented by plugins that consume live capture
// (Input) or a copy-bus replay (BusInput). The chain treats the presence of
// this capability as the split point for the channel's pre-gain/meter
// stage, regardless of which concrete plugin implements it.
type InputStagePlugin interface {
	Plugin
	// ChannelMode selects how a stereo source down-mixes to mono: this is
	// informational for Input; the actual down-mix happens in the capture
	// manager.
	ChannelMode() ChannelMode
}

// ChannelMode selects a stereo-to-mono down-mix strategy.
type ChannelMode int

const (
	ModeSum ChannelMode = iota
	ModeLeft
	ModeRight
)

// SendMode selects which output channel(s) an OutputSendPlugin writes to.
type SendMode int

const (
	SendLeft SendMode = iota
	SendRight
	SendBoth
)

// OutputSendPlugin is implemented by plugins that write a channel's buffer
// to the process-wide output bus.
type OutputSendPlugin interface {
	Plugin
	Mode() SendMode
}

// AnalysisProducer is implemented by plugins that may publish analysis
// signals for the current block. After Process runs, the chain queries
// ProducedValue for each declared kind and forwards it to the analysis bus
// at this slot's sample time.
type AnalysisProducer interface {
	Plugin
	ProducedSignals() []analysis.Kind
	ProducedValue(kind analysis.Kind) float32
}

// AnalysisConsumer is implemented by plugins that declare which analysis
// signals they read, so the engine can validate wiring and diagnostics can
// report it.
type AnalysisConsumer interface {
	Plugin
	ConsumedSignals() []analysis.Kind
}

// RoutingDependencyProvider is implemented by plugins that introduce
// inter-channel dependency edges (BusInput, Merge, EchoCanceller) for the topological
// scheduler to consume.
type RoutingDependencyProvider interface {
	Plugin
	// DependsOn returns the channel ids this plugin instance requires to
	// have already been processed this block.
	DependsOn() []int
}

// CommandHandler is implemented by plugins that accept out-of-band
// commands (distinct from numeric parameters) via PluginCommand.
type CommandHandler interface {
	Plugin
	HandleCommand(command string)
}

// RoutingAccessor is the narrow view of routing state a plugin's
// ProcessContext exposes, implemented by internal/routing.Context. Defined
// here (rather than imported from internal/routing) to avoid a dependency
// cycle, since internal/routing depends on this package for Plugin.
type RoutingAccessor interface {
	// ReadCopyBus returns the captured audio and latency for the CopyBus
	// associated with targetChannelID, or (nil, 0, false) if none exists
	// for the current block.
	ReadCopyBus(targetChannelID int) (audio []float32, latencySamples int, ok bool)
	// ReadChannelOutput returns the published per-block output of
	// sourceChannelID (after its own chain + output gain/mute), or
	// (nil, false) if that channel has not yet produced output this
	// block (dependency ordering guarantees it has, for a valid graph).
	ReadChannelOutput(sourceChannelID int) (audio []float32, ok bool)
	// TryWriteOutputBus attempts to claim process-wide output-bus
	// exclusivity for this block. Returns false if another plugin already
	// wrote this block.
	TryWriteOutputBus(mode SendMode, buf []float32) bool
	// PublishCopyBus captures audio and analysis signal values for
	// targetChannelID's copy bus, to be consumed by that channel's
	// BusInput this same block.
	PublishCopyBus(targetChannelID int, audio []float32, signals map[int]float32, latencySamples int)
	// ReadCopyBusSignals returns the full set of analysis signals captured
	// on targetChannelID's copy bus this block, or nil if none.
	ReadCopyBusSignals(targetChannelID int) map[int]float32
}

// ProcessContext carries per-slot per-block state into Process. The chain
// reuses one ProcessContext value across slots and blocks (supplied by the
// caller through RunParams.Ctx) so the audio thread never allocates one.
type ProcessContext struct {
	// SampleClock is the absolute, monotonic sample count at block start.
	SampleClock int64
	// SampleTime is this slot's latency-corrected time: SampleClock plus
	// the cumulative latency of all slots before this one.
	SampleTime int64
	// CumulativeLatency is the latency (in samples) of all slots before
	// this one in the chain.
	CumulativeLatency int
	// InstanceID is this plugin instance's stable identity.
	InstanceID uint64
	// Routing exposes cross-channel state for this block.
	Routing RoutingAccessor

	resolve ResolveSignalFunc
}

// ResolveSignal resolves the nearest-upstream producer's value for kind at
// this slot's SampleTime. With no resolver wired (bare test contexts), it
// returns the signal's neutral value.
func (ctx *ProcessContext) ResolveSignal(kind analysis.Kind) float32 {
	if ctx.resolve == nil {
		return analysis.NeutralValue
	}
	return ctx.resolve(ctx.SampleTime, kind)
}
