package hotmic

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"hotmic/internal/analysis"
	"hotmic/internal/builtins"
	"hotmic/internal/capture"
	"hotmic/internal/paramqueue"
	"hotmic/internal/pipeline"
	"hotmic/internal/plugin"
	"hotmic/internal/recovery"
	"hotmic/internal/ringbuffer"
	"hotmic/internal/smoother"
)

// ErrDeviceInvalidated is the sentinel a host's stream-stopped callback
// should wrap when the stream stopped because its device disappeared
// (unplugged, disabled) rather than a normal Stop() call.
var ErrDeviceInvalidated = errors.New("hotmic: device invalidated")

// retiredPlugin is a removed/replaced plugin instance awaiting the audio
// thread to drain past the callback count at which it was retired.
// Draining only ever runs on the UI thread — see drainRetired.
type retiredPlugin struct {
	plugin         plugin.Plugin
	targetCallback uint64
}

// Engine is the engine facade: the composition root owning the channel
// registry, the lock-free routing/parameter/analysis machinery, and the
// device capture/recovery collaborators. It does not own a native audio
// stream itself — a host drives it through ProcessOutput/OnCaptureData/
// OnStopped from its own portaudio.Stream callbacks.
type Engine struct {
	cfg EngineConfig

	// graphMu serializes graph mutation methods against each other;
	// it is never touched by the audio thread.
	graphMu        sync.Mutex
	channels       map[int]*Channel
	copyTargets    map[int]int // copy-target channel id -> source channel id
	nextChannelID  int
	nextInstanceID uint64

	current atomic.Pointer[RoutingSnapshot]

	retireMu sync.Mutex
	retired  []retiredPlugin

	paramQueue *paramqueue.Queue
	bus        *analysis.Bus
	captures   *capture.Manager

	monitorRing          *ringbuffer.Ring
	monitorInterleaveBuf []float32
	monoScratch          []float32

	masterLUFSLeft  *smoother.LUFS
	masterLUFSRight *smoother.LUFS

	// Published loudness values, bit-stored so UI readers never touch the
	// LUFS meters the audio thread is mutating.
	masterMomentaryBits atomic.Uint64
	masterShortTermBits atomic.Uint64

	profile *pipeline.Profile

	recoveryLoop *recovery.Loop
	resolver     *portAudioResolver

	sampleClock atomic.Int64
	active      atomic.Bool
	halted      atomic.Bool
	masterMuted atomic.Bool

	outputCallbackCount    atomic.Uint64
	lastCallbackNanos      atomic.Int64
	lastOutputFrames       atomic.Int64
	outputUnderflowSamples atomic.Uint64
	cycleRejected          atomic.Uint64

	// AnalysisOutput, if set, is invoked once per processed block with the
	// mono post-output selection and a mask of which analysis signal kinds
	// had a live producer this block. May be nil.
	AnalysisOutput func(mono []float32, mask AnalysisSignalMask)

	// OnDeviceDisconnected and OnDeviceRecovered surface device
	// connectivity events to a host. Both may be nil.
	OnDeviceDisconnected func(DeviceDisconnectedEvent)
	OnDeviceRecovered    func(DeviceRecoveredEvent)
}

// NewEngine constructs an Engine from cfg, applying defaults for any zero
// fields (EngineConfig.withDefaults). The engine starts with no channels
// and an empty (but valid) routing snapshot.
func NewEngine(cfg EngineConfig) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:             cfg,
		channels:        make(map[int]*Channel),
		copyTargets:     make(map[int]int),
		paramQueue:      paramqueue.New(cfg.ParameterQueueSize),
		bus:             analysis.New(cfg.AnalysisLookback),
		monitorRing:     ringbuffer.New(cfg.MonitorRingSize * 2),
		masterLUFSLeft:  smoother.NewLUFS(cfg.SampleRate, cfg.BlockSize),
		masterLUFSRight: smoother.NewLUFS(cfg.SampleRate, cfg.BlockSize),
		profile:         &pipeline.Profile{},
	}
	e.resolver = &portAudioResolver{storedOutputID: -1}
	e.captures = capture.NewManager(e.resolver, cfg.InputRingSize, cfg.BlockSize)
	e.recoveryLoop = recovery.New(e.resolver, recovery.Callbacks{Restart: e.onRecoveryRestart})
	e.profile.SetBudget(uint64(time.Second) * uint64(cfg.BlockSize) / uint64(cfg.SampleRate))

	e.monitorInterleaveBuf = make([]float32, cfg.BlockSize*2)
	e.monoScratch = make([]float32, cfg.BlockSize)

	// Publish the silence floor so a reader before the first block doesn't
	// see 0.0 LUFS (which would read as full scale).
	floor := math.Float64bits(smoother.Combine(0))
	e.masterMomentaryBits.Store(floor)
	e.masterShortTermBits.Store(floor)

	snap, err := buildSnapshot(e.channels, e.captures, cfg.SampleRate, cfg.BlockSize)
	if err != nil {
		// unreachable: an empty channel registry can neither cycle nor
		// violate output-send exclusivity.
		panic(fmt.Sprintf("hotmic: empty snapshot build failed: %v", err))
	}
	e.current.Store(snap)

	return e
}

// Start marks the engine active, so ProcessOutput begins producing audio
// instead of silence, and initializes the portaudio runtime so device
// enumeration and the recovery loop's resolver can query it. Calling Start
// on an already-active engine is a no-op.
func (e *Engine) Start() error {
	if !e.active.CompareAndSwap(false, true) {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		log.Printf("[hotmic] portaudio initialize: %v", err)
	}
	log.Println("[hotmic] engine started")
	return nil
}

// Stop marks the engine inactive and tears down the recovery loop and the
// portaudio runtime. ProcessOutput continues to run (producing silence)
// after Stop, since the host may still be pumping its callback during
// shutdown.
func (e *Engine) Stop() {
	if !e.active.CompareAndSwap(true, false) {
		return
	}
	e.recoveryLoop.Stop()
	portaudio.Terminate()
	log.Println("[hotmic] engine stopped")
}

// SetMasterMute mutes/unmutes the process-wide output without touching any
// channel's own mute state; a muted master still processes every channel
// (meters keep moving) but writes silence to the host and does not count
// the silence as an underflow.
func (e *Engine) SetMasterMute(muted bool) { e.masterMuted.Store(muted) }

// ProcessOutput is the audio thread's entry point, matching a host's
// output-stream callback contract: out is an interleaved stereo
// float32 buffer of length 2*frames that the engine fills in place. frames
// may exceed the engine's configured BlockSize; the pipeline chunks its
// work into BlockSize-sized slices. Returns frames (the full
// requested frame count is always written, possibly as silence).
func (e *Engine) ProcessOutput(out []float32, frames int) int {
	e.outputCallbackCount.Add(1)
	e.lastCallbackNanos.Store(time.Now().UnixNano())
	e.lastOutputFrames.Store(int64(frames))

	if !e.active.Load() || e.halted.Load() {
		for i := range out {
			out[i] = 0
		}
		return frames
	}

	start := time.Now()

	// Load the snapshot before draining the parameter queue: channel
	// objects are reachable only through the currently published
	// RoutingSnapshot from this thread's perspective, since e.channels
	// itself is mutated without synchronization from the UI thread.
	// Either way the drained changes land before this block's processing.
	snap := e.current.Load()
	for {
		c, ok := e.paramQueue.Pop()
		if !ok {
			break
		}
		e.applyParameterChange(snap, c)
	}

	soloActive := false
	for _, id := range snap.ChannelIDs() {
		if snap.Channel(id).Solo() {
			soloActive = true
			break
		}
	}

	blockSize := e.cfg.BlockSize
	offset := 0
	for remaining := frames; remaining > 0; {
		chunk := blockSize
		if chunk > remaining {
			chunk = remaining
		}

		e.processBlock(snap, chunk, soloActive, out, offset)

		offset += chunk
		remaining -= chunk
	}

	e.profile.Record(uint64(time.Since(start).Nanoseconds()))
	return frames
}

// processBlock runs one BlockSize-or-smaller chunk: begin-block reset,
// per-channel scratch clear + capture read + Channel.Process in topological
// order, output-bus interleave into out at the given sample offset, master
// metering, the optional analysis tap, and monitor-ring mirroring.
// chunk is always <= len(snap.scratch[id]).
func (e *Engine) processBlock(snap *RoutingSnapshot, chunk int, soloActive bool, out []float32, offset int) {
	sampleClock := e.sampleClock.Load()
	snap.routingCtx.BeginBlock(sampleClock)

	var analysisMask AnalysisSignalMask

	for _, id := range snap.ChannelIDs() {
		ch := snap.Channel(id)
		buf := snap.scratch[id][:chunk]
		for i := range buf {
			buf[i] = 0
		}

		if c := snap.Capture(id); c != nil {
			c.Read(buf)
		}

		ch.Process(ChannelProcessParams{
			Buf:         buf,
			GlobalMute:  soloActive && !ch.Solo(),
			SampleClock: sampleClock,
			Routing:     snap.routingCtx,
		})

		if e.AnalysisOutput != nil {
			analysisMask |= chainSignalMask(ch.Chain.Load())
		}
	}

	bus := snap.routingCtx.OutputBus()
	muted := e.masterMuted.Load()

	if bus.HasData() && bus.Length >= chunk {
		for i := 0; i < chunk; i++ {
			l, r := bus.Left[i], bus.Right[i]
			if muted {
				l, r = 0, 0
			}
			out[(offset+i)*2+0] = l
			out[(offset+i)*2+1] = r
			e.monitorInterleaveBuf[i*2+0] = l
			e.monitorInterleaveBuf[i*2+1] = r
		}
	} else {
		for i := 0; i < chunk; i++ {
			out[(offset+i)*2+0] = 0
			out[(offset+i)*2+1] = 0
			e.monitorInterleaveBuf[i*2+0] = 0
			e.monitorInterleaveBuf[i*2+1] = 0
		}
		if !muted {
			e.outputUnderflowSamples.Add(uint64(chunk))
		}
	}

	e.masterLUFSLeft.Process(bus.Left[:chunk])
	e.masterLUFSRight.Process(bus.Right[:chunk])
	e.masterMomentaryBits.Store(math.Float64bits(
		smoother.Combine(e.masterLUFSLeft.MomentaryPower(), e.masterLUFSRight.MomentaryPower())))
	e.masterShortTermBits.Store(math.Float64bits(
		smoother.Combine(e.masterLUFSLeft.ShortTermPower(), e.masterLUFSRight.ShortTermPower())))

	if e.AnalysisOutput != nil {
		mono := e.monoScratch[:chunk]
		if bus.Mode() == plugin.SendRight {
			copy(mono, bus.Right[:chunk])
		} else {
			copy(mono, bus.Left[:chunk])
		}
		e.AnalysisOutput(mono, analysisMask)
	}

	e.monitorRing.Write(e.monitorInterleaveBuf[:chunk*2])
	e.sampleClock.Add(int64(chunk))
}

// OnCaptureData forwards one native-format interleaved frame from a capture
// (device) thread into channelID's capture ring, down-mixing as configured.
// A channelID with no bound capture is a no-op — the device thread
// may outlive an UnBind race harmlessly.
func (e *Engine) OnCaptureData(channelID int, frame []float32, nativeChannels int) {
	if c := e.captures.Get(channelID); c != nil {
		c.OnData(frame, nativeChannels)
	}
}

// OnStopped is a host's notification that its output stream stopped. A nil
// err means an ordinary Stop(); an err wrapping ErrDeviceInvalidated enters
// the device recovery loop and surfaces DeviceDisconnectedEvent.
func (e *Engine) OnStopped(err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, ErrDeviceInvalidated) {
		log.Printf("[hotmic] output stream stopped: %v", err)
		return
	}
	e.active.Store(false)
	e.recoveryLoop.Trigger()
	if e.OnDeviceDisconnected != nil {
		e.OnDeviceDisconnected(DeviceDisconnectedEvent{DeviceID: e.resolver.storedOutputID, Message: err.Error()})
	}
}

// onRecoveryRestart is recovery.Loop's Restart callback: re-resolve capture
// device bindings, republish a snapshot, and resume processing.
func (e *Engine) onRecoveryRestart(inputIDs []int, outputID int) {
	e.graphMu.Lock()
	e.captures.ReResolve()
	_ = e.rebuildAndPublishLocked()
	e.graphMu.Unlock()

	e.resolver.storedOutputID = outputID
	e.active.Store(true)
	if e.OnDeviceRecovered != nil {
		e.OnDeviceRecovered(DeviceRecoveredEvent{InputDeviceIDs: inputIDs, OutputDeviceID: outputID, MonitorDeviceID: outputID})
	}
}

// rebuildAndPublishLocked recomputes a RoutingSnapshot from the live
// channel registry and publishes it if valid. A mutation that would
// introduce a cycle, or a second active output send, leaves the
// previously published snapshot live. Callers must hold graphMu.
func (e *Engine) rebuildAndPublishLocked() error {
	snap, err := buildSnapshot(e.channels, e.captures, e.cfg.SampleRate, e.cfg.BlockSize)
	if err != nil {
		return err
	}
	if snap.Cyclic() {
		e.cycleRejected.Add(1)
		return ErrCycleDetected
	}
	e.current.Store(snap)
	return nil
}

// AddChannel creates a new, empty channel (no plugin slots) and returns its
// id. The caller is responsible for inserting an Input or BusInput plugin
// at slot 0 via InsertPlugin before the channel carries any live audio;
// adding a channel and populating its chain are separate operations.
func (e *Engine) AddChannel() int {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	id := e.nextChannelID
	e.nextChannelID++
	ch := NewChannel(id, e.cfg.SampleRate, &e.nextInstanceID, e.bus)
	e.channels[id] = ch

	if err := e.rebuildAndPublishLocked(); err != nil {
		// unreachable: an additional channel with no plugins can neither
		// cycle nor contend for the output bus.
		delete(e.channels, id)
		panic(fmt.Sprintf("hotmic: add channel rejected: %v", err))
	}
	return id
}

// AddCopyChannel creates a new channel pinned as a copy target of
// sourceChannelID: its slot 0 is always a BusInput reading
// sourceChannelID's copy bus. The caller must
// separately insert a Copy plugin into sourceChannelID's chain naming the
// returned channel id for the relationship to produce any audio. Returns
// ErrChannelNotFound if sourceChannelID does not exist.
func (e *Engine) AddCopyChannel(sourceChannelID int) (int, error) {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	if _, ok := e.channels[sourceChannelID]; !ok {
		return 0, ErrChannelNotFound
	}

	id := e.nextChannelID
	ch := NewChannel(id, e.cfg.SampleRate, &e.nextInstanceID, e.bus)
	ch.Chain.Insert(0, builtins.NewBusInput(sourceChannelID, id))
	e.channels[id] = ch

	if err := e.rebuildAndPublishLocked(); err != nil {
		delete(e.channels, id)
		return 0, err
	}
	e.nextChannelID++
	e.copyTargets[id] = sourceChannelID
	return id, nil
}

// RemoveChannel removes channelID and every channel-id edge referencing it
// (a dependent channel's RoutingDependencyProvider slot is left in place —
// it simply stops finding its dependency at schedule time, which the
// scheduler tolerates). Returns ErrChannelNotFound if channelID does not
// exist.
func (e *Engine) RemoveChannel(channelID int) error {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	ch, ok := e.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	delete(e.channels, channelID)
	delete(e.copyTargets, channelID)

	if err := e.rebuildAndPublishLocked(); err != nil {
		// unreachable: removing a channel only removes edges/constraints.
		e.channels[channelID] = ch
		return err
	}
	e.captures.Unbind(channelID)
	e.retireChainPlugins(ch)
	return nil
}

// SetInputDevice binds channelID's capture to deviceID with the given
// down-mix mode, then republishes the snapshot so the audio thread picks
// up the new capture pointer on the next block. Rejects with
// ErrDuplicateBinding if deviceID is already bound to a different channel.
func (e *Engine) SetInputDevice(channelID, deviceID int, mode plugin.ChannelMode) error {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	if _, ok := e.channels[channelID]; !ok {
		return ErrChannelNotFound
	}
	if _, err := e.captures.Bind(channelID, deviceID, mode); err != nil {
		if errors.Is(err, capture.ErrDuplicateBinding) {
			return fmt.Errorf("%w: %v", ErrDuplicateBinding, err)
		}
		return err
	}
	return e.rebuildAndPublishLocked()
}

// InsertPlugin inserts p into channelID's chain at slotIndex and returns
// its assigned instance id. If p.Initialize rejects the engine's configured
// sample rate/block size, the slot is still inserted but starts bypassed,
// and ErrConfigRejected is returned alongside the valid instance id (a
// rejected plugin is a user-visible status, not a fatal error). If the
// resulting graph would cycle or create a second active output send, the
// insertion is rolled back and the error returned with no instance id.
func (e *Engine) InsertPlugin(channelID, slotIndex int, p plugin.Plugin) (uint64, error) {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	ch, ok := e.channels[channelID]
	if !ok {
		return 0, ErrChannelNotFound
	}

	initErr := p.Initialize(e.cfg.SampleRate, e.cfg.BlockSize)
	id := ch.Chain.Insert(slotIndex, p)

	if err := e.rebuildAndPublishLocked(); err != nil {
		ch.Chain.Remove(id)
		return 0, err
	}
	if initErr != nil {
		ch.Chain.SetBypassed(id, true)
		return id, fmt.Errorf("%w: %v", ErrConfigRejected, initErr)
	}
	return id, nil
}

// RemovePlugin removes the plugin instance identified by instanceID from
// channelID's chain and retires it for deferred disposal. An unknown
// channel id returns ErrChannelNotFound; an instance id not present in the
// chain is a silent no-op, matching the parameter-queue addressing
// semantics elsewhere in the engine.
func (e *Engine) RemovePlugin(channelID int, instanceID uint64) error {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	ch, ok := e.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	removed := ch.Chain.Remove(instanceID)
	if removed == nil {
		return nil
	}
	if err := e.rebuildAndPublishLocked(); err != nil {
		// unreachable: removing a plugin only removes constraints.
		return err
	}
	e.retirePlugin(removed)
	return nil
}

// ReorderPlugin moves channelID's plugin at index from to index to.
func (e *Engine) ReorderPlugin(channelID int, from, to int) error {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	ch, ok := e.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	ch.Chain.Reorder(from, to)
	return e.rebuildAndPublishLocked()
}

// ReplacePlugin swaps the plugin instance identified by instanceID for
// newPlugin, preserving its instance id and slot position. Cycle/exclusivity
// rejection and configuration rejection behave as in InsertPlugin; on
// rejection the previous plugin is restored in place. Returns the replaced
// plugin, or nil if instanceID was not found in channelID's chain.
func (e *Engine) ReplacePlugin(channelID int, instanceID uint64, newPlugin plugin.Plugin) (plugin.Plugin, error) {
	e.graphMu.Lock()
	defer e.graphMu.Unlock()

	ch, ok := e.channels[channelID]
	if !ok {
		return nil, ErrChannelNotFound
	}

	initErr := newPlugin.Initialize(e.cfg.SampleRate, e.cfg.BlockSize)
	old := ch.Chain.Replace(instanceID, newPlugin)
	if old == nil {
		return nil, nil
	}

	if err := e.rebuildAndPublishLocked(); err != nil {
		ch.Chain.Replace(instanceID, old)
		return nil, err
	}
	if initErr != nil {
		ch.Chain.SetBypassed(instanceID, true)
	}
	e.retirePlugin(old)
	if initErr != nil {
		return old, fmt.Errorf("%w: %v", ErrConfigRejected, initErr)
	}
	return old, nil
}

// BeginPresetLoad atomically halts processing (ProcessOutput starts writing
// silence), clears buffered input/monitor audio, and resets the sample
// clock and analysis bus, in preparation for a bulk graph rewrite by the
// host's preset loader.
func (e *Engine) BeginPresetLoad() {
	e.halted.Store(true)
	e.captures.ClearAll()
	e.monitorRing.Clear()
	e.sampleClock.Store(0)
	e.bus.Reset()
	e.profile.Reset()
}

// EndPresetLoad republishes a snapshot reflecting whatever graph mutations
// the host made between BeginPresetLoad and this call, then clears the halt
// flag so ProcessOutput resumes normal processing on the next callback.
func (e *Engine) EndPresetLoad() error {
	e.graphMu.Lock()
	err := e.rebuildAndPublishLocked()
	e.graphMu.Unlock()
	e.drainRetired()
	e.halted.Store(false)
	return err
}

// retirePlugin schedules p for disposal once the audio thread's callback
// count passes the count observed at the moment of retirement — by then no
// in-flight callback can still hold a reference to the snapshot that
// contained it. Dropping the last reference lets the garbage collector
// reclaim it; no explicit Dispose hook exists on plugin.Plugin.
func (e *Engine) retirePlugin(p plugin.Plugin) {
	if p == nil {
		return
	}
	e.retireMu.Lock()
	e.retired = append(e.retired, retiredPlugin{plugin: p, targetCallback: e.outputCallbackCount.Load() + 1})
	e.retireMu.Unlock()
}

// retireChainPlugins retires every plugin currently in ch's chain, used
// when the whole channel is removed.
func (e *Engine) retireChainPlugins(ch *Channel) {
	snap := ch.Chain.Load()
	for i := 0; i < snap.Len(); i++ {
		e.retirePlugin(snap.Slot(i).Plugin)
	}
}

// drainRetired drops references to any retired plugin the audio thread has
// definitely processed past. Called only from the UI thread — from
// Enqueue's caller path and opportunistically from EndPresetLoad — never
// from ProcessOutput, which must not acquire locks.
func (e *Engine) drainRetired() {
	e.retireMu.Lock()
	defer e.retireMu.Unlock()
	if len(e.retired) == 0 {
		return
	}
	now := e.outputCallbackCount.Load()
	kept := e.retired[:0]
	for _, r := range e.retired {
		if r.targetCallback > now {
			kept = append(kept, r)
		}
	}
	e.retired = kept
}
