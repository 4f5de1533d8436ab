package hotmic

import (
	"sort"

	"hotmic/internal/capture"
	"hotmic/internal/plugin"
	"hotmic/internal/routing"
)

// RoutingSnapshot is the immutable record the audio thread loads once at
// the start of a block and uses for that block's entire processing pass.
// It fixes the set of channels, their topological processing order,
// sizing, and the preallocated per-channel scratch buffers and routing
// context a block needs — nothing inside it is resized after
// construction, so the audio thread never allocates while using one.
type RoutingSnapshot struct {
	channels map[int]*Channel
	order    []int

	cyclic       bool
	cycleMembers []int

	sampleRate int
	blockSize  int

	scratch    map[int][]float32
	captures   map[int]*capture.Capture
	routingCtx *routing.Context
}

// channelDeps adapts a Channel's declared inter-channel edges to
// routing.DependencyProvider for the scheduler.
type channelDeps struct {
	id   int
	deps []int
}

func (c channelDeps) ChannelID() int  { return c.id }
func (c channelDeps) DependsOn() []int { return c.deps }

// dependenciesOf collects every inter-channel edge a channel's chain
// declares via the RoutingDependencyProvider capability (Copy's implicit
// target edge arrives through BusInput; Merge and EchoCanceller declare
// their own).
func dependenciesOf(ch *Channel) []int {
	var deps []int
	snap := ch.Chain.Load()
	for i := 0; i < snap.Len(); i++ {
		if provider, ok := snap.Slot(i).Plugin.(plugin.RoutingDependencyProvider); ok {
			deps = append(deps, provider.DependsOn()...)
		}
	}
	return deps
}

// activeOutputSendCount counts non-bypassed OutputSendPlugin slots across
// every channel, used to enforce the invariant that at most one is
// active globally.
func activeOutputSendCount(channels map[int]*Channel) int {
	count := 0
	for _, ch := range channels {
		snap := ch.Chain.Load()
		for i := 0; i < snap.Len(); i++ {
			if _, ok := snap.Slot(i).Plugin.(plugin.OutputSendPlugin); ok && !snap.Bypassed(i) {
				count++
			}
		}
	}
	return count
}

// buildSnapshot constructs a new RoutingSnapshot from the live channel
// registry. It recomputes the topological processing order, enforces
// output-send exclusivity at construction time, and resolves each
// channel's bound capture pointer so the audio thread reads captures off
// the snapshot instead of taking the capture manager's lock; the caller
// (Engine, holding graphMu) is responsible for rejecting the mutation and
// keeping the previous snapshot live when an error is returned.
func buildSnapshot(channels map[int]*Channel, captures *capture.Manager, sampleRate, blockSize int) (*RoutingSnapshot, error) {
	if activeOutputSendCount(channels) > 1 {
		return nil, ErrDuplicateBinding
	}

	ids := make([]int, 0, len(channels))
	for id := range channels {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	providers := make([]routing.DependencyProvider, 0, len(ids))
	snapshotChannels := make(map[int]*Channel, len(ids))
	scratch := make(map[int][]float32, len(ids))
	caps := make(map[int]*capture.Capture, len(ids))
	for _, id := range ids {
		ch := channels[id]
		snapshotChannels[id] = ch
		scratch[id] = make([]float32, blockSize)
		if c := captures.Get(id); c != nil {
			caps[id] = c
		}
		providers = append(providers, channelDeps{id: id, deps: dependenciesOf(ch)})
	}

	order := routing.Schedule(providers)

	return &RoutingSnapshot{
		channels:     snapshotChannels,
		order:        order.IDs,
		cyclic:       order.Cyclic,
		cycleMembers: order.CycleMembers,
		sampleRate:   sampleRate,
		blockSize:    blockSize,
		scratch:      scratch,
		captures:     caps,
		routingCtx:   routing.NewContext(blockSize, len(ids)),
	}, nil
}

// ChannelIDs returns the channel ids in this snapshot's topological
// processing order.
func (s *RoutingSnapshot) ChannelIDs() []int { return s.order }

// Channel returns the channel with the given id, or nil if it is not part
// of this snapshot.
func (s *RoutingSnapshot) Channel(id int) *Channel { return s.channels[id] }

// Capture returns the channel's bound capture as resolved at snapshot
// construction, or nil if none was bound. A device binding republishes the
// snapshot, so the audio thread always sees the current binding without
// touching the capture manager's lock.
func (s *RoutingSnapshot) Capture(id int) *capture.Capture { return s.captures[id] }

// Cyclic reports whether the dependency graph that produced this snapshot
// contained a cycle; ChannelIDs then falls back to natural (id-ascending)
// order and CycleMembers names the offending channels.
func (s *RoutingSnapshot) Cyclic() bool { return s.cyclic }

// CycleMembers lists the channel ids that participated in a detected
// dependency cycle, or nil if none.
func (s *RoutingSnapshot) CycleMembers() []int { return s.cycleMembers }
