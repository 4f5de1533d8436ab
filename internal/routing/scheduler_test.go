package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeChannel struct {
	id   int
	deps []int
}

func (f fakeChannel) ChannelID() int  { return f.id }
func (f fakeChannel) DependsOn() []int { return f.deps }

func providers(chs ...fakeChannel) []DependencyProvider {
	out := make([]DependencyProvider, len(chs))
	for i, c := range chs {
		out[i] = c
	}
	return out
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func TestScheduleNoDependenciesIsNaturalOrder(t *testing.T) {
	order := Schedule(providers(
		fakeChannel{id: 0},
		fakeChannel{id: 1},
		fakeChannel{id: 2},
	))
	require.False(t, order.Cyclic)
	require.Equal(t, []int{0, 1, 2}, order.IDs)
}

// TestScheduleRespectsCopyDependency: a channel that depends on another
// (via Copy/Merge) is always scheduled after it.
func TestScheduleRespectsCopyDependency(t *testing.T) {
	order := Schedule(providers(
		fakeChannel{id: 0, deps: []int{2}}, // channel 0 (e.g. Merge) depends on 2
		fakeChannel{id: 1},
		fakeChannel{id: 2},
	))
	require.False(t, order.Cyclic)
	require.Less(t, indexOf(order.IDs, 2), indexOf(order.IDs, 0))
}

func TestScheduleDetectsDirectCycle(t *testing.T) {
	order := Schedule(providers(
		fakeChannel{id: 0, deps: []int{1}},
		fakeChannel{id: 1, deps: []int{0}},
	))
	require.True(t, order.Cyclic)
	require.ElementsMatch(t, []int{0, 1}, order.CycleMembers)
	// Falls back to natural order rather than omitting channels.
	require.Equal(t, []int{0, 1}, order.IDs)
}

func TestScheduleIgnoresSelfDependency(t *testing.T) {
	order := Schedule(providers(
		fakeChannel{id: 0, deps: []int{0}},
		fakeChannel{id: 1},
	))
	require.False(t, order.Cyclic, "a self-edge must not be treated as a cycle")
}

func TestScheduleDiamondDependency(t *testing.T) {
	// 0 depends on 1 and 2; 1 and 2 depend on 3.
	order := Schedule(providers(
		fakeChannel{id: 0, deps: []int{1, 2}},
		fakeChannel{id: 1, deps: []int{3}},
		fakeChannel{id: 2, deps: []int{3}},
		fakeChannel{id: 3},
	))
	require.False(t, order.Cyclic)
	require.Less(t, indexOf(order.IDs, 3), indexOf(order.IDs, 1))
	require.Less(t, indexOf(order.IDs, 3), indexOf(order.IDs, 2))
	require.Less(t, indexOf(order.IDs, 1), indexOf(order.IDs, 0))
	require.Less(t, indexOf(order.IDs, 2), indexOf(order.IDs, 0))
}

// TestScheduleAcyclicGraphsAlwaysProduceValidOrder is a property test:
// for any randomly generated acyclic dependency graph, Schedule returns a
// non-cyclic order containing every channel exactly once, respecting every
// edge.
func TestScheduleAcyclicGraphsAlwaysProduceValidOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		// Build a DAG by only allowing edges from higher index to lower
		// index (guarantees acyclicity), then shuffle the channel list so
		// the scheduler can't just rely on input order.
		deps := make([][]int, n)
		for i := 1; i < n; i++ {
			var edges []int
			for j := 0; j < i; j++ {
				if rapid.Bool().Draw(t, "edge") {
					edges = append(edges, j)
				}
			}
			deps[i] = edges
		}

		chans := make([]fakeChannel, n)
		for i := 0; i < n; i++ {
			chans[i] = fakeChannel{id: i, deps: deps[i]}
		}

		order := Schedule(providers(chans...))
		require.False(t, order.Cyclic)
		require.Len(t, order.IDs, n)

		seen := make(map[int]bool, n)
		for _, id := range order.IDs {
			seen[id] = true
		}
		require.Len(t, seen, n)

		for i := 0; i < n; i++ {
			for _, dep := range deps[i] {
				require.Less(t, indexOf(order.IDs, dep), indexOf(order.IDs, i))
			}
		}
	})
}
