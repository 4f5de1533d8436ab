package routing

// DependencyProvider is the minimal view the scheduler needs of a channel:
// its id and the channel ids it depends on (from any RoutingDependencyProvider
// plugin in its chain, e.g. BusInput/Merge).
type DependencyProvider interface {
	ChannelID() int
	DependsOn() []int
}

// Order is a computed processing order: channel ids in an order that
// respects every declared dependency edge, or the natural (index) order if
// the graph contains a cycle.
type Order struct {
	IDs     []int
	Cyclic  bool
	// CycleMembers lists channel ids participating in a detected cycle, for
	// diagnostics, when Cyclic is true.
	CycleMembers []int
}

// Schedule computes a topological processing order over channels using
// Kahn's algorithm. If the dependency graph contains a cycle, it
// returns the natural order (the order channels were given in) with Cyclic
// set true and the offending channel ids listed, rather than failing: a
// cyclic graph still processes every block, just without the requested
// dependency guarantee for the cycle's members.
func Schedule(channels []DependencyProvider) Order {
	n := len(channels)
	natural := make([]int, n)
	indexOf := make(map[int]int, n)
	for i, ch := range channels {
		natural[i] = ch.ChannelID()
		indexOf[ch.ChannelID()] = i
	}

	indegree := make([]int, n)
	// adjacency[i] lists indices that depend on i (edges i -> j meaning j
	// must run after i).
	adjacency := make([][]int, n)
	for i, ch := range channels {
		for _, dep := range ch.DependsOn() {
			j, ok := indexOf[dep]
			if !ok || j == i {
				continue
			}
			adjacency[j] = append(adjacency[j], i)
			indegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	visited := make([]bool, n)
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		visited[idx] = true
		order = append(order, natural[idx])
		for _, next := range adjacency[idx] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) == n {
		return Order{IDs: order}
	}

	// Cycle: some nodes never reached indegree 0. Fall back to natural order
	// and report the unresolved members.
	var members []int
	for i := 0; i < n; i++ {
		if !visited[i] {
			members = append(members, natural[i])
		}
	}
	return Order{IDs: natural, Cyclic: true, CycleMembers: members}
}
