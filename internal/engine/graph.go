package engine

import (
	"github.com/me/slotwise/pkg/model"
)

// DependencyGraph holds the ordering edges between tasks of one request.
type DependencyGraph struct {
	// Forward maps a task to the tasks that must follow it.
	Forward map[string][]string
	// Reverse maps a task to the tasks it must follow.
	Reverse map[string][]string

	order []string // task IDs in input order
}

// BuildDependencyGraph derives forward and reverse adjacency from task
// dependencies and rejects cycles.
//
// "after" makes the owning task follow the named task, "before" makes the
// named task follow the owner. "simultaneous" adds no edge. Dependencies on
// tasks that are not part of the request are ignored.
func BuildDependencyGraph(tasks []model.Task) (*DependencyGraph, error) {
	g := &DependencyGraph{
		Forward: make(map[string][]string, len(tasks)),
		Reverse: make(map[string][]string, len(tasks)),
		order:   make([]string, 0, len(tasks)),
	}

	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
		g.order = append(g.order, t.ID)
	}

	edgeSet := make(map[[2]string]bool)
	addEdge := func(from, to string) {
		key := [2]string{from, to}
		if edgeSet[key] {
			return
		}
		edgeSet[key] = true
		g.Forward[from] = append(g.Forward[from], to)
		g.Reverse[to] = append(g.Reverse[to], from)
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if !known[dep.TaskID] {
				continue
			}
			switch dep.Kind {
			case model.DependencyAfter:
				addEdge(dep.TaskID, t.ID)
			case model.DependencyBefore:
				addEdge(t.ID, dep.TaskID)
			}
		}
	}

	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

// detectCycle runs a depth-first search with an explicit recursion stack and
// reports the first back edge it finds as a cycle path.
func (g *DependencyGraph) detectCycle() error {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.order))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		state[id] = onStack
		path = append(path, id)
		for _, next := range g.Forward[id] {
			switch state[next] {
			case onStack:
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), path[start:]...), next)
				return cycleError(cycle)
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Predecessors returns the tasks id must follow.
func (g *DependencyGraph) Predecessors(id string) []string {
	return g.Reverse[id]
}

// Successors returns the tasks that must follow id.
func (g *DependencyGraph) Successors(id string) []string {
	return g.Forward[id]
}

// Depths returns, per task, the length of the longest chain of predecessors
// feeding into it. Results are memoized; a task met again while its own depth
// is being computed contributes zero.
func (g *DependencyGraph) Depths() map[string]int {
	depth := make(map[string]int, len(g.order))
	visiting := make(map[string]bool)

	var walk func(id string) int
	walk = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		if visiting[id] {
			return 0
		}
		visiting[id] = true
		best := 0
		for _, pred := range g.Reverse[id] {
			if d := walk(pred) + 1; d > best {
				best = d
			}
		}
		visiting[id] = false
		depth[id] = best
		return best
	}

	for _, id := range g.order {
		walk(id)
	}
	return depth
}
