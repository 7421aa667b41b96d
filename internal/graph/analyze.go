package graph

import (
	"github.com/slocombe/foreman/internal/state"
)

// TopoResult is the outcome of topological analysis. Cycle presence is a
// distinct field: Layers holds a valid layering of the acyclic portion even
// when a cycle exists elsewhere in the graph.
type TopoResult struct {
	// Layers groups task IDs by longest-path layer: a task's layer is one
	// more than the maximum layer of its dependencies, with dependency-free
	// tasks at layer 0. Within a layer, IDs appear in node insertion order.
	Layers [][]string

	// Order is the flattened layer order.
	Order []string

	// HasCycle reports whether any tasks could not be layered.
	HasCycle bool

	// Unlayered lists the task IDs involved in (or downstream of) a cycle,
	// in insertion order.
	Unlayered []string
}

// TopologicalOrder computes the longest-path layering of the graph.
// Layering, rather than deletion-based ordering, is used because the layers
// are reused for visual grouping.
func (g *Graph) TopologicalOrder() *TopoResult {
	layer := make(map[string]int, len(g.tasks))
	remainingDeps := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string, len(g.tasks))

	for _, id := range g.order {
		remainingDeps[id] = 0
	}
	for _, c := range g.connections {
		remainingDeps[c.To]++
		dependents[c.From] = append(dependents[c.From], c.To)
	}

	// Process tasks whose dependencies are all layered, propagating
	// layer = 1 + max(layer of deps). Iterate in insertion order at every
	// level for deterministic output.
	var frontier []string
	for _, id := range g.order {
		if remainingDeps[id] == 0 {
			layer[id] = 0
			frontier = append(frontier, id)
		}
	}

	layered := 0
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			layered++
			for _, dep := range dependents[id] {
				if layer[id]+1 > layer[dep] {
					layer[dep] = layer[id] + 1
				}
				remainingDeps[dep]--
				if remainingDeps[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}

	result := &TopoResult{}
	if layered < len(g.tasks) {
		result.HasCycle = true
		for _, id := range g.order {
			if remainingDeps[id] > 0 {
				result.Unlayered = append(result.Unlayered, id)
			}
		}
	}

	maxLayer := -1
	for _, id := range g.order {
		if remainingDeps[id] > 0 {
			continue
		}
		if layer[id] > maxLayer {
			maxLayer = layer[id]
		}
	}
	result.Layers = make([][]string, maxLayer+1)
	for _, id := range g.order {
		if remainingDeps[id] > 0 {
			continue
		}
		l := layer[id]
		result.Layers[l] = append(result.Layers[l], id)
	}
	for _, ids := range result.Layers {
		result.Order = append(result.Order, ids...)
	}
	return result
}

// DependenciesOf returns the direct dependencies of a task, in the order
// their connections were added. Returns nil for an unknown task.
func (g *Graph) DependenciesOf(id string) []string {
	task, ok := g.tasks[id]
	if !ok {
		return nil
	}
	out := make([]string, len(task.Dependencies))
	copy(out, task.Dependencies)
	return out
}

// DependentsOf returns the tasks that directly depend on the given task, in
// connection insertion order. Returns nil for an unknown task.
func (g *Graph) DependentsOf(id string) []string {
	if _, ok := g.tasks[id]; !ok {
		return nil
	}
	var out []string
	for _, c := range g.connections {
		if c.From == id {
			out = append(out, c.To)
		}
	}
	return out
}

// IsReady reports whether a task can be dispatched: its status is neither
// active nor terminal, and every dependency is complete. Readiness is always
// recomputed from current state.
func (g *Graph) IsReady(id string) bool {
	task, ok := g.tasks[id]
	if !ok {
		return false
	}
	if state.IsTaskActive(task.Status) || state.IsTaskTerminal(task.Status) {
		return false
	}
	for _, depID := range task.Dependencies {
		dep, ok := g.tasks[depID]
		if !ok || !state.IsTaskComplete(dep.Status) {
			return false
		}
	}
	return true
}
