package graph

import (
	"github.com/slocombe/foreman/internal/errors"
	"github.com/slocombe/foreman/internal/event"
)

// Graph is a set of tasks plus a set of dependency connections. It owns
// task and connection lifetime; all mutation goes through its validated
// operations. Callers serialize mutations externally.
type Graph struct {
	id          string
	tasks       map[string]*Task
	order       []string // task IDs in insertion order
	connections []Connection
	bus         *event.Bus
}

// New creates an empty graph. The bus may be nil, in which case no events
// are published.
func New(id string, bus *event.Bus) *Graph {
	return &Graph{
		id:    id,
		tasks: make(map[string]*Task),
		bus:   bus,
	}
}

// ID returns the graph identifier.
func (g *Graph) ID() string {
	return g.id
}

// publish sends an event if a bus is attached.
func (g *Graph) publish(e event.Event) {
	if g.bus != nil {
		g.bus.Publish(e)
	}
}

// Task returns the task with the given ID, or nil if absent.
func (g *Graph) Task(id string) *Task {
	return g.tasks[id]
}

// Tasks returns all tasks in insertion order.
func (g *Graph) Tasks() []*Task {
	out := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}
	return out
}

// Connections returns all connections in insertion order.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, len(g.connections))
	copy(out, g.connections)
	return out
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// AddNode adds a task to the graph. The task must have a non-empty ID not
// already present.
func (g *Graph) AddNode(task *Task) error {
	if task == nil || task.ID == "" {
		return errors.NewValidationError("task ID cannot be empty").WithField("id")
	}
	if _, exists := g.tasks[task.ID]; exists {
		return errors.NewValidationError("task already exists").
			WithField("id").WithValue(task.ID)
	}
	if task.Dependencies == nil {
		task.Dependencies = []string{}
	}

	g.tasks[task.ID] = task
	g.order = append(g.order, task.ID)
	g.publish(event.NodeAdded{GraphID: g.id, NodeID: task.ID})
	return nil
}

// RemoveNode removes a task and all of its incident connections. A missing
// node is reported as not-found, which callers treat as a no-op.
func (g *Graph) RemoveNode(id string) error {
	if _, ok := g.tasks[id]; !ok {
		return errors.NewNotFoundError("node", id).WithCause(errors.ErrNodeNotFound)
	}

	// Drop incident connections and the dependency references they back.
	kept := g.connections[:0]
	for _, c := range g.connections {
		if c.From == id || c.To == id {
			if c.From == id {
				if dependent, ok := g.tasks[c.To]; ok {
					dependent.Dependencies = removeString(dependent.Dependencies, id)
				}
			}
			g.publish(event.ConnectionRemoved{GraphID: g.id, From: c.From, To: c.To})
			continue
		}
		kept = append(kept, c)
	}
	g.connections = kept

	delete(g.tasks, id)
	g.order = removeString(g.order, id)
	g.publish(event.NodeRemoved{GraphID: g.id, NodeID: id})
	return nil
}

// AddConnection commits the edge (from, to), meaning to depends on from.
// It fails with ErrUnknownNode if either endpoint is absent,
// ErrDuplicateConnection if the ordered pair already exists, and
// ErrCycleDetected if committing the edge would create a cycle. A rejected
// edge is never committed.
func (g *Graph) AddConnection(from, to string) error {
	if _, ok := g.tasks[from]; !ok {
		return errors.NewGraphError("cannot add connection", errors.ErrUnknownNode).
			WithGraphID(g.id).WithFrom(from).WithTo(to)
	}
	if _, ok := g.tasks[to]; !ok {
		return errors.NewGraphError("cannot add connection", errors.ErrUnknownNode).
			WithGraphID(g.id).WithFrom(from).WithTo(to)
	}
	for _, c := range g.connections {
		if c.From == from && c.To == to {
			return errors.NewGraphError("cannot add connection", errors.ErrDuplicateConnection).
				WithGraphID(g.id).WithFrom(from).WithTo(to)
		}
	}

	// Provisionally add the edge to an adjacency view and check whether
	// from is reachable from to. If it is, the edge closes a cycle.
	if g.reachable(to, from) {
		return errors.NewGraphError("cannot add connection", errors.ErrCycleDetected).
			WithGraphID(g.id).WithFrom(from).WithTo(to)
	}

	g.connections = append(g.connections, Connection{From: from, To: to})
	g.tasks[to].Dependencies = append(g.tasks[to].Dependencies, from)
	g.publish(event.ConnectionAdded{GraphID: g.id, From: from, To: to})
	return nil
}

// RemoveConnection removes the edge (from, to). A missing edge is reported
// as not-found, which callers treat as a no-op.
func (g *Graph) RemoveConnection(from, to string) error {
	for i, c := range g.connections {
		if c.From == from && c.To == to {
			g.connections = append(g.connections[:i], g.connections[i+1:]...)
			if dependent, ok := g.tasks[to]; ok {
				dependent.Dependencies = removeString(dependent.Dependencies, from)
			}
			g.publish(event.ConnectionRemoved{GraphID: g.id, From: from, To: to})
			return nil
		}
	}
	return errors.NewNotFoundError("connection", from+"->"+to).
		WithCause(errors.ErrConnectionNotFound)
}

// reachable reports whether target can be reached from start by following
// committed dependency edges in the From -> To direction.
func (g *Graph) reachable(start, target string) bool {
	if start == target {
		return true
	}

	adjacency := make(map[string][]string, len(g.tasks))
	for _, c := range g.connections {
		adjacency[c.From] = append(adjacency[c.From], c.To)
	}

	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[node] {
			if next == target {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// SetPosition updates a task's presentation position and publishes
// node-moved. A missing node is reported as not-found.
func (g *Graph) SetPosition(id string, pos Position) error {
	task, ok := g.tasks[id]
	if !ok {
		return errors.NewNotFoundError("node", id).WithCause(errors.ErrNodeNotFound)
	}
	task.Position = pos
	g.publish(event.NodeMoved{GraphID: g.id, NodeID: id, X: pos.X, Y: pos.Y})
	return nil
}

// Touch publishes node-updated for a task whose fields were mutated by a
// caller holding the task pointer (status, blocked flag, feedback).
func (g *Graph) Touch(id string) error {
	if _, ok := g.tasks[id]; !ok {
		return errors.NewNotFoundError("node", id).WithCause(errors.ErrNodeNotFound)
	}
	g.publish(event.NodeUpdated{GraphID: g.id, NodeID: id})
	return nil
}

// Snapshot returns the serializable representation of the graph. Tasks are
// copied under their locks, so marshaling the snapshot is safe while stage
// goroutines keep mutating the originals.
func (g *Graph) Snapshot() *Snapshot {
	tasks := make([]*Task, 0, len(g.order))
	for _, task := range g.Tasks() {
		tasks = append(tasks, task.Clone())
	}
	return &Snapshot{
		ID:          g.id,
		Tasks:       tasks,
		Connections: g.Connections(),
	}
}

// FromSnapshot rebuilds a graph from a persisted snapshot, replaying nodes
// and connections through the validated operations so invariants hold, then
// publishes graph-reset. Statuses and blocked flags are restored as saved;
// run cascade.RecalculateAll afterwards to re-derive blocked flags.
func FromSnapshot(snap *Snapshot, bus *event.Bus) (*Graph, error) {
	g := New(snap.ID, nil) // suppress per-element events during load
	for _, task := range snap.Tasks {
		restored := task.Clone()
		restored.Dependencies = []string{} // rebuilt from connections below
		if err := g.AddNode(restored); err != nil {
			return nil, errors.Wrapf(err, "restoring node %s", task.ID)
		}
	}
	for _, c := range snap.Connections {
		if err := g.AddConnection(c.From, c.To); err != nil {
			return nil, errors.Wrapf(err, "restoring connection %s -> %s", c.From, c.To)
		}
	}
	g.bus = bus
	g.publish(event.GraphReset{GraphID: snap.ID})
	return g, nil
}

// removeString returns s with the first occurrence of v removed, preserving
// order.
func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
