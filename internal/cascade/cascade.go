package cascade

import (
	"github.com/slocombe/foreman/internal/event"
	"github.com/slocombe/foreman/internal/graph"
	"github.com/slocombe/foreman/internal/logging"
	"github.com/slocombe/foreman/internal/state"
)

// Engine walks the dependency graph to propagate completion and failure and
// to reset subtrees. It is constructed explicitly and passed where needed;
// it holds no graph of its own.
type Engine struct {
	table  state.Table
	logger *logging.Logger
	bus    *event.Bus
}

// New creates a cascade engine using the default task transition table.
// logger and bus may be nil.
func New(logger *logging.Logger, bus *event.Bus) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		table:  state.DefaultTaskTable(),
		logger: logger,
		bus:    bus,
	}
}

func (e *Engine) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// OnCompletion propagates a task's completion to its direct dependents.
// A dependent is unblocked only when all of its dependencies are complete,
// not just this one; only then is its blocked flag cleared and the
// DEPENDENCIES_MET transition applied. Returns the IDs of tasks unblocked.
func (e *Engine) OnCompletion(taskID string, g *graph.Graph) []string {
	var unblocked []string

	for _, depID := range g.DependentsOf(taskID) {
		dependent := g.Task(depID)
		if dependent == nil || !dependent.Blocked {
			continue
		}
		if !e.allDependenciesComplete(dependent, g) {
			continue
		}

		dependent.Blocked = false
		next, err := state.Next(e.table, dependent.Transitions, dependent.Status, state.EventDependenciesMet)
		if err != nil {
			e.logger.WithTask(depID).Warn("dependencies met but transition not defined",
				"status", dependent.Status.String(), "error", err.Error())
		} else {
			dependent.Status = next
		}
		_ = g.Touch(depID)
		unblocked = append(unblocked, depID)
	}

	e.publish(event.DependencyCompleted{ItemID: taskID})
	return unblocked
}

// OnFailure walks the dependents graph breadth-first and returns the full
// transitive set of task IDs affected by the failure, in traversal order.
// It does not mutate those tasks: failure must not forcibly re-block work
// already in flight.
func (e *Engine) OnFailure(taskID string, g *graph.Graph) []string {
	if g.Task(taskID) == nil {
		return nil
	}

	var affected []string
	visited := map[string]bool{taskID: true}
	queue := []string{taskID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, depID := range g.DependentsOf(id) {
			if visited[depID] {
				continue
			}
			visited[depID] = true
			affected = append(affected, depID)
			queue = append(queue, depID)
		}
	}

	e.logger.WithTask(taskID).Info("failure cascade computed",
		"affected_count", len(affected))
	return affected
}

// ResetSubtree resets the task and all of its transitive dependents to the
// blocked or ready state, skipping items that are already blocked. It is the
// engine's sole bulk mutation. Returns the IDs of tasks that were reset.
func (e *Engine) ResetSubtree(taskID string, g *graph.Graph) []string {
	if g.Task(taskID) == nil {
		e.logger.Warn("reset subtree: task not found", "task_id", taskID)
		return nil
	}

	// Collect the subtree first so resets do not depend on walk order.
	subtree := []string{taskID}
	visited := map[string]bool{taskID: true}
	queue := []string{taskID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, depID := range g.DependentsOf(id) {
			if visited[depID] {
				continue
			}
			visited[depID] = true
			subtree = append(subtree, depID)
			queue = append(queue, depID)
		}
	}

	// First pass: everything in the subtree goes back to blocked, so the
	// second pass sees a consistent view regardless of walk order. Items
	// already blocked are skipped entirely.
	var reset []string
	for _, id := range subtree {
		task := g.Task(id)
		if task.Status == state.TaskBlocked {
			continue
		}
		task.Feedback = ""
		task.ErrorMessage = ""
		task.WorkerID = ""
		task.Status = state.TaskBlocked
		task.Blocked = true
		reset = append(reset, id)
	}

	// Second pass: a task whose dependencies are all complete (they must
	// lie outside the subtree) comes back as ready rather than blocked.
	for _, id := range reset {
		task := g.Task(id)
		if e.allDependenciesComplete(task, g) {
			task.Status = state.TaskReady
			task.Blocked = false
		}
		_ = g.Touch(id)
	}

	e.logger.WithTask(taskID).Info("subtree reset", "reset_count", len(reset))
	return reset
}

// RecalculateAll re-derives the blocked flag of every non-terminal,
// non-active task from current dependency completion. Used after bulk
// loads. It is idempotent: a second run with no intervening graph change
// performs zero transitions. Returns the IDs of tasks whose state changed.
func (e *Engine) RecalculateAll(g *graph.Graph) []string {
	var changed []string

	for _, task := range g.Tasks() {
		if state.IsTaskTerminal(task.Status) || state.IsTaskActive(task.Status) {
			continue
		}

		blocked := !e.allDependenciesComplete(task, g)
		touched := false

		if task.Blocked != blocked {
			task.Blocked = blocked
			touched = true
		}
		if !blocked && task.Status == state.TaskBlocked {
			next, err := state.Next(e.table, task.Transitions, task.Status, state.EventDependenciesMet)
			if err == nil {
				task.Status = next
				touched = true
			}
		} else if blocked && task.Status == state.TaskReady {
			task.Status = state.TaskBlocked
			touched = true
		}

		if touched {
			_ = g.Touch(task.ID)
			changed = append(changed, task.ID)
		}
	}

	return changed
}

// allDependenciesComplete reports whether every dependency of the task is
// in the completed state.
func (e *Engine) allDependenciesComplete(task *graph.Task, g *graph.Graph) bool {
	for _, depID := range task.Dependencies {
		dep := g.Task(depID)
		if dep == nil || !state.IsTaskComplete(dep.Status) {
			return false
		}
	}
	return true
}
