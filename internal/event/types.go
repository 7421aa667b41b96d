package event

// Event type names published by the engine.
const (
	TypeNodeAdded         = "node-added"
	TypeNodeRemoved       = "node-removed"
	TypeNodeUpdated       = "node-updated"
	TypeNodeMoved         = "node-moved"
	TypeConnectionAdded   = "connection-added"
	TypeConnectionRemoved = "connection-removed"
	TypeGraphReset        = "graph-reset"

	TypeTaskTransition      = "taskTransition"
	TypeFeatureTransition   = "featureTransition"
	TypeTaskCompleted       = "taskCompleted"
	TypeFeatureCompleted    = "featureCompleted"
	TypeDependencyCompleted = "dependencyCompleted"

	TypeLoopStart         = "loop:start"
	TypeIterationStart    = "iteration:start"
	TypeIterationComplete = "iteration:complete"
	TypeLoopPaused        = "loop:paused"
	TypeLoopResumed       = "loop:resumed"
	TypeLoopComplete      = "loop:complete"
)

// Event is implemented by every payload published on the bus.
type Event interface {
	EventType() string
}

// NodeAdded is published when a task node is added to a graph.
type NodeAdded struct {
	GraphID string
	NodeID  string
}

func (NodeAdded) EventType() string { return TypeNodeAdded }

// NodeRemoved is published when a task node is removed from a graph,
// after its incident connections have been removed.
type NodeRemoved struct {
	GraphID string
	NodeID  string
}

func (NodeRemoved) EventType() string { return TypeNodeRemoved }

// NodeUpdated is published when a task's fields change (title, spec,
// status, blocked flag, feedback).
type NodeUpdated struct {
	GraphID string
	NodeID  string
}

func (NodeUpdated) EventType() string { return TypeNodeUpdated }

// NodeMoved is published when a task's presentation position changes.
// The core carries positions but does not interpret them.
type NodeMoved struct {
	GraphID string
	NodeID  string
	X, Y    float64
}

func (NodeMoved) EventType() string { return TypeNodeMoved }

// ConnectionAdded is published when a dependency edge is committed.
type ConnectionAdded struct {
	GraphID string
	From    string
	To      string
}

func (ConnectionAdded) EventType() string { return TypeConnectionAdded }

// ConnectionRemoved is published when a dependency edge is removed.
type ConnectionRemoved struct {
	GraphID string
	From    string
	To      string
}

func (ConnectionRemoved) EventType() string { return TypeConnectionRemoved }

// GraphReset is published on full graph replacement, e.g. after a reload
// or a bulk layout.
type GraphReset struct {
	GraphID string
}

func (GraphReset) EventType() string { return TypeGraphReset }

// TaskTransition is published whenever a task's status changes, whether
// routed automatically or moved manually. Observers cannot distinguish
// manual from automatic routing.
type TaskTransition struct {
	TaskID string
	From   string
	To     string
}

func (TaskTransition) EventType() string { return TypeTaskTransition }

// FeatureTransition is published whenever a feature's status changes.
type FeatureTransition struct {
	FeatureID string
	From      string
	To        string
}

func (FeatureTransition) EventType() string { return TypeFeatureTransition }

// TaskCompleted is published when a task reaches its terminal success state.
type TaskCompleted struct {
	TaskID string
}

func (TaskCompleted) EventType() string { return TypeTaskCompleted }

// FeatureCompleted is published when a feature reaches its terminal state.
type FeatureCompleted struct {
	FeatureID string
}

func (FeatureCompleted) EventType() string { return TypeFeatureCompleted }

// DependencyCompleted is published when a completed item has been considered
// for unblocking its dependents.
type DependencyCompleted struct {
	ItemID string
}

func (DependencyCompleted) EventType() string { return TypeDependencyCompleted }

// LoopStart is published when an iteration loop begins running a task.
type LoopStart struct {
	TaskID string
}

func (LoopStart) EventType() string { return TypeLoopStart }

// IterationStart is published at the top of each loop iteration.
type IterationStart struct {
	TaskID    string
	Iteration int
}

func (IterationStart) EventType() string { return TypeIterationStart }

// IterationComplete is published after verification results have been
// written back to the checklist.
type IterationComplete struct {
	TaskID    string
	Iteration int
	Success   bool
}

func (IterationComplete) EventType() string { return TypeIterationComplete }

// LoopPaused is published when a loop is frozen between iterations.
type LoopPaused struct {
	TaskID string
}

func (LoopPaused) EventType() string { return TypeLoopPaused }

// LoopResumed is published when a paused loop resumes.
type LoopResumed struct {
	TaskID string
}

func (LoopResumed) EventType() string { return TypeLoopResumed }

// LoopComplete is published when a loop reaches a terminal state.
type LoopComplete struct {
	TaskID     string
	Outcome    string // "completed", "failed", or "aborted"
	Iterations int
}

func (LoopComplete) EventType() string { return TypeLoopComplete }
