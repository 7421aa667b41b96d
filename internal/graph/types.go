package graph

import (
	"sync"

	"github.com/google/uuid"

	"github.com/slocombe/foreman/internal/state"
)

// Position is a 2-D presentation position. The core carries it but does not
// interpret it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Task is a single unit of work with dependencies, moving through a status
// lifecycle.
type Task struct {
	// mu guards the fields stage goroutines mutate once the task is shared
	// across the pipeline: Status, Blocked, Feedback, WorkerID and
	// ErrorMessage. Load-time construction happens before any sharing and
	// writes fields directly.
	mu sync.RWMutex

	// ID uniquely identifies the task within its graph.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Spec is the free-text specification of the work.
	Spec string `json:"spec,omitempty"`

	// Status is the current lifecycle state.
	Status state.Status `json:"status"`

	// Blocked is true while any dependency is unmet. It is tracked
	// independently of Status.
	Blocked bool `json:"blocked"`

	// Position is presentation-only.
	Position Position `json:"position"`

	// Dependencies lists the IDs of tasks this task depends on, in the
	// order the connections were added.
	Dependencies []string `json:"dependencies"`

	// Feedback is the text from the most recent failed verification, if any.
	Feedback string `json:"feedback,omitempty"`

	// WorkerID identifies the worker currently assigned, if any.
	WorkerID string `json:"worker_id,omitempty"`

	// Transitions, when non-nil, replaces the default transition table for
	// this task.
	Transitions state.Table `json:"transitions,omitempty"`

	// ErrorMessage holds the most recent processing error, if any.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewTask creates a task with a fresh UUID, in the blocked initial state.
func NewTask(title, spec string) *Task {
	return &Task{
		ID:           uuid.NewString(),
		Title:        title,
		Spec:         spec,
		Status:       state.TaskBlocked,
		Blocked:      true,
		Dependencies: []string{},
	}
}

// Clone returns a field copy made under the task's lock, safe to hand to a
// serializer while stage goroutines keep mutating the original.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:           t.ID,
		Title:        t.Title,
		Spec:         t.Spec,
		Status:       t.Status,
		Blocked:      t.Blocked,
		Position:     t.Position,
		Dependencies: append([]string(nil), t.Dependencies...),
		Feedback:     t.Feedback,
		WorkerID:     t.WorkerID,
		Transitions:  t.Transitions,
		ErrorMessage: t.ErrorMessage,
	}
}

// Connection is a directed dependency edge: To depends on From.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Snapshot is the serializable representation of a graph, used for
// persistence round-trips.
type Snapshot struct {
	ID          string       `json:"id"`
	Tasks       []*Task      `json:"tasks"`
	Connections []Connection `json:"connections"`
}
