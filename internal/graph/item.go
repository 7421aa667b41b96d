package graph

import "github.com/slocombe/foreman/internal/state"

// Accessor methods letting *Task satisfy the pipeline item contract
// alongside *Feature. They take the task's lock: once a task is shared
// across stage goroutines, all access to its mutable fields goes through
// these rather than the fields themselves.

// ItemID returns the task's identifier.
func (t *Task) ItemID() string { return t.ID }

// CurrentStatus returns the task's lifecycle state.
func (t *Task) CurrentStatus() state.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// SetStatus replaces the task's lifecycle state.
func (t *Task) SetStatus(s state.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = s
}

// IsBlocked reports whether the task has unmet dependencies.
func (t *Task) IsBlocked() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Blocked
}

// SetBlocked sets the blocked flag.
func (t *Task) SetBlocked(b bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Blocked = b
}

// Override returns the task's per-item transition table, or nil.
func (t *Task) Override() state.Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Transitions
}

// SetError records the most recent processing error.
func (t *Task) SetError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ErrorMessage = msg
}

// LastError returns the most recent processing error message.
func (t *Task) LastError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ErrorMessage
}

// SetFeedback records verification output for the next development pass;
// an empty string clears it.
func (t *Task) SetFeedback(fb string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Feedback = fb
}

// SetWorkerID records the worker or slot currently assigned; an empty
// string clears the assignment.
func (t *Task) SetWorkerID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WorkerID = id
}

// DependencyIDs returns the task's dependency list.
func (t *Task) DependencyIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Dependencies
}
