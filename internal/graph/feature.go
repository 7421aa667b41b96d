package graph

import (
	"sync"

	"github.com/google/uuid"

	"github.com/slocombe/foreman/internal/state"
)

// Feature is a coarser unit of work than a Task, bound to an execution slot
// while active. SlotID is empty until a slot is assigned.
type Feature struct {
	// mu guards Status, Blocked and ErrorMessage once the feature is
	// shared across stage goroutines, as on Task.
	mu sync.RWMutex

	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Status        state.Status `json:"status"`
	Blocked       bool         `json:"blocked"`
	SlotID        string       `json:"slot_id,omitempty"`
	QueuePosition int          `json:"queue_position"`

	// Dependencies lists the IDs of features this feature depends on.
	Dependencies []string `json:"dependencies"`

	// Transitions, when non-nil, replaces the default feature transition
	// table for this feature.
	Transitions state.Table `json:"transitions,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewFeature creates a feature with a fresh UUID in the backlog state.
func NewFeature(title string) *Feature {
	return &Feature{
		ID:           uuid.NewString(),
		Title:        title,
		Status:       state.FeatureBacklog,
		Dependencies: []string{},
	}
}

// ItemID implements the pipeline item contract.
func (f *Feature) ItemID() string { return f.ID }

// CurrentStatus implements the pipeline item contract.
func (f *Feature) CurrentStatus() state.Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Status
}

// SetStatus implements the pipeline item contract.
func (f *Feature) SetStatus(s state.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Status = s
}

// IsBlocked implements the pipeline item contract.
func (f *Feature) IsBlocked() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Blocked
}

// SetBlocked implements the pipeline item contract.
func (f *Feature) SetBlocked(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Blocked = b
}

// Override implements the pipeline item contract.
func (f *Feature) Override() state.Table {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Transitions
}

// SetError implements the pipeline item contract.
func (f *Feature) SetError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ErrorMessage = msg
}

// LastError returns the most recent processing error message.
func (f *Feature) LastError() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ErrorMessage
}

// DependencyIDs implements the pipeline item contract.
func (f *Feature) DependencyIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Dependencies
}
