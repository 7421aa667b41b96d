package pipeline

import "github.com/slocombe/foreman/internal/state"

// Item is the capability contract the framework requires of a managed work
// item. Both *graph.Task and *graph.Feature satisfy it. Managers hold only
// transient queue membership, never ownership: an item lives in at most one
// stage queue at a time.
type Item interface {
	// ItemID returns the stable identifier.
	ItemID() string

	// CurrentStatus returns the lifecycle state.
	CurrentStatus() state.Status

	// SetStatus replaces the lifecycle state.
	SetStatus(state.Status)

	// IsBlocked reports whether the item has unmet dependencies.
	IsBlocked() bool

	// SetBlocked sets the blocked flag.
	SetBlocked(bool)

	// Override returns the item's transition table override, or nil to use
	// the router's default table.
	Override() state.Table

	// SetError records the most recent processing error message.
	SetError(string)

	// DependencyIDs returns the IDs the item depends on.
	DependencyIDs() []string
}
