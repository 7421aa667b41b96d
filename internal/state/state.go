package state

import (
	"github.com/slocombe/foreman/internal/errors"
)

// Status is a lifecycle state for a task or feature.
type Status string

// Task statuses.
const (
	TaskBlocked          Status = "blocked"
	TaskReady            Status = "ready"
	TaskDeveloping       Status = "developing"
	TaskVerifying        Status = "verifying"
	TaskDevelopingPaused Status = "developing_paused"
	TaskVerifyingPaused  Status = "verifying_paused"
	TaskDone             Status = "done"
	TaskFailed           Status = "failed"
)

// Feature statuses.
const (
	FeatureBacklog      Status = "backlog"
	FeatureCreatingSlot Status = "creating_slot"
	FeatureActive       Status = "active"
	FeatureMerging      Status = "merging"
	FeatureArchived     Status = "archived"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Event triggers a status transition.
type Event string

// Task lifecycle events.
const (
	EventDependenciesMet Event = "DEPENDENCIES_MET"
	EventStart           Event = "START"
	EventDevelopDone     Event = "DEVELOP_SUCCEEDED"
	EventDevelopFailed   Event = "DEVELOP_FAILED"
	EventVerifyDone      Event = "VERIFY_SUCCEEDED"
	EventVerifyFailed    Event = "VERIFY_FAILED"
	EventPause           Event = "PAUSE"
	EventResume          Event = "RESUME"
	EventReset           Event = "RESET"
)

// Feature lifecycle events.
const (
	EventActivate       Event = "ACTIVATE"
	EventSlotReady      Event = "SLOT_READY"
	EventBeginMerge     Event = "BEGIN_MERGE"
	EventMergeSucceeded Event = "MERGE_SUCCEEDED"
	EventMergeFailed    Event = "MERGE_FAILED"
	EventUnarchive      Event = "UNARCHIVE"
)

// Transition is one (from, event) -> to entry of a table.
type Transition struct {
	From  Status `json:"from" yaml:"from"`
	Event Event  `json:"event" yaml:"event"`
	To    Status `json:"to" yaml:"to"`
}

// Table maps (from, event) pairs to the unique destination status.
type Table map[Status]map[Event]Status

// NewTable builds a Table from a list of transitions. Later entries with the
// same (from, event) pair win.
func NewTable(transitions []Transition) Table {
	t := make(Table, len(transitions))
	for _, tr := range transitions {
		row, ok := t[tr.From]
		if !ok {
			row = make(map[Event]Status)
			t[tr.From] = row
		}
		row[tr.Event] = tr.To
	}
	return t
}

// Lookup returns the destination status for (from, event), or false if the
// transition is not defined.
func (t Table) Lookup(from Status, ev Event) (Status, bool) {
	row, ok := t[from]
	if !ok {
		return "", false
	}
	to, ok := row[ev]
	return to, ok
}

// DefaultTaskTable is the canonical task lifecycle:
// blocked -> ready -> developing -> verifying -> done, with paused variants
// of the two active stages, a verification-failure edge back to development,
// a dedicated terminal failure for exhausted retry budgets, and a manual
// RESET from the terminal states back to the initial state.
func DefaultTaskTable() Table {
	return NewTable([]Transition{
		{From: TaskBlocked, Event: EventDependenciesMet, To: TaskReady},
		{From: TaskReady, Event: EventStart, To: TaskDeveloping},
		{From: TaskDeveloping, Event: EventDevelopDone, To: TaskVerifying},
		{From: TaskDeveloping, Event: EventDevelopFailed, To: TaskFailed},
		{From: TaskDeveloping, Event: EventPause, To: TaskDevelopingPaused},
		{From: TaskDevelopingPaused, Event: EventResume, To: TaskDeveloping},
		{From: TaskVerifying, Event: EventVerifyDone, To: TaskDone},
		{From: TaskVerifying, Event: EventVerifyFailed, To: TaskDeveloping},
		{From: TaskVerifying, Event: EventPause, To: TaskVerifyingPaused},
		{From: TaskVerifyingPaused, Event: EventResume, To: TaskVerifying},
		{From: TaskDone, Event: EventReset, To: TaskBlocked},
		{From: TaskFailed, Event: EventReset, To: TaskBlocked},
	})
}

// DefaultFeatureTable is the canonical feature lifecycle:
// backlog -> creating_slot -> active -> merging -> archived. A failed merge
// returns the feature to active so it can be retried without re-running the
// whole pipeline; archived accepts only a manual un-archive.
func DefaultFeatureTable() Table {
	return NewTable([]Transition{
		{From: FeatureBacklog, Event: EventActivate, To: FeatureCreatingSlot},
		{From: FeatureCreatingSlot, Event: EventSlotReady, To: FeatureActive},
		{From: FeatureActive, Event: EventBeginMerge, To: FeatureMerging},
		{From: FeatureMerging, Event: EventMergeSucceeded, To: FeatureArchived},
		{From: FeatureMerging, Event: EventMergeFailed, To: FeatureActive},
		{From: FeatureArchived, Event: EventUnarchive, To: FeatureBacklog},
	})
}

// Next resolves the destination status for (from, event) against the
// two-tier lookup: if override is non-nil it replaces the table entirely for
// this item; otherwise table is consulted. A missing entry is reported as a
// TransitionError, never applied.
func Next(table, override Table, from Status, ev Event) (Status, error) {
	active := table
	if override != nil {
		active = override
	}
	to, ok := active.Lookup(from, ev)
	if !ok {
		return "", errors.NewTransitionError(string(from), string(ev))
	}
	return to, nil
}

// IsTaskTerminal reports whether the status is a final task state.
func IsTaskTerminal(s Status) bool {
	return s == TaskDone || s == TaskFailed
}

// IsTaskActive reports whether a task is in flight: one of the two active
// stages or their paused variants.
func IsTaskActive(s Status) bool {
	switch s {
	case TaskDeveloping, TaskVerifying, TaskDevelopingPaused, TaskVerifyingPaused:
		return true
	default:
		return false
	}
}

// IsTaskComplete reports whether the status satisfies dependents.
func IsTaskComplete(s Status) bool {
	return s == TaskDone
}

// IsFeatureTerminal reports whether the status is a final feature state.
func IsFeatureTerminal(s Status) bool {
	return s == FeatureArchived
}
