package pipeline

import (
	"context"
	"sync"

	"github.com/slocombe/foreman/internal/errors"
	"github.com/slocombe/foreman/internal/event"
	"github.com/slocombe/foreman/internal/logging"
	"github.com/slocombe/foreman/internal/state"
)

// RouterConfig binds a Router to one item kind's transition table and event
// vocabulary. TaskRouterConfig and FeatureRouterConfig build the two
// canonical configurations.
type RouterConfig struct {
	// Table is the default transition table; per-item overrides shadow it.
	Table state.Table

	// IsComplete reports whether a status is the terminal success state.
	IsComplete func(state.Status) bool

	// TransitionEvent builds the event published on every status change,
	// automatic or manual.
	TransitionEvent func(id string, from, to state.Status) event.Event

	// CompletedEvent builds the event published when an item reaches its
	// terminal success state.
	CompletedEvent func(id string) event.Event

	Bus    *event.Bus
	Logger *logging.Logger
}

// TaskRouterConfig returns the router configuration for task items.
func TaskRouterConfig(bus *event.Bus, logger *logging.Logger) RouterConfig {
	return RouterConfig{
		Table:      state.DefaultTaskTable(),
		IsComplete: state.IsTaskComplete,
		TransitionEvent: func(id string, from, to state.Status) event.Event {
			return event.TaskTransition{TaskID: id, From: from.String(), To: to.String()}
		},
		CompletedEvent: func(id string) event.Event {
			return event.TaskCompleted{TaskID: id}
		},
		Bus:    bus,
		Logger: logger,
	}
}

// FeatureRouterConfig returns the router configuration for feature items.
func FeatureRouterConfig(bus *event.Bus, logger *logging.Logger) RouterConfig {
	return RouterConfig{
		Table: state.DefaultFeatureTable(),
		IsComplete: func(s state.Status) bool {
			return s == state.FeatureArchived
		},
		TransitionEvent: func(id string, from, to state.Status) event.Event {
			return event.FeatureTransition{FeatureID: id, From: from.String(), To: to.String()}
		},
		CompletedEvent: func(id string) event.Event {
			return event.FeatureCompleted{FeatureID: id}
		},
		Bus:    bus,
		Logger: logger,
	}
}

// stageOutcome maps a stage's settlement to state-machine events.
type stageOutcome struct {
	success state.Event
	failure state.Event
}

// Router owns one Manager per processing status and moves items between
// them as they settle. It is the only component that touches more than one
// Manager's queues.
type Router[T Item] struct {
	cfg RouterConfig

	mu       sync.Mutex
	managers map[state.Status]*Manager[T]
	outcomes map[state.Status]stageOutcome
	items    map[string]T
}

// NewRouter creates an empty router; stages are attached with Register.
func NewRouter[T Item](cfg RouterConfig) *Router[T] {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Router[T]{
		cfg:      cfg,
		managers: make(map[state.Status]*Manager[T]),
		outcomes: make(map[state.Status]stageOutcome),
		items:    make(map[string]T),
	}
}

// Register attaches a Manager as the processor for one status, with the
// state-machine events its success and failure settlements map to. The
// Manager's settlement callback is wired to this Router.
func (r *Router[T]) Register(status state.Status, m *Manager[T], success, failure state.Event) {
	r.mu.Lock()
	r.managers[status] = m
	r.outcomes[status] = stageOutcome{success: success, failure: failure}
	r.mu.Unlock()
	m.SetOnFinished(r.ItemFinished)
}

// Add registers an item and enqueues it with the Manager for its current
// status, if one is attached.
func (r *Router[T]) Add(item T) {
	r.mu.Lock()
	r.items[item.ItemID()] = item
	m := r.managers[item.CurrentStatus()]
	r.mu.Unlock()
	if m != nil {
		m.Add(item)
	}
}

// Item returns a registered item by ID.
func (r *Router[T]) Item(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	return item, ok
}

// Manager returns the Manager registered for a status, if any.
func (r *Router[T]) Manager(status state.Status) (*Manager[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[status]
	return m, ok
}

// StartAll starts every registered Manager's tick loop.
func (r *Router[T]) StartAll(ctx context.Context) {
	r.mu.Lock()
	managers := make([]*Manager[T], 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()
	for _, m := range managers {
		m.Start(ctx)
	}
}

// StopAll stops every registered Manager.
func (r *Router[T]) StopAll() {
	r.mu.Lock()
	managers := make([]*Manager[T], 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()
	for _, m := range managers {
		m.Stop()
	}
}

// ItemFinished routes a settled item. The next status comes from the state
// machine given the stage's outcome event; if no transition matches, the
// item stays resident in the source Manager's completed or failed list;
// that residency is the representation of a terminal state.
func (r *Router[T]) ItemFinished(item T, success bool) {
	r.mu.Lock()
	from := item.CurrentStatus()
	outcome, ok := r.outcomes[from]
	if !ok {
		r.mu.Unlock()
		r.cfg.Logger.Warn("settlement from unregistered stage",
			"item_id", item.ItemID(), "status", from.String())
		return
	}
	ev := outcome.failure
	if success {
		ev = outcome.success
	}

	next, err := state.Next(r.cfg.Table, item.Override(), from, ev)
	if err != nil {
		r.mu.Unlock()
		r.cfg.Logger.With("item_id", item.ItemID()).Debug("no onward transition, item resident",
			"status", from.String(), "event", string(ev))
		if success && r.cfg.IsComplete(from) {
			r.finishedTerminal(item)
		}
		return
	}

	src := r.managers[from]
	dest := r.managers[next]
	r.mu.Unlock()

	item.SetStatus(next)
	r.publish(r.cfg.TransitionEvent(item.ItemID(), from, next))
	r.cfg.Logger.With("item_id", item.ItemID()).Info("item routed",
		"from", from.String(), "to", next.String())

	if dest != nil {
		if src != nil {
			src.Remove(item.ItemID())
		}
		dest.Add(item)
		return
	}
	// No Manager processes the destination status: the item stays resident
	// in the source Manager's settled list with its new status.
	if r.cfg.IsComplete(next) {
		r.finishedTerminal(item)
	}
}

// ManualTransition bypasses the event-driven path for user-initiated moves
// (pause, resume, force-move): it removes the item from its current
// Manager, sets the new status directly, and enqueues it with the
// destination Manager. The same transition event is emitted, so observers
// cannot distinguish manual from automatic routing.
func (r *Router[T]) ManualTransition(id string, to state.Status) error {
	r.mu.Lock()
	item, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("item", id)
	}
	from := item.CurrentStatus()
	src := r.managers[from]
	dest := r.managers[to]
	r.mu.Unlock()

	if src != nil {
		src.AbortProcessing(id)
		src.Remove(id)
	}
	item.SetStatus(to)
	r.publish(r.cfg.TransitionEvent(id, from, to))
	r.cfg.Logger.With("item_id", id).Info("manual transition",
		"from", from.String(), "to", to.String())

	if dest != nil {
		dest.Add(item)
	} else if r.cfg.IsComplete(to) {
		r.finishedTerminal(item)
	}
	return nil
}

// finishedTerminal publishes the completion event and runs the unblock
// sweep for an item that reached its terminal success state.
func (r *Router[T]) finishedTerminal(item T) {
	r.publish(r.cfg.CompletedEvent(item.ItemID()))
	r.unblockDependents(item.ItemID())
}

// unblockDependents scans every Manager's queue for blocked items that
// depend on the just-finished item, clearing blocked only when all of the
// dependent's dependencies are now terminal-successful. The guard mirrors
// the cascade engine's, generalized across item kinds.
func (r *Router[T]) unblockDependents(finishedID string) {
	r.mu.Lock()
	managers := make([]*Manager[T], 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	for _, m := range managers {
		for _, item := range m.Queue() {
			if !item.IsBlocked() || !containsID(item.DependencyIDs(), finishedID) {
				continue
			}
			if r.allDependenciesComplete(item) {
				item.SetBlocked(false)
				r.cfg.Logger.With("item_id", item.ItemID()).Info("dependent unblocked",
					"finished", finishedID)
			}
		}
	}
	r.publish(event.DependencyCompleted{ItemID: finishedID})
}

func (r *Router[T]) allDependenciesComplete(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, depID := range item.DependencyIDs() {
		dep, ok := r.items[depID]
		if !ok || !r.cfg.IsComplete(dep.CurrentStatus()) {
			return false
		}
	}
	return true
}

func (r *Router[T]) publish(ev event.Event) {
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(ev)
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
