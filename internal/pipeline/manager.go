package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slocombe/foreman/internal/logging"
)

// ProcessFunc performs one stage's work on an item. The context carries the
// cooperative cancellation signal; checking it is the processor's
// responsibility. A non-nil error settles the item as failed.
type ProcessFunc[T Item] func(ctx context.Context, item T) error

// FinishedFunc is invoked after an item settles, outside the Manager's
// lock. The Manager itself never decides the next stage.
type FinishedFunc[T Item] func(item T, success bool)

// Manager runs one pipeline stage: a queue of pending items, lists of
// settled and waiting items, and a periodic tick that processes at most one
// item at a time.
type Manager[T Item] struct {
	stage    string
	interval time.Duration
	process  ProcessFunc[T]
	logger   *logging.Logger

	// canProcess gates queue scanning; the default admits any unblocked item.
	canProcess func(T) bool
	// onFinished is set by the Router when the Manager is registered.
	onFinished FinishedFunc[T]

	mu         sync.Mutex
	queue      []T
	completed  []T
	failed     []T
	waiting    []T
	processing bool
	inFlightID string
	cancel     context.CancelFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewManager creates a stage manager. The manager does not tick until Start
// is called; Tick may also be driven directly, which tests rely on.
func NewManager[T Item](stage string, interval time.Duration, process ProcessFunc[T], logger *logging.Logger) *Manager[T] {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager[T]{
		stage:      stage,
		interval:   interval,
		process:    process,
		logger:     logger.WithStage(stage),
		canProcess: func(item T) bool { return !item.IsBlocked() },
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Stage returns the stage name.
func (m *Manager[T]) Stage() string { return m.stage }

// SetCanProcess replaces the queue-admission predicate.
func (m *Manager[T]) SetCanProcess(fn func(T) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canProcess = fn
}

// SetOnFinished installs the settlement notification callback.
func (m *Manager[T]) SetOnFinished(fn FinishedFunc[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinished = fn
}

// Start launches the periodic tick loop on its own timer. Each stage ticks
// independently of every other stage.
func (m *Manager[T]) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Tick(ctx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit. In-flight processing
// is not forcibly terminated.
func (m *Manager[T]) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

// Add appends an item to the back of the queue.
func (m *Manager[T]) Add(item T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, item)
}

// Remove deletes the item from whichever list holds it. It reports whether
// the item was found; removing an absent item is not an error.
func (m *Manager[T]) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range []*[]T{&m.queue, &m.completed, &m.failed, &m.waiting} {
		if removeByID(list, id) {
			return true
		}
	}
	return false
}

func removeByID[T Item](list *[]T, id string) bool {
	for i, item := range *list {
		if item.ItemID() == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

// Tick scans the queue for the first processable item and runs the stage's
// process function on it. A tick that observes an in-progress tick is a
// no-op, so at most one item is processed at a time within a Manager. A
// panic in process is caught here: the item settles as failed and the next
// tick proceeds normally.
func (m *Manager[T]) Tick(ctx context.Context) {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return
	}
	idx := -1
	for i, item := range m.queue {
		if m.canProcess(item) {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	item := m.queue[idx]
	m.queue = append(m.queue[:idx], m.queue[idx+1:]...)
	m.processing = true
	m.inFlightID = item.ItemID()
	procCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.WithTask(item.ItemID()).Debug("processing item")
	err := m.runProcess(procCtx, item)
	// Read the cancellation state before releasing the tick-scoped context:
	// after cancel() it always reports context.Canceled.
	interrupted := procCtx.Err()
	cancel()
	if err == nil && interrupted != nil {
		// Cancellation raised before completion: the result is discarded
		// rather than applied.
		err = interrupted
	}

	success := err == nil
	m.mu.Lock()
	if success {
		m.completed = append(m.completed, item)
	} else {
		item.SetError(err.Error())
		m.failed = append(m.failed, item)
	}
	m.processing = false
	m.inFlightID = ""
	m.cancel = nil
	notify := m.onFinished
	m.mu.Unlock()

	if success {
		m.logger.WithTask(item.ItemID()).Info("item completed")
	} else {
		m.logger.WithTask(item.ItemID()).Warn("item failed", "error", err.Error())
	}
	if notify != nil {
		notify(item, success)
	}
}

func (m *Manager[T]) runProcess(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process panic: %v", r)
		}
	}()
	return m.process(ctx, item)
}

// AbortProcessing signals cancellation if the given item is the one
// currently in flight. It is a no-op otherwise.
func (m *Manager[T]) AbortProcessing(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing && m.inFlightID == id && m.cancel != nil {
		m.cancel()
	}
}

// MoveToWaiting parks a queued item that needs external input.
func (m *Manager[T]) MoveToWaiting(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.queue {
		if item.ItemID() == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.waiting = append(m.waiting, item)
			return true
		}
	}
	return false
}

// MoveFromWaitingToQueue returns a waiting item to the front of the queue,
// not the back, so a long wait does not also cost its queue position.
func (m *Manager[T]) MoveFromWaitingToQueue(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.waiting {
		if item.ItemID() == id {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			m.queue = append([]T{item}, m.queue...)
			return true
		}
	}
	return false
}

// Queue returns a snapshot of the pending items.
func (m *Manager[T]) Queue() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.queue...)
}

// Completed returns a snapshot of the successfully settled items.
func (m *Manager[T]) Completed() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.completed...)
}

// Failed returns a snapshot of the failed items.
func (m *Manager[T]) Failed() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.failed...)
}

// Waiting returns a snapshot of the items parked for external input.
func (m *Manager[T]) Waiting() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.waiting...)
}
