package slot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slocombe/foreman/internal/errors"
	"github.com/slocombe/foreman/internal/logging"
)

// waiter is one suspended Request call. The grant channel is closed by the
// releaser at the moment ownership transfers.
type waiter struct {
	ownerID string
	grant   chan struct{}
}

// slotState tracks one slot's current holder and its FIFO wait queue.
type slotState struct {
	holder  string
	waiters []*waiter
}

// Service serializes access to a fixed pool of execution slots. Construct
// one per process and pass it explicitly; the pool it guards is
// process-global but the instance is not ambient state.
type Service struct {
	mu     sync.Mutex
	slots  map[string]*slotState
	logger *logging.Logger
}

// New creates a token service for the given slot IDs.
func New(slotIDs []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	slots := make(map[string]*slotState, len(slotIDs))
	for _, id := range slotIDs {
		slots[id] = &slotState{}
	}
	return &Service{slots: slots, logger: logger}
}

// NewPool creates a token service with n slots named "slot-1" .. "slot-n".
func NewPool(n int, logger *logging.Logger) *Service {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, fmt.Sprintf("slot-%d", i))
	}
	return New(ids, logger)
}

// SlotIDs returns the pool's slot identifiers in sorted order.
func (s *Service) SlotIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Request grants the slot's token to ownerID, suspending until it is
// available. Grants for a slot are strictly FIFO in request order. Returns
// an error wrapping ErrCanceled if cancelled while waiting; a cancelled
// waiter is removed from the queue without disturbing others.
func (s *Service) Request(ctx context.Context, slotID, ownerID string) error {
	s.mu.Lock()
	st, ok := s.slots[slotID]
	if !ok {
		s.mu.Unlock()
		return errors.NewNotFoundError("slot", slotID)
	}

	if st.holder == "" {
		st.holder = ownerID
		s.mu.Unlock()
		s.logger.WithSlot(slotID).Debug("token granted", "owner", ownerID)
		return nil
	}

	w := &waiter{ownerID: ownerID, grant: make(chan struct{})}
	st.waiters = append(st.waiters, w)
	position := len(st.waiters)
	s.mu.Unlock()
	s.logger.WithSlot(slotID).Debug("token queued", "owner", ownerID, "position", position)

	select {
	case <-w.grant:
		s.logger.WithSlot(slotID).Debug("token granted after wait", "owner", ownerID)
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		// The grant may have raced with cancellation. If ownership already
		// transferred to us, pass it straight on so the token is not lost.
		select {
		case <-w.grant:
			s.handOffLocked(slotID, st)
			s.mu.Unlock()
			return errors.Wrapf(errors.ErrCanceled, "slot %s request by %s: %v", slotID, ownerID, ctx.Err())
		default:
		}
		for i, queued := range st.waiters {
			if queued == w {
				st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		s.logger.WithSlot(slotID).Debug("token request cancelled", "owner", ownerID)
		return errors.Wrapf(errors.ErrCanceled, "slot %s request by %s: %v", slotID, ownerID, ctx.Err())
	}
}

// Release returns the slot's token. If the caller does not currently hold
// it, the call is logged and ignored. If waiters are queued, ownership
// transfers directly to the oldest one.
func (s *Service) Release(slotID, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.slots[slotID]
	if !ok {
		s.logger.Warn("release for unknown slot", "slot_id", slotID, "owner", ownerID)
		return
	}
	if st.holder != ownerID {
		s.logger.WithSlot(slotID).Warn("release by non-holder ignored",
			"owner", ownerID, "holder", st.holder)
		return
	}

	s.handOffLocked(slotID, st)
}

// handOffLocked transfers the token to the next waiter, or frees it when
// the queue is empty. Caller holds s.mu.
func (s *Service) handOffLocked(slotID string, st *slotState) {
	if len(st.waiters) == 0 {
		st.holder = ""
		s.logger.WithSlot(slotID).Debug("token freed")
		return
	}
	next := st.waiters[0]
	st.waiters = st.waiters[1:]
	st.holder = next.ownerID
	close(next.grant)
}

// Holder returns the current token holder for a slot, or "" if free or the
// slot is unknown.
func (s *Service) Holder(slotID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.slots[slotID]; ok {
		return st.holder
	}
	return ""
}

// QueueLen returns the number of suspended waiters for a slot.
func (s *Service) QueueLen(slotID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.slots[slotID]; ok {
		return len(st.waiters)
	}
	return 0
}
