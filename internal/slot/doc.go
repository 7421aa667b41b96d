// Package slot provides the execution-slot token service: one exclusive
// token per slot in a fixed pool, granted to at most one owner at a time.
//
// Request suspends the caller until the token is granted; there is no
// polling. Waiters for a slot are served in strict FIFO order, and on
// release the token transfers directly to the next queued waiter. It never
// becomes transiently free while waiters exist, so a newly arriving request
// cannot jump ahead during a hand-off. Slots are fully independent of one
// another.
//
// Releasing a token the caller does not hold is logged and ignored rather
// than returned as an error: callers cannot be trusted to always pair
// request and release under concurrent cancellation.
package slot
