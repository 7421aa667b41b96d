// Package pipeline provides the tick-driven stage framework: a generic
// Manager processes items for one pipeline stage, and a Router moves items
// between stage Managers according to the status state machine.
//
// Each Manager owns a private queue plus completed, failed, and waiting
// lists, and processes at most one item at a time; a tick that observes an
// in-progress tick is a no-op. The Manager never decides the next stage:
// on settlement it notifies the Router, which consults the transition table
// and either moves the item to the destination stage or leaves it resident
// in the source Manager's completed/failed list. That residency is how
// terminal states are represented: absence of a further transition, not a
// special flag.
//
// Cross-Manager interaction happens only through the Router's explicit move
// operations; queues are never shared.
package pipeline
