// Package cascade propagates status changes through the dependency graph.
//
// Completion unblocks direct dependents, but only once every one of their
// dependencies is complete. A task with two dependencies stays blocked until
// both finish. Failure is walked transitively for observability without
// mutating downstream tasks: work already in flight is never forcibly
// re-blocked. ResetSubtree is the engine's sole bulk mutation, used for
// "redo this and everything downstream". RecalculateAll re-derives every
// blocked flag from current dependency completion after bulk loads and is
// idempotent.
package cascade
