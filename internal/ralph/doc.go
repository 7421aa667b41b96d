// Package ralph implements the per-task iteration loop: a bounded retry
// cycle of fresh attempt, verification, and checklist update that drives a
// single task to completion.
//
// Each iteration discards the previous worker instance and starts a fresh
// one; nothing carries over between iterations except the checklist and a
// bounded window of prior-attempt summaries, which keeps context from
// growing without limit. The loop exits when every required checklist item
// passes, when the iteration budget is exhausted, or when it is aborted;
// pause and resume freeze the loop between iterations without losing the
// checklist.
package ralph
