// Package worker defines the collaborator interfaces the orchestration core
// consumes: a worker runtime that proposes work for a task, and a verifier
// that runs configured checks and reports per-check outcomes. The core never
// spawns processes itself; CommandVerifier is the one concrete
// implementation shipped here so the engine is runnable against real
// build/lint/test commands.
package worker
