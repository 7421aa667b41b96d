// Package graph provides the in-memory dependency graph of tasks: nodes,
// directed dependency edges, validity rules, and dependency analysis.
//
// A connection (from, to) means that to depends on from. The edge relation is
// acyclic at all times: cycles are rejected at the point of insertion by a
// reachability check over a provisional adjacency view, so an illegal edge is
// never committed. Duplicate edges between the same ordered pair are rejected
// as well.
//
// The graph is the sole owner of task and connection lifetime. Mutations go
// through the validated operations on [Graph]; callers serialize mutations
// externally, so the type carries no internal locking. Structural changes are
// published on the event bus supplied at construction.
//
// Analysis (topological layering, per-task dependency and dependent sets,
// readiness classification) always recomputes from current state; nothing is
// cached across mutations.
package graph
