// Package state defines the status lifecycles for tasks and features as
// declarative transition tables.
//
// A table is a set of (from, event) -> to entries. Looking up a pair that has
// no entry means the transition is illegal; it is reported, never applied.
// The functions here are pure: they inspect tables and return results without
// side effects, so the same (status, event) pair always yields the same
// answer.
//
// Per-item overrides replace the table lookup entirely for that one item.
// This lets callers customize retry and rework edges without mutating the
// shared default tables: a two-tier lookup, not polymorphic dispatch.
package state
