// Package event provides a synchronous publish-subscribe bus and the closed
// set of event types emitted by the orchestration engine.
//
// Components communicate through the bus without direct dependencies: the
// graph publishes structural changes, the router publishes transitions, and
// the iteration controller publishes loop progress. Payloads are closed
// tagged variants so consumers can exhaustively handle them.
//
// Delivery is at-least-once within a process lifetime and synchronous with
// the publishing call. Handlers must not block.
package event
