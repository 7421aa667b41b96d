// Package store persists graphs between runs. The Store interface is what
// the engine consumes; FileStore is the shipped implementation, writing one
// JSON snapshot per graph with an atomic rename and an flock(2) guard so
// concurrent processes sharing a state directory cannot interleave writes.
package store
