// Package errors provides centralized error definitions and error handling
// utilities for the foreman codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// Validation failures (illegal connections, illegal transitions) are expected
// outcomes of concurrent or stale client state. They are reported as
// structured values, never treated as fatal faults.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Graph-related sentinel errors
var (
	// ErrUnknownNode indicates a connection endpoint that is not in the graph.
	ErrUnknownNode = New("unknown node")
	// ErrDuplicateConnection indicates the ordered edge already exists.
	ErrDuplicateConnection = New("duplicate connection")
	// ErrCycleDetected indicates that committing the edge would create a cycle.
	ErrCycleDetected = New("dependency cycle detected")
	// ErrConnectionNotFound indicates that a connection could not be found.
	ErrConnectionNotFound = New("connection not found")
	// ErrNodeNotFound indicates that a node could not be found.
	ErrNodeNotFound = New("node not found")
)

// Lifecycle-related sentinel errors
var (
	// ErrIllegalTransition indicates no transition table entry matched.
	ErrIllegalTransition = New("illegal status transition")
	// ErrItemNotFound indicates that a managed item could not be found.
	ErrItemNotFound = New("item not found")
	// ErrLoopAborted indicates that an iteration loop was aborted.
	ErrLoopAborted = New("loop aborted")
	// ErrWorkerFailed indicates that a worker run ended in failure.
	ErrWorkerFailed = New("worker execution failed")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// baseError provides common functionality for all error types.
type baseError struct {
	message string
	cause   error
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// GraphError represents a rejected graph mutation.
//
// Example:
//
//	err := errors.NewGraphError("cannot add connection", errors.ErrCycleDetected)
//	err = err.WithFrom("task-b").WithTo("task-a")
type GraphError struct {
	baseError
	GraphID string
	From    string
	To      string
}

// NewGraphError creates a new GraphError.
func NewGraphError(message string, cause error) *GraphError {
	return &GraphError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithGraphID adds the owning graph ID to the error context.
func (e *GraphError) WithGraphID(id string) *GraphError {
	e.GraphID = id
	return e
}

// WithFrom adds the edge source to the error context.
func (e *GraphError) WithFrom(id string) *GraphError {
	e.From = id
	return e
}

// WithTo adds the edge target to the error context.
func (e *GraphError) WithTo(id string) *GraphError {
	e.To = id
	return e
}

// Error returns the formatted error message.
func (e *GraphError) Error() string {
	var parts []string
	if e.GraphID != "" {
		parts = append(parts, fmt.Sprintf("graph=%s", e.GraphID))
	}
	if e.From != "" {
		parts = append(parts, fmt.Sprintf("from=%s", e.From))
	}
	if e.To != "" {
		parts = append(parts, fmt.Sprintf("to=%s", e.To))
	}

	prefix := "graph error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("graph error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *GraphError) Is(target error) bool {
	if _, ok := target.(*GraphError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TransitionError represents a status transition with no matching table entry.
//
// Example:
//
//	err := errors.NewTransitionError("done", "COMPLETE")
//	err = err.WithItemID("task-1")
type TransitionError struct {
	baseError
	ItemID string
	From   string
	Event  string
}

// NewTransitionError creates a new TransitionError for the given source
// status and event.
func NewTransitionError(from, event string) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message: fmt.Sprintf("no transition from %q on %q", from, event),
			cause:   ErrIllegalTransition,
		},
		From:  from,
		Event: event,
	}
}

// WithItemID adds the item ID to the error context.
func (e *TransitionError) WithItemID(id string) *TransitionError {
	e.ItemID = id
	return e
}

// Error returns the formatted error message.
func (e *TransitionError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("transition error [item=%s]: %s", e.ItemID, e.message)
	}
	return fmt.Sprintf("transition error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *TransitionError) Is(target error) bool {
	if _, ok := target.(*TransitionError); ok {
		return true
	}
	if errors.Is(target, ErrIllegalTransition) {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
// Not-found conditions are logged and treated as no-ops by callers;
// retries and idempotent client code are expected.
//
// Example:
//
//	err := errors.NewNotFoundError("task", "abc123")
//	fmt.Println(err) // "task 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("task ID cannot be empty")
//	err = err.WithField("id")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{message: message},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// IsValidation returns true if the error represents a rejected mutation:
// a validation error, an illegal transition, or an illegal connection.
// These are expected outcomes and must not be escalated as faults.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}

	var validation *ValidationError
	var transition *TransitionError
	var graph *GraphError

	if As(err, &validation) || As(err, &transition) || As(err, &graph) {
		return true
	}

	return Is(err, ErrInvalidInput) || Is(err, ErrIllegalTransition) ||
		Is(err, ErrCycleDetected) || Is(err, ErrDuplicateConnection) ||
		Is(err, ErrUnknownNode)
}

// IsNotFound returns true if the error represents a missing resource.
// Callers treat not-found as a no-op, not a failure.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	if As(err, &notFound) {
		return true
	}

	return Is(err, ErrNodeNotFound) || Is(err, ErrConnectionNotFound) ||
		Is(err, ErrItemNotFound)
}

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to route item")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to route item %s", itemID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
