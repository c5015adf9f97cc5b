// Package engineerr implements the engine's error taxonomy: a closed set of
// typed errors the Device Manager and its collaborators return, so callers
// can classify failures with errors.As instead of string matching.
package engineerr

import "fmt"

// ValidationError means inputs violate the model/device/group schema.
// Never retried; surfaced to the caller with field context.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

// NotFoundError means a referenced id is not present in the catalog.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConflictError means a unique-key collision or an illegal state-machine
// transition (start while STOPPING, register same id with a different spec).
type ConflictError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s %q already exists", e.Kind, e.ID)
	}
	return fmt.Sprintf("%s %q conflict: %s", e.Kind, e.ID, e.Reason)
}

// BusyError means a dependency still references the thing being removed
// (e.g. deleting a model with live device instances).
type BusyError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s %q busy: %s", e.Kind, e.ID, e.Reason)
}

// UnavailableError means an external system (broker, sink) could not be
// reached. Logged and retried by the responsible adapter; never surfaced on
// the control plane once a device is running.
type UnavailableError struct {
	System string
	Cause  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.System, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// TimeoutError means a connect/publish exceeded its deadline. Handled by
// its caller as an UnavailableError.
type TimeoutError struct {
	Operation string
	Cause     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Operation, e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// FatalError means a programmer error or invariant violation. Logged and,
// in development, should abort the process; in production it degrades the
// affected device to ERROR state instead.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s", e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func NewConflict(kind, id, reason string) error {
	return &ConflictError{Kind: kind, ID: id, Reason: reason}
}

func NewBusy(kind, id, reason string) error {
	return &BusyError{Kind: kind, ID: id, Reason: reason}
}

func NewUnavailable(system string, cause error) error {
	return &UnavailableError{System: system, Cause: cause}
}

func NewTimeout(operation string, cause error) error {
	return &TimeoutError{Operation: operation, Cause: cause}
}

func NewFatal(reason string) error {
	return &FatalError{Reason: reason}
}
