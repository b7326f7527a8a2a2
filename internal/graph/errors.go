package graph

import (
	"errors"
	"fmt"
)

// FailureKind classifies pipeline failures.
type FailureKind string

const (
	// DependencyUnresolved means a readiness gate exhausted its retry budget.
	DependencyUnresolved FailureKind = "DependencyUnresolved"
	// ValidationFailure means the control plane rejected an object through
	// an admission backend. It is surfaced verbatim.
	ValidationFailure FailureKind = "ValidationFailure"
	// ConflictingTopology means a descriptor requests a feature whose shared
	// infrastructure reference is absent, or requests mutually exclusive features.
	ConflictingTopology FailureKind = "ConflictingTopology"
	// MalformedDescriptor means a descriptor failed validation.
	MalformedDescriptor FailureKind = "MalformedDescriptor"
)

// Error is a classified failure scoped to a workload and/or a subsystem.
type Error struct {
	Kind      FailureKind
	Workload  string
	Subsystem string
	Err       error
}

func (e *Error) Error() string {
	scope := e.Workload
	if e.Subsystem != "" {
		if scope != "" {
			scope += ", "
		}
		scope += "subsystem " + e.Subsystem
	}
	if scope == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, scope, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Conflicting returns a ConflictingTopology error for a workload.
func Conflicting(workload, format string, args ...any) error {
	return &Error{Kind: ConflictingTopology, Workload: workload, Err: fmt.Errorf(format, args...)}
}

// Malformed returns a MalformedDescriptor error for a workload.
func Malformed(workload string, err error) error {
	return &Error{Kind: MalformedDescriptor, Workload: workload, Err: err}
}

// Unresolved returns a DependencyUnresolved error for a subsystem.
func Unresolved(subsystem string, err error) error {
	return &Error{Kind: DependencyUnresolved, Subsystem: subsystem, Err: err}
}

// Rejected returns a ValidationFailure error for a workload.
func Rejected(workload string, err error) error {
	return &Error{Kind: ValidationFailure, Workload: workload, Err: err}
}

// KindOf returns the failure kind of err, if it is a classified failure.
func KindOf(err error) (FailureKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ForWorkload scopes a classified error to a workload, keeping its kind.
// Unclassified errors are returned unchanged.
func ForWorkload(workload string, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Workload == workload {
		return err
	}
	scoped := *e
	scoped.Workload = workload
	return &scoped
}
