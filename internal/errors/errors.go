// Package errors provides centralized error definitions for mfwrun.
// It defines the error taxonomy used across descriptor loading, option
// resolution, planning, and run execution, plus classification helpers
// that determine how far an error propagates:
//
//   - SchemaError: defective descriptor (duplicate option names, malformed
//     fields). Fatal: the run aborts before any device starts.
//   - ReferenceError: a task references an option name that is not visible.
//     Fatal for the owning resource only; its devices are excluded from the
//     run and other resources proceed.
//   - OverrideError: a saved override does not match the schema (unknown
//     name or wrong type). Recoverable: the default wins and the override
//     is logged.
//   - ExecutionError: the automation backend reported a task failure.
//     Device-scoped: that lane is marked failed, other lanes continue.
//
// Timeout and cancellation are represented by the ErrRunTimeout and
// ErrRunCanceled sentinels, which double as context cancel causes during
// two-phase teardown.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions so callers can import only this
// package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Descriptor and resolution sentinel errors
var (
	// ErrDuplicateOptionName indicates two options in one resource's
	// flattened tree share a name.
	ErrDuplicateOptionName = New("duplicate option name")
	// ErrMissingOptionReference indicates a task references an option name
	// absent from the visible set.
	ErrMissingOptionReference = New("missing option reference")
	// ErrUnknownOverride indicates a saved override names an option that
	// does not exist in the schema.
	ErrUnknownOverride = New("unknown option override")
	// ErrOverrideTypeMismatch indicates a saved override value does not
	// match the option's kind.
	ErrOverrideTypeMismatch = New("override type mismatch")
	// ErrResourceNotFound indicates a device is bound to a resource that
	// was not discovered in any resource directory.
	ErrResourceNotFound = New("resource not found")
	// ErrDeviceNotFound indicates a run request selected a device name that
	// is not configured.
	ErrDeviceNotFound = New("device not found")
)

// Run sentinel errors. ErrRunTimeout and ErrRunCanceled are used as context
// cancel causes so lanes can distinguish deadline expiry from interrupt.
var (
	// ErrRunTimeout indicates the run deadline was exceeded.
	ErrRunTimeout = New("run deadline exceeded")
	// ErrRunCanceled indicates the run was interrupted by the user.
	ErrRunCanceled = New("run canceled")
	// ErrTaskFailed indicates the backend reported a failed task.
	ErrTaskFailed = New("task failed")
	// ErrBackendUnavailable indicates the backend could not start a task.
	ErrBackendUnavailable = New("backend unavailable")
)

// -----------------------------------------------------------------------------
// SchemaError
// -----------------------------------------------------------------------------

// SchemaError indicates a defective resource descriptor. Schema errors are
// fatal: the run aborts before any device is scheduled.
type SchemaError struct {
	Resource string // resource name, may be empty before identity is parsed
	Option   string // offending option name, if applicable
	message  string
	cause    error
}

// NewSchemaError creates a SchemaError for the given resource.
func NewSchemaError(resource, message string, cause error) *SchemaError {
	return &SchemaError{Resource: resource, message: message, cause: cause}
}

// WithOption attaches the offending option name.
func (e *SchemaError) WithOption(name string) *SchemaError {
	e.Option = name
	return e
}

func (e *SchemaError) Error() string {
	msg := e.message
	if e.Option != "" {
		msg = fmt.Sprintf("%s (option %q)", msg, e.Option)
	}
	if e.Resource != "" {
		msg = fmt.Sprintf("resource %q: %s", e.Resource, msg)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.cause }

// Is lets errors.Is match the descriptor sentinels wrapped by this error.
func (e *SchemaError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// ReferenceError
// -----------------------------------------------------------------------------

// ReferenceError indicates a task references an option name that is not in
// the visible set (for example, it was hidden by a disabled group). It is
// fatal for the owning resource: that resource's devices are excluded from
// the run before scheduling begins.
type ReferenceError struct {
	Resource string
	Task     string
	Option   string
}

// NewReferenceError creates a ReferenceError.
func NewReferenceError(resource, task, option string) *ReferenceError {
	return &ReferenceError{Resource: resource, Task: task, Option: option}
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("resource %q: task %q references option %q which is not visible",
		e.Resource, e.Task, e.Option)
}

func (e *ReferenceError) Is(target error) bool {
	return target == ErrMissingOptionReference
}

// -----------------------------------------------------------------------------
// OverrideError
// -----------------------------------------------------------------------------

// OverrideError indicates a saved override could not be applied. Override
// errors are recoverable: the schema default is used and the error is
// surfaced only through logs and the resolver's warning list.
type OverrideError struct {
	Resource string
	Option   string
	cause    error
}

// NewOverrideError creates an OverrideError wrapping one of the override
// sentinels (ErrUnknownOverride or ErrOverrideTypeMismatch).
func NewOverrideError(resource, option string, cause error) *OverrideError {
	return &OverrideError{Resource: resource, Option: option, cause: cause}
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("resource %q: override for %q ignored: %v", e.Resource, e.Option, e.cause)
}

func (e *OverrideError) Unwrap() error { return e.cause }

// -----------------------------------------------------------------------------
// ExecutionError
// -----------------------------------------------------------------------------

// ExecutionError indicates the automation backend reported a task failure.
// It is device-scoped: the owning lane fails, other lanes continue.
type ExecutionError struct {
	Device string
	Task   string
	cause  error
}

// NewExecutionError creates an ExecutionError.
func NewExecutionError(device, task string, cause error) *ExecutionError {
	return &ExecutionError{Device: device, Task: task, cause: cause}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("device %q: task %q failed: %v", e.Device, e.Task, e.cause)
}

func (e *ExecutionError) Unwrap() error { return e.cause }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal reports whether the error must stop work before any device of the
// affected scope starts: schema errors stop the whole run, reference errors
// stop the owning resource.
func IsFatal(err error) bool {
	var schemaErr *SchemaError
	var refErr *ReferenceError
	return errors.As(err, &schemaErr) || errors.As(err, &refErr)
}

// IsRecoverable reports whether the error degrades gracefully instead of
// stopping the run (override fallbacks and device-scoped task failures).
func IsRecoverable(err error) bool {
	var overrideErr *OverrideError
	var execErr *ExecutionError
	return errors.As(err, &overrideErr) || errors.As(err, &execErr)
}

// IsShutdownCause reports whether the error is one of the teardown causes
// (deadline expiry or user interrupt).
func IsShutdownCause(err error) bool {
	return errors.Is(err, ErrRunTimeout) || errors.Is(err, ErrRunCanceled)
}
