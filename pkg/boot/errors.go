package boot

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the coordinator and its host boundaries.
var (
	// ErrNotFound is returned by resolvers when no resource has the requested key.
	ErrNotFound = errors.New("boot resource not found")

	// ErrReleased is returned when a handle is released more than once.
	ErrReleased = errors.New("handle already released")

	// ErrNodeNotFound is returned by scene graphs for nodes that no longer exist.
	ErrNodeNotFound = errors.New("scene node not found")

	// ErrActive is returned when activating a resource that is already active.
	ErrActive = errors.New("boot resource already active")

	// ErrPanic wraps a panic recovered from a host boundary call.
	ErrPanic = errors.New("panic in host call")
)

// ErrorClass classifies coordinator errors for reporting.
type ErrorClass string

const (
	// ClassResolution covers key lookup and load failures. Never fatal: the key is skipped.
	ClassResolution ErrorClass = "resolution"

	// ClassInstantiation covers per-template instantiation failures. The slot stays empty.
	ClassInstantiation ErrorClass = "instantiation"

	// ClassTeardown covers deactivate and release failures.
	ClassTeardown ErrorClass = "teardown"

	// ClassConfig covers invalid Boot Resource definitions.
	ClassConfig ErrorClass = "config"
)

// Error is a classified error with the key and operation that produced it.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Key is the Boot Resource key involved, if any.
	Key string `json:"key,omitempty"`

	// Operation is the operation being performed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Key != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (key=%s, operation=%s)", msg, e.Key, e.Operation)
	} else if e.Key != "" {
		msg = fmt.Sprintf("%s (key=%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewResolutionError creates a resolution failure for key.
func NewResolutionError(key string, err error) *Error {
	return &Error{Class: ClassResolution, Message: "failed to resolve boot resource", Key: key, Operation: "resolve", Err: err}
}

// NewInstantiationError creates an instantiation failure for a template slot.
func NewInstantiationError(resource string, slot int, err error) *Error {
	return &Error{
		Class:     ClassInstantiation,
		Message:   fmt.Sprintf("failed to instantiate template slot %d", slot),
		Key:       resource,
		Operation: "instantiate",
		Err:       err,
	}
}

// NewTeardownError creates a teardown failure for key.
func NewTeardownError(key, operation string, err error) *Error {
	return &Error{Class: ClassTeardown, Message: "teardown step failed", Key: key, Operation: operation, Err: err}
}

// NewConfigError creates a definition error.
func NewConfigError(message string, err error) *Error {
	return &Error{Class: ClassConfig, Message: message, Err: err}
}

// IsResolution returns true if err is a resolution failure.
func IsResolution(err error) bool {
	return hasClass(err, ClassResolution)
}

// IsInstantiation returns true if err is an instantiation failure.
func IsInstantiation(err error) bool {
	return hasClass(err, ClassInstantiation)
}

// IsConfig returns true if err is a definition error.
func IsConfig(err error) bool {
	return hasClass(err, ClassConfig)
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
