// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per failure kind. DeviceError unwraps to the sentinel
// of its kind so callers can branch with errors.Is.
var (
	ErrConnectFailure        = errors.New("connect failure")
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrCommandTimeout        = errors.New("command timeout")
	ErrCapabilityUnsupported = errors.New("capability unsupported")
	ErrParseFailure          = errors.New("parse failure")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrValidationFailed      = errors.New("validation failed")
	ErrNotFound              = errors.New("resource not found")
)

// ErrorKind classifies a device-scoped failure.
type ErrorKind string

const (
	KindConnect     ErrorKind = "ConnectFailure"
	KindAuth        ErrorKind = "AuthenticationFailure"
	KindTimeout     ErrorKind = "CommandTimeout"
	KindUnsupported ErrorKind = "CapabilityUnsupported"
	KindParse       ErrorKind = "ParseFailure"
	KindPersistence ErrorKind = "PersistenceFailure"
)

// kindSentinels is ordered by precedence: an error wrapping several
// sentinels takes the kind of the first one listed.
var kindSentinels = []struct {
	kind ErrorKind
	err  error
}{
	{KindAuth, ErrAuthenticationFailure},
	{KindConnect, ErrConnectFailure},
	{KindTimeout, ErrCommandTimeout},
	{KindUnsupported, ErrCapabilityUnsupported},
	{KindParse, ErrParseFailure},
	{KindPersistence, ErrPersistenceFailure},
}

func sentinelFor(kind ErrorKind) error {
	for _, ks := range kindSentinels {
		if ks.kind == kind {
			return ks.err
		}
	}
	return nil
}

// DeviceError is a failure scoped to one device. It always carries the
// device identity so a batch can report it without aborting siblings.
type DeviceError struct {
	Device    string
	Kind      ErrorKind
	Operation string
	Err       error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Device, e.Kind)
	if e.Operation != "" {
		msg += " during " + e.Operation
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *DeviceError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := sentinelFor(e.Kind); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewDeviceError creates a device-scoped error
func NewDeviceError(device string, kind ErrorKind, operation string, err error) *DeviceError {
	return &DeviceError{
		Device:    device,
		Kind:      kind,
		Operation: operation,
		Err:       err,
	}
}

// KindOf returns the failure kind of err, or "" if err is not a DeviceError
// and does not wrap one of the kind sentinels.
func KindOf(err error) ErrorKind {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Kind
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return ""
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
