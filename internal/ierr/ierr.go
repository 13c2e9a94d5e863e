// Package ierr defines the error kinds raised across the instrument control
// core: validation, protocol, and driver failures all carry enough context
// (component, command, raw response) to be logged or matched with errors.Is.
package ierr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	Validation Kind = iota
	Parse
	ProtocolViolation
	PositionVerify
	Timeout
	Driver
	Cancelled
	InvariantBroken
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Parse:
		return "parse"
	case ProtocolViolation:
		return "protocol-violation"
	case PositionVerify:
		return "position-verify"
	case Timeout:
		return "timeout"
	case Driver:
		return "driver-error"
	case Cancelled:
		return "cancelled"
	case InvariantBroken:
		return "invariant-broken"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across this module. Component
// names the device or channel that failed ("valve_a1", "z_obj", ...);
// Command, when non-empty, is the raw command string issued; Response, when
// non-empty, is the raw bytes received before parsing failed.
type Error struct {
	Kind      Kind
	Component string
	Command   string
	Response  string
	Err       error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Component, e.Kind)
	if e.Command != "" {
		s += fmt.Sprintf(" (cmd %q)", e.Command)
	}
	if e.Response != "" {
		s += fmt.Sprintf(" (resp %q)", e.Response)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ierr.Validation) style matching against a bare Kind
// wrapped as an error via New(kind, "", "", "", nil).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Component == "" || t.Component == e.Component)
	}
	return false
}

// New constructs an *Error. component identifies the failing device/channel.
func New(kind Kind, component, command, response string, cause error) error {
	return &Error{Kind: kind, Component: component, Command: command, Response: response, Err: cause}
}

// Of reports whether err (or any error it wraps) has the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
