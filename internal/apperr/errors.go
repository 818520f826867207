// Package apperr defines the error taxonomy shared by the converter packages
// and maps it to process exit codes.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per error class. Typed errors below match them
// through errors.Is regardless of the wrapped cause.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrIO            = errors.New("i/o error")
	ErrValidation    = errors.New("validation error")
	ErrPrecondition  = errors.New("precondition failed")
	ErrParse         = errors.New("parse error")
)

// Exit codes returned by the command line tool.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitIO            = 3
	ExitValidation    = 4
	ExitPrecondition  = 5
	ExitParse         = 6
	ExitUsage         = 64
)

// ConfigurationError reports an unknown modifier kind or a malformed
// configuration value.
type ConfigurationError struct {
	Key     string // configuration key involved, if any
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Key != "" {
		return fmt.Sprintf("configuration error for %s: %s", e.Key, msg)
	}
	return fmt.Sprintf("configuration error: %s", msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// IOError reports a source or destination that could not be read or written.
type IOError struct {
	Operation string // e.g. "open", "read", "write"
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// ValidationError reports a fatal structural problem in a calendar document.
type ValidationError struct {
	Node    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("invalid calendar data in %s: %s", e.Node, e.Message)
	}
	return fmt.Sprintf("invalid calendar data: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PreconditionError reports a pipeline phase invoked out of order or with
// missing inputs. It is a usage error, not a data problem.
type PreconditionError struct {
	Operation string
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Operation, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// ParseError reports malformed calendar data or an unparseable value.
type ParseError struct {
	Format string // e.g. "iCalendar", "timestamp"
	Input  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("failed to parse %s %q: %v", e.Format, e.Input, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ExitCode maps an error to the process exit code. Configuration errors take
// precedence over the parse errors they may wrap.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, ErrPrecondition):
		return ExitPrecondition
	case errors.Is(err, ErrValidation):
		return ExitValidation
	case errors.Is(err, ErrIO):
		return ExitIO
	case errors.Is(err, ErrParse):
		return ExitParse
	default:
		return ExitFailure
	}
}
