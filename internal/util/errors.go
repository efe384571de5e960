// Package util provides utility functions and helpers used throughout acfsync.
// It includes the error taxonomy, exit codes and error rendering for the CLI.
package util

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitStoreLocked  = 3
	ExitIntegrityErr = 4
	ExitConfig       = 5
)

// Sentinel errors shared between packages that must not import each other.
// store wraps these so HandleError can map them without importing store.
var (
	ErrLocked    = errors.New("record store is locked by another process")
	ErrCorrupted = errors.New("record store data is corrupted")
)

// InputError reports a problem with user input: flags, files or JSON content
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError creates an InputError with a formatted message
func NewInputError(format string, args ...interface{}) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a missing or unusable capability, fatal for the command
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ReconciliationError reports the first failure while importing a batch.
// Its message is the underlying failure's message, unchanged.
type ReconciliationError struct {
	Index int
	Key   string
	Err   error
}

func (e *ReconciliationError) Error() string {
	return e.Err.Error()
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for err
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var inputErr *InputError
	var cfgErr *ConfigurationError
	switch {
	case errors.As(err, &inputErr):
		return ExitInvalidInput
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.Is(err, ErrLocked):
		return ExitStoreLocked
	case errors.Is(err, ErrCorrupted):
		return ExitIntegrityErr
	default:
		return ExitError
	}
}

// ExitWithCode exits the program with the specified code and message
func ExitWithCode(code int, format string, args ...interface{}) {
	if format != "" {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	os.Exit(code)
}

// FormatError renders err the way HandleError prints it
func FormatError(err error, context string) string {
	msg := fmt.Sprintf("Error: %v", err)
	if context != "" {
		msg = fmt.Sprintf("Error: %s - %v", context, err)
	}
	if errors.Is(err, ErrCorrupted) {
		msg += "\nRun 'acfsync doctor' to diagnose issues."
	}
	return msg
}

// WriteError writes the rendered error to w and returns the matching exit code
func WriteError(w io.Writer, err error, context string) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(w, FormatError(err, context))
	return ExitCode(err)
}

// HandleError handles errors and exits with appropriate code
func HandleError(err error, context string) {
	if err == nil {
		return
	}
	os.Exit(WriteError(os.Stderr, err, context))
}

// WrapError wraps an error with additional context
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
