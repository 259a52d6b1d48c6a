package server

import (
	"errors"
	"fmt"

	"github.com/mj1618/tab-bridge/internal/platform"
)

var (
	// ErrResourceUnavailable marks a request whose window or tab is gone.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrInvalidArgs marks missing or malformed request arguments.
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrUnknownCommand is returned by Invoke for unregistered names.
	ErrUnknownCommand = errors.New("unknown command")
)

// Error codes carried in error results.
const (
	CodeResourceUnavailable = "resource_unavailable"
	CodeInvalidArgs         = "invalid_args"
	CodeInternal            = "internal"
)

// ErrorResult is the results payload of a failed command.
type ErrorResult struct {
	Error string `json:"error" yaml:"error"`
	Code  string `json:"code" yaml:"code"`
}

// NewErrorResult classifies err into an error payload.
func NewErrorResult(err error) ErrorResult {
	return ErrorResult{Error: err.Error(), Code: ErrorCode(err)}
}

// ErrorCode returns the wire code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrResourceUnavailable), errors.Is(err, platform.ErrNotFound):
		return CodeResourceUnavailable
	case errors.Is(err, ErrInvalidArgs):
		return CodeInvalidArgs
	default:
		return CodeInternal
	}
}

// unavailable wraps a host error so it carries ErrResourceUnavailable.
func unavailable(err error) error {
	if errors.Is(err, platform.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	return err
}

// panicError is a recovered handler panic.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.value)
}
