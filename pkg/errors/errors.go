// Package errors carries coded errors across the detection runtime. Codes
// let callers branch on what failed (a symmetric allocation, an aborted
// job) without matching message strings.
package errors

import (
	"errors"
	"fmt"
)

// Error codes used by the runtime.
const (
	CodeUnknown      = "UNKNOWN_ERROR"
	CodeAllocError   = "ALLOC_ERROR"
	CodeAbortError   = "ABORT_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
)

// AppError is an error tagged with a code. Two AppErrors match under
// errors.Is when their codes match.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// New returns a coded error.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf returns a coded error with a formatted message.
func Newf(code string, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// GetErrorCode returns the code of the nearest AppError in err's chain,
// or CodeUnknown when there is none.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
