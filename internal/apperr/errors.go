package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNoConverter  = errors.New("no converter")
	ErrInvalidInput = errors.New("invalid input")
	ErrFormat       = errors.New("format error")
)

// FormatError reports content that cannot be transformed as requested.
// It unwraps to ErrFormat and to the underlying cause, if any.
type FormatError struct {
	Op     string
	Detail string
	Err    error
}

// Formatf builds a FormatError for op with a formatted detail message.
func Formatf(op, format string, args ...any) *FormatError {
	return &FormatError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string {
	msg := e.Op + ": " + e.Detail
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}
