// Package errors provides structured error handling for the example pipeline.
//
// Every failure raised while converting cells, assembling examples or
// producing batches is an *Error carrying an ErrorType, so callers can branch
// with IsType instead of matching message text. Row level failures always
// record the offending row key under the "row_key" detail.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments and validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents malformed source data
	ErrorTypeData ErrorType = "data"
	// ErrorTypeCapability represents operations that are not supported
	ErrorTypeCapability ErrorType = "capability"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeQuery represents query execution errors
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeMissingValue represents a missing cell where a value was required
	ErrorTypeMissingValue ErrorType = "missing_value"
	// ErrorTypeUnsupportedType represents a source/destination pair without a converter
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	// ErrorTypeConversion represents a converter that failed while executing
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeLengthMismatch represents an assembled vector with the wrong length
	ErrorTypeLengthMismatch ErrorType = "length_mismatch"
	// ErrorTypeVocabulary represents an absent vocabulary or an unknown label
	ErrorTypeVocabulary ErrorType = "vocabulary"
	// ErrorTypeExhausted represents a read past the end of an iterator
	ErrorTypeExhausted ErrorType = "exhausted"
)

// Detail keys shared by the row level error constructors.
const (
	DetailRowKey          = "row_key"
	DetailSourceType      = "source_type"
	DetailDestinationType = "destination_type"
	DetailExpected        = "expected"
	DetailActual          = "actual"
	DetailColumn          = "column"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Annotate returns a copy of the outermost structured error in err's chain
// with the detail added, leaving the original untouched. Plain errors are
// wrapped as ErrorTypeInternal.
func Annotate(err error, key string, value interface{}) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return Wrap(err, ErrorTypeInternal, "unexpected error").WithDetail(key, value)
	}
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Detail returns a detail value and whether it was set.
func (e *Error) Detail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type. Only the outermost
// structured error in the chain is inspected.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost structured error, or
// ErrorTypeInternal for plain errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// RowKey returns the row key recorded on a row level error.
func RowKey(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	v, ok := e.Detail(DetailRowKey)
	if !ok {
		return "", false
	}
	key, ok := v.(string)
	return key, ok
}

// Is and As re-export the standard library helpers so callers only import
// this package.
var (
	Is = errors.Is
	As = errors.As
)

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
