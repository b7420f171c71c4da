// Package errors provides structured error handling for the object-directory
// validators and the storage-encoding optimizer.
//
// Errors carry a category (ErrorType), a message, an optional cause, free-form
// key-value details, and the call stack captured at the point of creation.
// Validators fail fast: the first detected violation is wrapped once per layer
// and propagated outward with enough path context to locate the offending
// file or field.
//
// Example:
//
//	meta, err := readDocument(path)
//	if err != nil {
//	    return errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "failed to read object metadata").
//	        WithDetail("path", path)
//	}
package errors

import (
	"errors"
	"runtime"
	"sort"

	stringpool "github.com/ArtifactDB/alabaster-go/pkg/strings"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeMalformedMetadata represents unreadable or incomplete metadata documents
	ErrorTypeMalformedMetadata ErrorType = "malformed_metadata"
	// ErrorTypeUnknownType represents lookups of a type tag with no registry entry at all
	ErrorTypeUnknownType ErrorType = "unknown_type"
	// ErrorTypeCapability represents a known type tag missing a required handler
	ErrorTypeCapability ErrorType = "capability"
	// ErrorTypeStructural represents violations of the directory tree shape
	// (nesting, duplicate references, orphans, flag mismatches, unknown files)
	ErrorTypeStructural ErrorType = "structural"
	// ErrorTypeRedirection represents invalid redirection records
	ErrorTypeRedirection ErrorType = "redirection"
	// ErrorTypeEncoding represents non-representable values or invalid declared encodings
	ErrorTypeEncoding ErrorType = "encoding"
	// ErrorTypeConflict represents registration conflicts
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface. Details are rendered as sorted
// key=value pairs after the message.
func (e *Error) Error() string {
	message := e.Message
	if len(e.Details) > 0 {
		message = stringpool.Sprintf("%s (%s)", message, e.detailString())
	}
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, message)
}

func (e *Error) detailString() string {
	keys := make([]string, 0, len(e.Details))
	for key := range e.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder := stringpool.GetBuilder(stringpool.Small)
	defer stringpool.PutBuilder(builder, stringpool.Small)

	for i, key := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(stringpool.ValueToString(e.Details[key]))
	}
	return stringpool.Clone(builder.String())
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. This method can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the call
// stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the
// original error as the cause. If the error is already a structured Error,
// its stack trace is preserved. Returns nil if the input error is nil.
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

// IsType checks if the error is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the category of a structured error, or ErrorTypeInternal
// for plain errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
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
