package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the kind of a failure.
type ErrorType string

const (
	// Ingestion errors
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	ErrorTypeOversizeFile    ErrorType = "oversize_file"
	ErrorTypeDecodeFailure   ErrorType = "decode_failure"

	// Compression errors
	ErrorTypeEncodeFailure ErrorType = "encode_failure"

	// Lookup and input errors
	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeInvalid  ErrorType = "invalid"

	// System errors
	ErrorTypeStorage  ErrorType = "storage"
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error codes reported alongside the type.
const (
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeOversizeFile    = "OVERSIZE_FILE"
	CodeDecodeFailure   = "DECODE_FAILURE"
	CodeEncodeFailure   = "ENCODE_FAILURE"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidField    = "INVALID_FIELD"
	CodeStorageFailure  = "STORAGE_FAILURE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return msg + ": " + e.InnerError.Error()
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithCode replaces the code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// Detail returns a detail value, or nil.
func (e *AppError) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// Is matches another *AppError of the same type.
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		Message:    err.Error(),
		InnerError: err,
	}
}

// Wrap wraps an error with a specific type
func Wrap(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// TypeOf returns the ErrorType found in err's chain, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	return errors.Is(err, &AppError{Type: errType})
}

// NewUnsupportedType reports a file whose declared type is not accepted.
func NewUnsupportedType(file, mimeType string) *AppError {
	return New(ErrorTypeUnsupportedType, fmt.Sprintf("%s is not a supported image format", file)).
		WithCode(CodeUnsupportedType).
		WithDetail("file", file).
		WithDetail("type", mimeType)
}

// NewOversizeFile reports a file larger than the accepted limit.
func NewOversizeFile(file string, size, limit int64) *AppError {
	return New(ErrorTypeOversizeFile, fmt.Sprintf("%s exceeds the %d MB size limit", file, limit/(1024*1024))).
		WithCode(CodeOversizeFile).
		WithDetail("file", file).
		WithDetail("size", size).
		WithDetail("limit", limit)
}

// NewDecodeFailure reports accepted bytes that did not yield a pixel surface.
func NewDecodeFailure(file string, err error) *AppError {
	return Wrap(err, ErrorTypeDecodeFailure, fmt.Sprintf("failed to decode %s", file)).
		WithCode(CodeDecodeFailure).
		WithDetail("file", file)
}

// NewEncodeFailure reports an image whose re-encode produced no usable blob.
func NewEncodeFailure(file string, err error) *AppError {
	return Wrap(err, ErrorTypeEncodeFailure, fmt.Sprintf("failed to compress %s", file)).
		WithCode(CodeEncodeFailure).
		WithDetail("file", file)
}

// NewNotFound reports a missing resource.
func NewNotFound(resource string, id any) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource)).
		WithCode(CodeNotFound).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewInvalid reports an invalid field value.
func NewInvalid(field string, value any, reason string) *AppError {
	return New(ErrorTypeInvalid, fmt.Sprintf("invalid value for %s: %v", field, value)).
		WithCode(CodeInvalidField).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// NewStorage reports a failed sink operation.
func NewStorage(op string, err error) *AppError {
	return Wrap(err, ErrorTypeStorage, fmt.Sprintf("storage %s failed", op)).
		WithCode(CodeStorageFailure).
		WithDetail("op", op)
}

// NewInternal reports an unexpected failure.
func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message).WithCode(CodeInternalError)
}

// ErrorChain collects errors that did not stop a batch.
type ErrorChain struct {
	errors []*AppError
}

// NewErrorChain creates an empty chain
func NewErrorChain() *ErrorChain {
	return &ErrorChain{}
}

// Add appends an error; nil is ignored.
func (c *ErrorChain) Add(err error) *ErrorChain {
	if err == nil {
		return c
	}
	c.errors = append(c.errors, FromError(err))
	return c
}

// HasErrors reports whether anything was collected.
func (c *ErrorChain) HasErrors() bool {
	return len(c.errors) > 0
}

// Error joins the collected messages.
func (c *ErrorChain) Error() string {
	if len(c.errors) == 0 {
		return ""
	}
	msgs := make([]string, len(c.errors))
	for i, err := range c.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Errors returns the collected errors in insertion order.
func (c *ErrorChain) Errors() []*AppError {
	return c.errors
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (c *ErrorChain) Unwrap() []error {
	errs := make([]error, len(c.errors))
	for i, err := range c.errors {
		errs[i] = err
	}
	return errs
}

// Filter returns the errors of one type.
func (c *ErrorChain) Filter(errType ErrorType) *ErrorChain {
	out := NewErrorChain()
	for _, err := range c.errors {
		if err.Type == errType {
			out.errors = append(out.errors, err)
		}
	}
	return out
}

// Err returns the chain as an error, or nil when empty.
func (c *ErrorChain) Err() error {
	if !c.HasErrors() {
		return nil
	}
	return c
}
