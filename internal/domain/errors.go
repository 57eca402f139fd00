package domain

import (
	"errors"
	"fmt"
)

// ErrorType is the category of a pipeline failure.
type ErrorType string

const (
	ErrorTypeMissingMetadata ErrorType = "missing_metadata"
	ErrorTypeTemplate        ErrorType = "template"
	ErrorTypeGeneration      ErrorType = "generation"
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeCancelled       ErrorType = "cancelled"
)

// Error is a typed pipeline error. Two errors match under errors.Is when
// their types are equal.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewError creates a typed error.
func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{Type: errType, Message: message, Err: err}
}

var (
	ErrMissingMetadata = NewError(ErrorTypeMissingMetadata, "retrieved chunk lacks metadata", nil)
	ErrTemplate        = NewError(ErrorTypeTemplate, "malformed prompt template", nil)
	ErrGeneration      = NewError(ErrorTypeGeneration, "generation failed", nil)
	ErrInvalidArgument = NewError(ErrorTypeInvalidArgument, "invalid argument", nil)
	ErrCancelled       = NewError(ErrorTypeCancelled, "request cancelled", nil)
)

func MissingMetadata(message string) error {
	return NewError(ErrorTypeMissingMetadata, message, nil)
}

func TemplateError(message string) error {
	return NewError(ErrorTypeTemplate, message, nil)
}

func GenerationError(err error) error {
	return NewError(ErrorTypeGeneration, "language model call failed", err)
}

func InvalidArgument(message string) error {
	return NewError(ErrorTypeInvalidArgument, message, nil)
}

func Cancelled(err error) error {
	return NewError(ErrorTypeCancelled, "generation cancelled", err)
}

// TypeOf returns the ErrorType of err, or "" when err is not a pipeline error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}
