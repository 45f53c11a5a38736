package workflow

import (
	"errors"
	"fmt"

	"seller-portal/internal/models"
)

// Kind classifies a business failure. Handlers map kinds to status codes.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindExpired    Kind = "expired"
)

var (
	ErrNotFound   = errors.New("order not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("invalid workflow state")
	ErrValidation = errors.New("invalid input")
	ErrExpired    = errors.New("acceptance window expired")
)

// Error is a classified workflow failure.
type Error struct {
	Kind     Kind
	Message  string
	Current  models.WorkflowStatus
	Required models.WorkflowStatus
	Field    string
}

func (e *Error) Error() string {
	if e.Current != "" {
		return fmt.Sprintf("%s (current status: %s)", e.Message, e.Current)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Field)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindForbidden:
		return ErrForbidden
	case KindConflict:
		return ErrConflict
	case KindValidation:
		return ErrValidation
	case KindExpired:
		return ErrExpired
	}
	return nil
}

func NotFound(orderID string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("order %s not found", orderID)}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Conflict(message string, current, required models.WorkflowStatus) *Error {
	return &Error{Kind: KindConflict, Message: message, Current: current, Required: required}
}

func Invalid(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

func Expired(current models.WorkflowStatus) *Error {
	return &Error{Kind: KindExpired, Message: "acceptance window expired", Current: current}
}

// AsError extracts a workflow error from err, if any.
func AsError(err error) (*Error, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}
