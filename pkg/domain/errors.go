package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so transport layers can map them to status codes.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidState ErrorKind = "invalid_state"
	KindForbidden    ErrorKind = "forbidden"
	KindCapacity     ErrorKind = "capacity"
	KindPayment      ErrorKind = "payment"
)

// Error is a typed domain error carrying a machine-readable kind.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewValidationError reports invalid input or configuration, rejected before any state mutation.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError reports a concurrent-modification conflict (optimistic lock failure).
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewInvalidStateError reports an illegal lifecycle transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewForbiddenError reports an authorization failure.
func NewForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NewCapacityError reports that a time slot cannot hold the requested seats.
// This is a user-facing "not enough spots" condition, not a system error.
func NewCapacityError(message string) *Error {
	return &Error{Kind: KindCapacity, Message: message}
}

// NewPaymentError reports a processor-call failure. The booking stays pending
// and unpaid, so the caller may safely retry creation.
func NewPaymentError(message string) *Error {
	return &Error{Kind: KindPayment, Message: message}
}

// KindOf returns the error's kind, or an empty string for non-domain errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
