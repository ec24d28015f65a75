package models

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindClientInput
	KindAuthRequired
	KindNotFound
	KindConflict
	KindBusinessRule
	KindDependencyShortCircuited
)

func (k ErrorKind) String() string {
	switch k {
	case KindClientInput:
		return "ClientInputError"
	case KindAuthRequired:
		return "AuthRequiredError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	case KindBusinessRule:
		return "BusinessRuleViolation"
	case KindDependencyShortCircuited:
		return "DependencyShortCircuited"
	default:
		return "InternalError"
	}
}

// HTTPStatus maps the kind onto the status code returned to API callers.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindClientInput, KindBusinessRule:
		return http.StatusBadRequest
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDependencyShortCircuited:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the classified error type surfaced by the order service.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
