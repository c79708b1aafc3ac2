package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of any transport concern.
type Kind int

const (
	// KindValidation indicates malformed or missing input.
	KindValidation Kind = iota
	// KindConflict indicates a duplicate identity (username or email taken).
	KindConflict
	// KindNotFound indicates the referenced record does not exist.
	KindNotFound
	// KindInvalidCredentials indicates a failed login attempt.
	KindInvalidCredentials
	// KindUnauthorized indicates a missing or invalid access token.
	KindUnauthorized
	// KindForbidden indicates a well-formed refresh token rejected by
	// server-side state (rotated or cleared).
	KindForbidden
	// KindInternal indicates an unexpected downstream failure.
	KindInternal
)

// Error carries a kind, a stable user-facing message, and an optional cause.
// The cause is for logs only and is never returned to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an Error with the given kind and user-facing message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an internal Error around an unexpected downstream failure.
func Wrap(err error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf extracts the user-facing message from err. Unclassified errors
// map to a generic message so internal detail never leaks.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus is the single boundary translator from error kind to status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
