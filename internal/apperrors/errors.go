package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, machine-distinguishable failure category. Every error
// crossing the HTTP boundary carries exactly one Kind; callers branch on the
// Kind, never on the message text.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindInvalidToken       Kind = "invalid_token"
	KindExpiredToken       Kind = "expired_token"
	KindUnauthenticated    Kind = "unauthenticated"
	KindUnauthorized       Kind = "unauthorized"
	KindNotAMember         Kind = "not_a_member"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

// Error pairs a Kind with a human-readable detail message. Unauthorized
// errors additionally record the capability that was missing.
type Error struct {
	Kind       Kind
	Message    string
	Capability string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes two apperrors equal when their Kind matches, so callers can test
// with errors.Is against the kind constructors below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func InvalidCredentials(message string) *Error {
	return New(KindInvalidCredentials, message)
}

func InvalidToken(cause error) *Error {
	return Wrap(KindInvalidToken, "invalid token", cause)
}

func ExpiredToken() *Error {
	return New(KindExpiredToken, "token has expired")
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

func Unauthorized(capability string) *Error {
	return &Error{
		Kind:       KindUnauthorized,
		Message:    fmt.Sprintf("missing capability %s", capability),
		Capability: capability,
	}
}

func NotAMember(message string) *Error {
	return New(KindNotAMember, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal error", cause)
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal
// for errors that never passed through this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the status code used at the HTTP boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidCredentials, KindInvalidToken, KindExpiredToken, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized, KindNotAMember:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the human-readable message for the response body. Internal
// errors are masked so database detail never leaks to clients.
func Detail(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal server error"
}
