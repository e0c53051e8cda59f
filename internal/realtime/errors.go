package realtime

import "errors"

// ErrorKind classifies a realtime error for transport mapping. The
// upgrade handler translates kinds to HTTP status codes; the hub
// translates policy failures to ack error codes.
type ErrorKind string

const (
	KindBadRequest   ErrorKind = "bad_request"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindInternal     ErrorKind = "internal"
)

// Error is a kinded error carried across the verifier, policy, and
// façade boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewBadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func NewUnauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func NewForbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewInternal(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

// coerces any error to a kinded realtime error, defaulting to internal
func AsError(err error) *Error {
	var rtErr *Error

	if errors.As(err, &rtErr) {
		return rtErr
	}

	return NewInternal(err.Error())
}
