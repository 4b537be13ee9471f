// Package apperr defines the error kinds shared by the service layers.
// Stores keep returning plain or sentinel errors; services classify them into
// an *Error so the HTTP handlers and the WhatsApp orchestrator can decide what
// the caller sees.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation Kind = "validation_failure"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindExternal   Kind = "external_service_failure"
	KindInternal   Kind = "internal_failure"
)

// Error is a classified error. Op names the operation that failed, Msg is safe to show to callers.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == k
}

// Message returns the caller-safe message of err, falling back to the kind.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return string(KindOf(err))
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(op, msg string) error { return &Error{Kind: KindNotFound, Op: op, Msg: msg} }

func Validation(op, msg string) error { return &Error{Kind: KindValidation, Op: op, Msg: msg} }

func Forbidden(op, msg string) error { return &Error{Kind: KindForbidden, Op: op, Msg: msg} }

func Conflict(op, msg string) error { return &Error{Kind: KindConflict, Op: op, Msg: msg} }

// External wraps a failure of a remote dependency (payment gateway, messaging API, LLM).
func External(op string, err error) error { return &Error{Kind: KindExternal, Op: op, Err: err} }

// Internal wraps an unexpected failure.
func Internal(op string, err error) error { return &Error{Kind: KindInternal, Op: op, Err: err} }
