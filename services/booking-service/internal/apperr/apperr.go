// Package apperr is the error taxonomy shared by the HTTP and gRPC surfaces.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
	KindUpstream
)

const CodeSlotUnavailable = "slot_unavailable"

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		if e.Code == "payment_gateway" {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_request", Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

// SlotConflict means the requested time overlaps an appointment that is not canceled.
func SlotConflict() *Error {
	return Conflict(CodeSlotUnavailable, "slot no longer available")
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: msg}
}

func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: "internal", Message: msg, Err: err}
}

func PaymentGateway(err error) *Error {
	return &Error{Kind: KindUpstream, Code: "payment_gateway", Message: "payment provider unavailable", Err: err}
}

// From returns the taxonomy error inside err, treating unknown errors as upstream failures.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Upstream("internal error", err)
}

func IsSlotConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindConflict && e.Code == CodeSlotUnavailable
}

func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
