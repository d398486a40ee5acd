// Package errors carries a stable code on every failure that can reach an
// HTTP client or a webhook sender. The code decides the status, what the
// caller may see, and whether the provider should retry.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeSignature     Code = "INVALID_SIGNATURE"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInsufficient  Code = "INSUFFICIENT_CREDITS"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// exposure controls which parts of an Error leave the process.
type exposure uint8

const (
	exposeMessage exposure = 1 << iota
	exposeDetails
)

// Metadata is the HTTP face of a code.
type Metadata struct {
	HTTPStatus int
	// PublicMessage replaces the error's own message unless ExposeMessage.
	PublicMessage string
	ExposeMessage bool
	ExposeDetails bool
}

func meta(status int, public string, exp exposure) Metadata {
	return Metadata{
		HTTPStatus:    status,
		PublicMessage: public,
		ExposeMessage: exp&exposeMessage != 0,
		ExposeDetails: exp&exposeDetails != 0,
	}
}

var codes = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", exposeMessage|exposeDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", exposeMessage),
	CodeSignature:     meta(http.StatusUnauthorized, "invalid signature", exposeMessage),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", exposeMessage),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", exposeMessage|exposeDetails),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", exposeMessage|exposeDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", exposeMessage),
	CodeInsufficient:  meta(http.StatusPaymentRequired, "insufficient credits", exposeMessage|exposeDetails),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", 0),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", exposeDetails),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := codes[code]; ok {
		return m
	}
	return codes[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Insufficient reports a consume that would take the balance below zero.
func Insufficient(cause error, balance, required int) *Error {
	return Wrap(CodeInsufficient, cause, "insufficient credits").WithDetails(map[string]any{
		"current_balance": balance,
		"required":        required,
	})
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// Error omits the cause; Unwrap exposes it to errors.Is and errors.As.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	return As(err).Code()
}

// StatusOf is the HTTP status err maps to.
func StatusOf(err error) int {
	return MetadataFor(CodeOf(err)).HTTPStatus
}

// Public is the client-safe rendering of an error.
type Public struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ToPublic renders err for a client. Untyped errors render as CodeInternal.
func ToPublic(err error) (int, Public) {
	typed := As(err)
	m := MetadataFor(typed.Code())
	out := Public{Code: typed.Code(), Message: m.PublicMessage}
	if typed == nil {
		return m.HTTPStatus, out
	}
	if m.ExposeMessage && typed.Message() != "" {
		out.Message = typed.Message()
	}
	if m.ExposeDetails {
		out.Details = typed.Details()
	}
	return m.HTTPStatus, out
}
