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
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeDuplicateKey           Code = "DUPLICATE_KEY"
	CodeDuplicateName          Code = "DUPLICATE_NAME"
	CodeDuplicateTransaction   Code = "DUPLICATE_TRANSACTION"
	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeLockedRecord           Code = "LOCKED_RECORD"
	CodeCodeGeneration         Code = "CODE_GENERATION"
	CodeTimeout                Code = "TIMEOUT"
)

// Metadata describes how a code surfaces at the HTTP boundary. Retryable
// means resending the same request may succeed.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	permanent = false
	transient = true
	withInfo  = true
	noInfo    = false
)

func meta(status int, retry bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retry, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, permanent, "validation failed", withInfo),
	CodeUnauthorized:  meta(http.StatusUnauthorized, permanent, "authentication required", noInfo),
	CodeForbidden:     meta(http.StatusForbidden, permanent, "access denied", noInfo),
	CodeNotFound:      meta(http.StatusNotFound, permanent, "resource not found", noInfo),
	CodeConflict:      meta(http.StatusConflict, permanent, "conflict detected", noInfo),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, permanent, "state transition disallowed", withInfo),
	CodeRateLimit:     meta(http.StatusTooManyRequests, permanent, "rate limit exceeded", noInfo),
	CodeInternal:      meta(http.StatusInternalServerError, transient, "internal server error", noInfo),
	CodeDependency:    meta(http.StatusServiceUnavailable, transient, "dependency unavailable", withInfo),

	CodeDuplicateKey:           meta(http.StatusConflict, permanent, "record already exists", withInfo),
	CodeDuplicateName:          meta(http.StatusConflict, permanent, "name already in use", withInfo),
	CodeDuplicateTransaction:   meta(http.StatusConflict, permanent, "transaction number already recorded", withInfo),
	CodeInsufficientStock:      meta(http.StatusConflict, permanent, "insufficient stock", withInfo),
	CodeConcurrentModification: meta(http.StatusConflict, transient, "record was modified concurrently", withInfo),
	CodeLockedRecord:           meta(http.StatusLocked, permanent, "record can no longer be edited", withInfo),
	CodeCodeGeneration:         meta(http.StatusInternalServerError, permanent, "could not allocate a unique code", noInfo),
	CodeTimeout:                meta(http.StatusGatewayTimeout, transient, "operation timed out", noInfo),
}

// MetadataFor falls back to INTERNAL_ERROR for codes missing from the table.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
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
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
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

// WithDetails returns a copy of e carrying details; e itself is unchanged.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.details = details
	return &cp
}

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

// IsCode reports whether err carries the given code anywhere in its chain,
// including causes wrapped by another *Error.
func IsCode(err error, code Code) bool {
	for typed := As(err); typed != nil; typed = As(typed.cause) {
		if typed.code == code {
			return true
		}
	}
	return false
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Retryable reports whether err's code marks it as transient. Untyped errors
// count as internal and therefore retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}
