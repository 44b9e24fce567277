package apperr

import (
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeOTPNotRequested Code = "OTP_NOT_REQUESTED"
	CodeOTPExpired      Code = "OTP_EXPIRED"
	CodeOTPInvalid      Code = "OTP_INVALID"
	CodeRateLimit       Code = "RATE_LIMIT_EXCEEDED"
	CodeDependency      Code = "DEPENDENCY_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Metadata describes how a Code is presented to clients.
type Metadata struct {
	HTTPStatus    int
	PublicMessage string
	// ExposeMessage allows the specific error message through to the client.
	ExposeMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:      {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", ExposeMessage: true},
	CodeUnauthorized:    {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
	CodeForbidden:       {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true},
	CodeNotFound:        {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
	CodeConflict:        {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ExposeMessage: true},
	CodeOTPNotRequested: {HTTPStatus: http.StatusBadRequest, PublicMessage: "no otp requested", ExposeMessage: true},
	CodeOTPExpired:      {HTTPStatus: http.StatusBadRequest, PublicMessage: "otp expired", ExposeMessage: true},
	CodeOTPInvalid:      {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid otp", ExposeMessage: true},
	CodeRateLimit:       {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "too many requests", ExposeMessage: false},
	CodeDependency:      {HTTPStatus: http.StatusBadGateway, PublicMessage: "dependency unavailable", ExposeMessage: true},
	CodeInternal:        {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", ExposeMessage: false},
}

// MetadataFor returns the presentation metadata, defaulting to internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed error every service returns.
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

// Internal wraps an unexpected failure; its message never reaches clients.
func Internal(err error, message string) *Error {
	return Wrap(CodeInternal, err, message)
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
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts a typed error from err's chain.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsUniqueViolation reports whether err is a postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgxErr.Code == "23505"
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
