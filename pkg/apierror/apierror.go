package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags a failure. It is the only piece of an error that crosses the
// gateway/service boundary.
type Kind string

const (
	KindUserExists                   Kind = "UserExists"
	KindInvalidCredentials           Kind = "InvalidCredentials"
	KindUserNotFound                 Kind = "UserNotFound"
	KindInvalidOrExpiredRefreshToken Kind = "InvalidOrExpiredRefreshToken"
	KindInvalidTokenType             Kind = "InvalidTokenType"
	KindValidationFailed             Kind = "ValidationFailed"
	KindInternalError                Kind = "InternalError"

	// Raised by the gateway only; never accepted from the wire.
	KindAuthenticationRequired Kind = "AuthenticationRequired"
	KindRateLimited            Kind = "RateLimited"
	KindUpstreamTimeout        Kind = "UpstreamTimeout"
	KindUpstreamUnavailable    Kind = "UpstreamUnavailable"
)

var defaultMessages = map[Kind]string{
	KindUserExists:                   "User with this email already exists",
	KindInvalidCredentials:           "Invalid credentials",
	KindUserNotFound:                 "User not found",
	KindInvalidOrExpiredRefreshToken: "Invalid or expired refresh token",
	KindInvalidTokenType:             "Invalid token type",
	KindValidationFailed:             "Validation failed",
	KindInternalError:                "Internal server error",
	KindAuthenticationRequired:       "Unauthorized",
	KindRateLimited:                  "Too many requests",
	KindUpstreamTimeout:              "Authentication service timed out",
	KindUpstreamUnavailable:          "Authentication service unavailable",
}

// DefaultMessage returns the public-safe message for the kind.
func (k Kind) DefaultMessage() string {
	if msg, ok := defaultMessages[k]; ok {
		return msg
	}
	return defaultMessages[KindInternalError]
}

// CrossesBoundary reports whether the authentication service may raise k.
func (k Kind) CrossesBoundary() bool {
	switch k {
	case KindUserExists,
		KindInvalidCredentials,
		KindUserNotFound,
		KindInvalidOrExpiredRefreshToken,
		KindInvalidTokenType,
		KindValidationFailed,
		KindInternalError:
		return true
	default:
		return false
	}
}

// HTTPStatus maps the kind onto its HTTP status class.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUserExists:
		return http.StatusConflict
	case KindInvalidCredentials,
		KindInvalidOrExpiredRefreshToken,
		KindInvalidTokenType,
		KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindUserNotFound:
		return http.StatusNotFound
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ParseKind resolves a wire tag into a boundary kind.
func ParseKind(raw string) (Kind, bool) {
	kind := Kind(raw)
	if !kind.CrossesBoundary() {
		return "", false
	}
	return kind, true
}

type APIError struct {
	Kind       Kind              `json:"error"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"statusCode"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *APIError by kind.
func (e *APIError) Is(target error) bool {
	var other *APIError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Kind == other.Kind
}

// New builds an error carrying the kind's default message.
func New(kind Kind) *APIError {
	return &APIError{Kind: kind, Message: kind.DefaultMessage(), HTTPStatus: kind.HTTPStatus()}
}

// WithMessage builds an error with a caller supplied public message.
func WithMessage(kind Kind, message string) *APIError {
	if message == "" {
		message = kind.DefaultMessage()
	}
	return &APIError{Kind: kind, Message: message, HTTPStatus: kind.HTTPStatus()}
}

// Wrap attaches an internal cause. The cause is kept for logs and never
// serialized.
func Wrap(kind Kind, cause error) *APIError {
	e := New(kind)
	e.cause = cause
	return e
}

// Validation builds a ValidationFailed error with per-field messages.
func Validation(fields map[string]string) *APIError {
	e := New(KindValidationFailed)
	if len(fields) > 0 {
		e.Details = fields
	}
	return e
}

// Internal wraps an unexpected failure into the generic internal error.
func Internal(cause error) *APIError {
	return Wrap(KindInternalError, cause)
}

// From normalizes any error into an *APIError. Errors that are not already
// typed become InternalError with the original kept as cause.
func From(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return Internal(err)
}

// Sentinels for errors.Is comparisons.
var (
	ErrUserExists                   = New(KindUserExists)
	ErrInvalidCredentials           = New(KindInvalidCredentials)
	ErrUserNotFound                 = New(KindUserNotFound)
	ErrInvalidOrExpiredRefreshToken = New(KindInvalidOrExpiredRefreshToken)
	ErrInvalidTokenType             = New(KindInvalidTokenType)
)
