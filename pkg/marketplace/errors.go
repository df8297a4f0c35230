package marketplace

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
)

// ErrorKind is the closed classification of marketplace failures.
type ErrorKind string

const (
	// KindInvalidParameter is a local validation failure, raised before any
	// network call.
	KindInvalidParameter ErrorKind = "invalid_parameter"

	// KindRemoteUnavailable covers network failures, timeouts, and 5xx
	// responses. This is the only kind the client retries.
	KindRemoteUnavailable ErrorKind = "remote_unavailable"

	// KindRateLimited covers HTTP 429 and the remote's rate-limit envelope.
	// Surfaced distinctly so callers can back off; never retried here.
	KindRateLimited ErrorKind = "rate_limited"

	// KindPermissionDenied covers HTTP 403 and the remote's permission
	// envelope. Not retryable.
	KindPermissionDenied ErrorKind = "permission_denied"

	// KindRemoteProtocol covers any other non-success envelope, with the
	// remote's raw code and message attached for diagnostics.
	KindRemoteProtocol ErrorKind = "remote_protocol"
)

// ErrContextCancelled is returned when the context is cancelled during
// retry backoff.
var ErrContextCancelled = errors.New("context cancelled")

// Error is a marketplace failure with structured context. Kind is always
// set; the remaining fields are filled as far as the failure mode allows.
type Error struct {
	Kind          ErrorKind
	StatusCode    int
	RemoteCode    int
	RemoteSubCode string
	Message       string
	Err           error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("marketplace %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.RemoteCode != 0 || e.RemoteSubCode != "" {
		msg += fmt.Sprintf(" [remote %d %s]", e.RemoteCode, e.RemoteSubCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the status code an HTTP layer should
// answer with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidParameter:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a
// marketplace error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// retryable reports whether err should be retried. Only remote_unavailable
// failures qualify, and not when the circuit breaker produced them: an open
// breaker means the remote is already known to be down, so further attempts
// within the same call are pointless.
func retryable(err error) bool {
	if KindOf(err) != KindRemoteUnavailable {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return true
}
