package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed REST call.
type Kind int

const (
	// KindNetwork means the request never reached the server.
	KindNetwork Kind = iota + 1
	// KindAuth is a hard-auth-failure: the session is no longer valid.
	KindAuth
	// KindValidation is a 4xx carrying a business-rule message.
	KindValidation
	// KindServer is a 5xx.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// ErrSessionExpired is returned when a hard-auth-failure could not be
// recovered by refreshing the session. The user must sign in again.
var ErrSessionExpired = errors.New("session expired")

// Error is a failed REST call. Callers use errors.As to inspect it:
//
//	var apiErr *api.Error
//	if errors.As(err, &apiErr) && apiErr.Kind == api.KindValidation { ... }
type Error struct {
	Kind       Kind
	StatusCode int
	Method     string
	Path       string

	// Message is the server-provided explanation, if any.
	Message string

	// Err is the underlying transport error for KindNetwork.
	Err error
}

func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf(
		"%s %s: %s error (%d): %s",
		e.Method, e.Path, e.Kind, e.StatusCode, e.Message,
	)
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// IsAuthError reports whether err (or any error in its chain) is a
// hard-auth-failure.
func IsAuthError(err error) bool { return kindOf(err) == KindAuth }

// IsValidationError reports whether err is a 4xx business-rule rejection.
func IsValidationError(err error) bool { return kindOf(err) == KindValidation }

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool { return kindOf(err) == KindNetwork }

// IsServerError reports whether err is a 5xx.
func IsServerError(err error) bool { return kindOf(err) == KindServer }

// IsSessionExpired reports whether err means the user must sign in again.
func IsSessionExpired(err error) bool { return errors.Is(err, ErrSessionExpired) }

// isHardAuthFailure reports whether a response invalidates the session:
// 401, 403, or a message that says so.
func isHardAuthFailure(status int, message string) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "unauthenticated") ||
		strings.Contains(lower, "unauthorized")
}

// classify builds the Error for a non-2xx response.
func classify(method, path string, status int, message string) *Error {
	e := &Error{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Message:    message,
	}
	switch {
	case isHardAuthFailure(status, message):
		e.Kind = KindAuth
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindValidation
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// UserMessage returns a short notice suitable for a transient status line.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsSessionExpired(err) {
		return "Session expired, please sign in again"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "Something went wrong"
	}
	switch apiErr.Kind {
	case KindNetwork:
		return "Cannot reach the server"
	case KindServer:
		return "Server error, please try again"
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Request rejected"
	}
}
