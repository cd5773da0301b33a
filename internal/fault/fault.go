// Package fault defines the error taxonomy shared by every component and the
// mapping from error class to HTTP status. Components wrap these sentinels
// with fmt.Errorf("component.operation: %w", ...) so the class survives
// propagation while the context stays diagnosable.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation indicates a malformed request or bad credentials.
	ErrValidation = errors.New("fault.validation")
	// ErrNotFound indicates the referenced account, link, or record does not exist.
	ErrNotFound = errors.New("fault.not_found")
	// ErrTokenInvalid indicates a structurally invalid, unsigned, or mistyped token.
	ErrTokenInvalid = errors.New("fault.token_invalid")
	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("fault.token_expired")
	// ErrNotModified signals an ETag match; a terminal result, not a failure.
	ErrNotModified = errors.New("fault.not_modified")
	// ErrUpstream indicates a transport or protocol failure against the provider.
	ErrUpstream = errors.New("fault.upstream")
	// ErrStorage indicates a persistence failure.
	ErrStorage = errors.New("fault.storage")
	// ErrInternal wraps anything unclassified; the cause stays attached.
	ErrInternal = errors.New("fault.internal")
)

// Wrap attaches a dotted context code and a class sentinel to cause.
func Wrap(class error, code string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", code, class)
	}
	return fmt.Errorf("%s: %w: %w", code, class, cause)
}

// Internal classifies an unexpected error, preserving the original cause.
// Errors already carrying a class pass through unchanged.
func Internal(code string, cause error) error {
	if Classified(cause) {
		return cause
	}
	return Wrap(ErrInternal, code, cause)
}

// Classified reports whether err already belongs to the taxonomy.
func Classified(err error) bool {
	for _, class := range []error{
		ErrValidation, ErrNotFound, ErrTokenInvalid, ErrTokenExpired,
		ErrNotModified, ErrUpstream, ErrStorage, ErrInternal,
	} {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}

// HTTPStatus maps an error class to its response status. Unclassified errors
// collapse to 500 so internal detail never leaks to the client.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotModified):
		return http.StatusNotModified
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message for an error class.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "token expired"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid token"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrUpstream):
		return "upstream provider unavailable"
	default:
		return "internal server error"
	}
}
