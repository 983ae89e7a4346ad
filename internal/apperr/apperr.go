// Package apperr defines the error taxonomy shared by the stores, the session
// handlers and the REST fallback.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthorized means the caller has no valid identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the identity is valid but not a participant of the match.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation means the request payload was rejected (e.g. message content).
	ErrValidation = errors.New("validation error")
	// ErrNotFound means the match or message is missing or inactive.
	ErrNotFound = errors.New("not found")
)

// IsDomain reports whether err belongs to the taxonomy above. Domain errors are
// final; retrying them cannot change the outcome.
func IsDomain(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound)
}

// HTTPStatus maps err to the status code the REST fallback responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code is the short lowercase tag used in socket error events.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
