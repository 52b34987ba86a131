package api

import (
	"errors"
	"net/http"

	"task-tracker/internal/service"
)

// errInvalidRequest marks a request that failed decoding or validation.
var errInvalidRequest = errors.New("invalid request")

const (
	kindInvalidRequest = "invalid_request"
	kindRateLimited    = "rate_limited"
)

// MapErrorToStatusCode maps engine errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SafeMessage returns a client-facing message that never includes storage details.
func SafeMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, service.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, service.ErrConflict):
		return "User with that ID already exists"
	case errors.Is(err, service.ErrStorageUnavailable):
		return "Storage is temporarily unavailable, please retry"
	default:
		return "An unexpected error occurred"
	}
}

func errorKind(err error) string {
	if errors.Is(err, errInvalidRequest) {
		return kindInvalidRequest
	}
	return service.Kind(err)
}
