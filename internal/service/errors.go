package service

import (
	"errors"
	"fmt"

	"task-tracker/internal/repository"
)

// Error taxonomy of the counter engine. NotFound and Conflict are expected business
// outcomes; StorageUnavailable is retryable and guarantees nothing was written.
var (
	ErrNotFound = errors.New("not found")

	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrConflict is returned when registering a user id that already exists.
	ErrConflict = errors.New("already exists")

	// ErrStorageUnavailable wraps connection loss, timeouts and lock contention.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvariantViolation marks a counter that would have gone negative. It is logged and
	// clamped, never returned to callers.
	ErrInvariantViolation = errors.New("counter invariant violated")
)

// Kind names returned by Kind.
const (
	KindUserNotFound       = "user_not_found"
	KindTaskNotFound       = "task_not_found"
	KindConflict           = "conflict"
	KindStorageUnavailable = "storage_unavailable"
	KindInternal           = "internal"
	KindOK                 = "ok"
)

// Kind returns the stable name of the error kind for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrTaskNotFound):
		return KindTaskNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	default:
		return KindInternal
	}
}

// storageError turns a repository failure into a service error. Sentinels already produced
// by the engine pass through unchanged.
func storageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrStorageUnavailable):
		return err
	case repository.IsUnavailable(err):
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
