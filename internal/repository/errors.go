package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Storage errors shared by the repositories. Callers match them with errors.Is.
var (
	// ErrNotFound is returned when the keyed row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert collides with an existing primary key.
	ErrDuplicate = errors.New("record already exists")

	// ErrForeignKey is returned when a row references a missing parent.
	ErrForeignKey = errors.New("referenced record does not exist")

	// ErrUnavailable covers I/O failures against the store: lost connections, timeouts,
	// lock contention that outlived the busy timeout, serialization failures.
	// The surrounding transaction has been rolled back and the call may be retried.
	ErrUnavailable = errors.New("storage unavailable")
)

// Postgres SQLSTATE codes the repositories care about.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgLockNotAvailable     = "55P03"
	pgAdminShutdown        = "57P01"
)

// classify maps driver-level errors onto the sentinel errors above, keeping the original
// error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrForeignKey), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", ErrForeignKey, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case pgErr.Code == pgForeignKeyViolation:
			return fmt.Errorf("%w: %w", ErrForeignKey, err)
		case pgErr.Code == pgSerializationFailure, pgErr.Code == pgDeadlockDetected,
			pgErr.Code == pgQueryCanceled, pgErr.Code == pgLockNotAvailable,
			pgErr.Code == pgAdminShutdown, strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen,
			sqlite3.ErrFull, sqlite3.ErrInterrupt:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case sqlite3.ErrConstraint:
			switch liteErr.ExtendedCode {
			case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
				return fmt.Errorf("%w: %w", ErrDuplicate, err)
			case sqlite3.ErrConstraintForeignKey:
				return fmt.Errorf("%w: %w", ErrForeignKey, err)
			}
		}
	}
	return err
}

// IsUnavailable reports whether err is a retryable storage failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
