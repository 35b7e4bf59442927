package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlRowIsReferenced = 1451
)

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Error implements repositories.RepositoryError for gorm backed repositories.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
	retryable   bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing row.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the error represents a conflicting write.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// IsRetryable reports whether the whole transaction may be retried (deadlock, serialization failure).
func (e *Error) IsRetryable() bool { return e != nil && e.retryable }

// NotFound builds a not-found repository error for op.
func NotFound(op string, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), notFound: true}
}

// Conflict builds a conflict repository error for op.
func Conflict(op string, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), conflict: true}
}

func classify(op string, err error) *Error {
	e := &Error{op: op, err: err}

	var mysqlErr *mysql.MySQLError
	var pgErr *pgconn.PgError
	var netErr net.Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		e.notFound = true
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		e.conflict = true
	case errors.As(err, &mysqlErr):
		switch mysqlErr.Number {
		case mysqlDuplicateEntry, mysqlRowIsReferenced:
			e.conflict = true
		case mysqlDeadlock, mysqlLockWaitTimeout:
			e.conflict = true
			e.retryable = true
		}
	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			e.conflict = true
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			e.conflict = true
			e.retryable = true
		}
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn), errors.As(err, &netErr):
		e.unavailable = true
	}
	return e
}

// WrapError annotates driver errors with repository semantics. Context cancellations pass through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}
	return classify(op, err)
}

// IsRetryable reports whether err is a deadlock or serialization failure.
func IsRetryable(err error) bool {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.IsRetryable()
	}
	return err != nil && classify("", err).retryable
}
