package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || HasSQLState(err, sqlStateUniqueViolation) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return true
	case strings.Contains(msg, "Error 1062"):
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	}
	return false
}

// IsSerializationFailure reports SQLSTATE 40001.
func IsSerializationFailure(err error) bool {
	return HasSQLState(err, sqlStateSerializationFailure)
}

// IsDeadlock reports SQLSTATE 40P01 (and the MySQL equivalent).
func IsDeadlock(err error) bool {
	if HasSQLState(err, sqlStateDeadlockDetected) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "Error 1213")
}

// IsLockTimeout reports SQLSTATE 55P03 (lock_timeout / NOWAIT).
func IsLockTimeout(err error) bool {
	return HasSQLState(err, sqlStateLockNotAvailable)
}

// IsRetryable reports whether a transaction aborted by the store may be
// replayed as a whole.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsSerializationFailure(err) || IsDeadlock(err) || IsLockTimeout(err) {
		return true
	}
	// sqlite surfaces writer contention as SQLITE_BUSY.
	return strings.Contains(err.Error(), "database is locked")
}

func HasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
