package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrCategoryNotFound = errors.New("category not found")
	// ErrValueOutOfRange reports a number too large for its column.
	ErrValueOutOfRange = errors.New("numeric value out of range")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNumericOutOfRange   = "22003"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
