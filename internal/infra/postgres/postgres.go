package postgres

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// validID reports whether id can be compared against a uuid column without
// Postgres rejecting the cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
