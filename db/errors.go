package db

import (
	"errors"

	"github.com/lib/pq"
)

const (
	postgresUniqueValueViolationErrorCode = "23505"
)

// ErrDuplicateCode means a different ticket already holds the code within
// the event. Re-inserting the same ticket id is silently idempotent instead.
var ErrDuplicateCode = errors.New("ticket code already taken for this event")

func isErrorUniqueViolation(err error) bool {
	var psqlErr *pq.Error
	return errors.As(err, &psqlErr) && psqlErr.Code == postgresUniqueValueViolationErrorCode
}
