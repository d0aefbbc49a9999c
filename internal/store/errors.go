package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("conflict")

// ErrInUse is returned when a record cannot be removed because other rows
// still reference it.
var ErrInUse = errors.New("record is still referenced")

// ErrStatusChanged is returned when a compare-and-set status update finds the
// row in a different status than expected.
var ErrStatusChanged = errors.New("status changed concurrently")

// ErrLastMember is returned when a delete would leave a role without any
// user.
var ErrLastMember = errors.New("last member of role")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrConflict
		case pqForeignKeyViolation:
			return ErrInUse
		}
	}
	return err
}
