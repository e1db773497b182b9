package domain

import (
	"math"

	"github.com/cockroachdb/errors"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrValidation           = errors.New("validation failed")
	ErrInvalidState         = errors.New("invalid state")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
)

// Validationf marks a caller mistake; the message is safe to show to clients.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func InvalidStatef(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidState)
}

func NotFoundf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func Forbiddenf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrForbidden)
}

// PageOffset is the number of rows that precede page. page and limit are
// expected to be at least 1. Pages whose offset does not fit an int are
// rejected rather than wrapped.
func PageOffset(page, limit int) (int, error) {
	if page > math.MaxInt/limit {
		return 0, Validationf("page %d is out of range", page)
	}
	return (page - 1) * limit, nil
}
