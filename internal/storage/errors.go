package storage

import (
	"errors"

	dErrors "smpd/pkg/domain-errors"
	"smpd/pkg/platform/sentinel"
)

// DomainError translates a backend error into a coded domain error so every
// manager reports storage facts the same way.
func DomainError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeBackend, msg)
	}
}
