package sentinel

import "errors"

// Sentinel errors for storage facts. Backends return these (optionally
// wrapped) so managers can translate them into coded domain errors.
//
//   - ErrNotFound: record does not exist in the backend
//   - ErrConflict: a create hit an existing key
//   - ErrUnavailable: the backend could not be reached
//   - ErrInvalidState: the backend holds data it cannot decode
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
