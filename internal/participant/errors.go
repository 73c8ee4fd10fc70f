package participant

import (
	"errors"

	dErrors "smpd/pkg/domain-errors"
)

// OperationError is returned when a create or delete failed after the SML had
// already been changed. Err is the primary failure and is what callers match
// on. ReconcileRequired is set when compensation itself failed, leaving the
// SML and the local store in disagreement.
type OperationError struct {
	Op                 string
	ServiceGroupKey    string
	Err                error
	ReconcileRequired  bool
	CompensationErrors []error
}

func (e *OperationError) Error() string {
	return e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NeedsReconciliation reports whether err left state that an operator has to
// repair.
func NeedsReconciliation(err error) bool {
	var oe *OperationError
	return errors.As(err, &oe) && oe.ReconcileRequired
}

func notFound(key string) error {
	return dErrors.Newf(dErrors.CodeNotFound, "service group %q not found", key)
}
