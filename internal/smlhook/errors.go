package smlhook

import (
	"errors"
	"fmt"

	"smpd/internal/identifier"
	dErrors "smpd/pkg/domain-errors"
)

// Kind classifies a remote failure.
type Kind int

const (
	KindOther Kind = iota
	KindUnauthorized
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Error is a failed hook call. Detail carries the remote fault message when
// the directory returned one.
type Error struct {
	Kind        Kind
	Op          Op
	Participant identifier.Participant
	Detail      string
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("sml %s of %s failed (%s)", e.Op, e.Participant, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a hook error of kind k.
func IsKind(err error, k Kind) bool {
	var he *Error
	return errors.As(err, &he) && he.Kind == k
}

// domainError wraps a hook failure so callers can match CodeDirectory while
// the *Error stays reachable with errors.As.
func domainError(err *Error) error {
	return dErrors.Wrap(err, dErrors.CodeDirectory, "remote directory call failed")
}
