//go:generate mockgen -source=hook.go -destination=mocks/mocks.go -package=mocks Hook

// Package smlhook talks to the SML, the network-wide directory that maps a
// participant to the SMP allowed to answer for it. Registrations on this
// server are mirrored there before they are committed locally.
package smlhook

import (
	"context"

	"smpd/internal/identifier"
)

// Op names one hook call in logs, metrics and errors.
type Op string

const (
	OpCreate     Op = "create"
	OpUndoCreate Op = "undo_create"
	OpDelete     Op = "delete"
	OpUndoDelete Op = "undo_delete"
)

// Hook registers and unregisters participants with the remote directory.
// Every method either succeeds or returns an *Error.
type Hook interface {
	CreateParticipant(ctx context.Context, p identifier.Participant) error
	UndoCreateParticipant(ctx context.Context, p identifier.Participant) error
	DeleteParticipant(ctx context.Context, p identifier.Participant) error
	UndoDeleteParticipant(ctx context.Context, p identifier.Participant) error
}
