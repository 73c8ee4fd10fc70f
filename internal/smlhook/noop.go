package smlhook

import (
	"context"

	"smpd/internal/identifier"
)

// Noop is the hook used while SML sync is disabled.
type Noop struct{}

func (Noop) CreateParticipant(context.Context, identifier.Participant) error     { return nil }
func (Noop) UndoCreateParticipant(context.Context, identifier.Participant) error { return nil }
func (Noop) DeleteParticipant(context.Context, identifier.Participant) error     { return nil }
func (Noop) UndoDeleteParticipant(context.Context, identifier.Participant) error { return nil }
