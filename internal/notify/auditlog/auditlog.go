// Package auditlog writes every change event as a structured audit line.
package auditlog

import (
	"context"
	"log/slog"

	"smpd/internal/notify"
)

// Subscriber logs change events with log_type=audit.
type Subscriber struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Subscriber{logger: logger}
}

func (s *Subscriber) Handle(ctx context.Context, e notify.Event) error {
	args := []any{
		"event", string(e.Type),
		"log_type", "audit",
		"event_id", e.ID.String(),
		"occurred_at", e.OccurredAt,
	}
	if e.ServiceGroupKey != "" {
		args = append(args, "service_group_key", e.ServiceGroupKey)
	}
	switch {
	case e.ServiceGroup != nil:
		args = append(args, "participant", e.ServiceGroup.Participant.String(), "owner_id", e.ServiceGroup.OwnerID)
	case e.Redirect != nil:
		args = append(args, "document_type", e.Redirect.DocumentType.String(), "target_href", e.Redirect.TargetHref)
	case e.ServiceInformation != nil:
		args = append(args,
			"document_type", e.ServiceInformation.DocumentType.String(),
			"processes", len(e.ServiceInformation.Processes),
			"endpoints", e.ServiceInformation.EndpointCount(),
		)
	case e.Settings != nil:
		args = append(args,
			"sml_enabled", e.Settings.SMLEnabled,
			"sml_required", e.Settings.SMLRequired,
			"sml_info_id", e.Settings.SMLInfoID,
			"directory_integration_enabled", e.Settings.DirectoryIntegrationEnabled,
		)
	}
	s.logger.InfoContext(ctx, string(e.Type), args...)
	return nil
}
