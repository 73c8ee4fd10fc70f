package notify

import (
	"context"

	"smpd/internal/domain"
)

// Listener adapts per-event callbacks to a Handler. Nil callbacks are skipped.
type Listener struct {
	OnServiceGroupCreated func(ctx context.Context, sg domain.ServiceGroup) error
	OnServiceGroupUpdated func(ctx context.Context, key string) error
	OnServiceGroupDeleted func(ctx context.Context, key string) error

	OnRedirectCreated func(ctx context.Context, r domain.Redirect) error
	OnRedirectUpdated func(ctx context.Context, r domain.Redirect) error
	OnRedirectDeleted func(ctx context.Context, r domain.Redirect) error

	OnServiceInformationCreated func(ctx context.Context, si domain.ServiceInformation) error
	OnServiceInformationUpdated func(ctx context.Context, si domain.ServiceInformation) error
	OnServiceInformationDeleted func(ctx context.Context, si domain.ServiceInformation) error

	OnSettingsChanged func(ctx context.Context, s domain.Settings) error
}

func (l Listener) Handler() Handler {
	return func(ctx context.Context, e Event) error {
		switch e.Type {
		case ServiceGroupCreated:
			if l.OnServiceGroupCreated != nil && e.ServiceGroup != nil {
				return l.OnServiceGroupCreated(ctx, *e.ServiceGroup)
			}
		case ServiceGroupUpdated:
			if l.OnServiceGroupUpdated != nil {
				return l.OnServiceGroupUpdated(ctx, e.ServiceGroupKey)
			}
		case ServiceGroupDeleted:
			if l.OnServiceGroupDeleted != nil {
				return l.OnServiceGroupDeleted(ctx, e.ServiceGroupKey)
			}
		case RedirectCreated, RedirectUpdated, RedirectDeleted:
			return l.redirect(ctx, e)
		case ServiceInformationCreated, ServiceInformationUpdated, ServiceInformationDeleted:
			return l.serviceInformation(ctx, e)
		case SettingsChanged:
			if l.OnSettingsChanged != nil && e.Settings != nil {
				return l.OnSettingsChanged(ctx, *e.Settings)
			}
		}
		return nil
	}
}

func (l Listener) redirect(ctx context.Context, e Event) error {
	if e.Redirect == nil {
		return nil
	}
	var fn func(context.Context, domain.Redirect) error
	switch e.Type {
	case RedirectCreated:
		fn = l.OnRedirectCreated
	case RedirectUpdated:
		fn = l.OnRedirectUpdated
	case RedirectDeleted:
		fn = l.OnRedirectDeleted
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, *e.Redirect)
}

func (l Listener) serviceInformation(ctx context.Context, e Event) error {
	if e.ServiceInformation == nil {
		return nil
	}
	var fn func(context.Context, domain.ServiceInformation) error
	switch e.Type {
	case ServiceInformationCreated:
		fn = l.OnServiceInformationCreated
	case ServiceInformationUpdated:
		fn = l.OnServiceInformationUpdated
	case ServiceInformationDeleted:
		fn = l.OnServiceInformationDeleted
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, *e.ServiceInformation)
}
