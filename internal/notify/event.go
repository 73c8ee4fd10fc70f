// Package notify is the change notification bus. Managers publish an event
// after a mutation has committed and actually changed state; subscribers run
// synchronously, in registration order, on the publishing goroutine.
package notify

import (
	"time"

	"github.com/google/uuid"

	"smpd/internal/domain"
)

// EventType names a lifecycle event.
type EventType string

const (
	ServiceGroupCreated       EventType = "service_group.created"
	ServiceGroupUpdated       EventType = "service_group.updated"
	ServiceGroupDeleted       EventType = "service_group.deleted"
	RedirectCreated           EventType = "redirect.created"
	RedirectUpdated           EventType = "redirect.updated"
	RedirectDeleted           EventType = "redirect.deleted"
	ServiceInformationCreated EventType = "service_information.created"
	ServiceInformationUpdated EventType = "service_information.updated"
	ServiceInformationDeleted EventType = "service_information.deleted"
	SettingsChanged           EventType = "settings.changed"
)

// Event carries the affected record. Only the field matching Type is set.
type Event struct {
	ID              uuid.UUID
	Type            EventType
	OccurredAt      time.Time
	ServiceGroupKey string

	ServiceGroup       *domain.ServiceGroup
	Redirect           *domain.Redirect
	ServiceInformation *domain.ServiceInformation
	Settings           *domain.Settings
}

func newEvent(t EventType, serviceGroupKey string) Event {
	return Event{ID: uuid.New(), Type: t, OccurredAt: time.Now().UTC(), ServiceGroupKey: serviceGroupKey}
}

func ServiceGroupEvent(t EventType, sg domain.ServiceGroup) Event {
	e := newEvent(t, sg.Key)
	e.ServiceGroup = &sg
	return e
}

func RedirectEvent(t EventType, r domain.Redirect) Event {
	e := newEvent(t, r.ServiceGroupKey)
	e.Redirect = &r
	return e
}

func ServiceInformationEvent(t EventType, si domain.ServiceInformation) Event {
	e := newEvent(t, si.ServiceGroupKey)
	si = si.Clone()
	e.ServiceInformation = &si
	return e
}

func SettingsEvent(s domain.Settings) Event {
	e := newEvent(SettingsChanged, "")
	e.Settings = &s
	return e
}
