package memory

import (
	"smpd/internal/domain"
	"smpd/internal/storage"
)

// NewBackend returns an empty in-memory backend. Nothing survives a restart.
func NewBackend() *storage.Backend {
	return &storage.Backend{
		Kind:               storage.KindMemory,
		ServiceGroups:      NewCollection[domain.ServiceGroup](),
		Redirects:          NewScopedCollection[domain.Redirect](),
		ServiceInformation: NewScopedCollection[domain.ServiceInformation](),
		TransportProfiles:  NewCollection[domain.TransportProfile](),
		SMLInfos:           NewCollection[domain.SMLInfo](),
		Settings:           NewCollection[domain.Settings](),
	}
}
