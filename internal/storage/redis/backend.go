package redis

import (
	"github.com/redis/go-redis/v9"

	"smpd/internal/domain"
	"smpd/internal/storage"
)

// DefaultKeyPrefix namespaces every key the backend writes.
const DefaultKeyPrefix = "smpd:"

// NewBackend builds the six collections on client. The client lifecycle
// stays with the caller unless closeClient is set.
func NewBackend(client *redis.Client, prefix string, closeClient bool) *storage.Backend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	b := &storage.Backend{
		Kind:               storage.KindRedis,
		ServiceGroups:      NewCollection[domain.ServiceGroup](client, prefix, "service-groups"),
		Redirects:          NewScopedCollection[domain.Redirect](client, prefix, "redirects"),
		ServiceInformation: NewScopedCollection[domain.ServiceInformation](client, prefix, "service-information"),
		TransportProfiles:  NewCollection[domain.TransportProfile](client, prefix, "transport-profiles"),
		SMLInfos:           NewCollection[domain.SMLInfo](client, prefix, "sml-infos"),
		Settings:           NewCollection[domain.Settings](client, prefix, "settings"),
	}
	if closeClient {
		b.OnClose(client.Close)
	}
	return b
}
