package storage

import (
	"context"
	"errors"
	"fmt"

	"smpd/internal/domain"
	"smpd/pkg/platform/sentinel"
)

const (
	urlSuffixManageParticipant     = "/manageparticipantidentifier"
	urlSuffixManageServiceMetadata = "/manageservicemetadata"
)

// DefaultTransportProfiles is the transport profile set of a fresh store.
func DefaultTransportProfiles() []domain.TransportProfile {
	return []domain.TransportProfile{
		{ID: "busdox-transport-as2-ver1p0", Name: "AS2", Deprecated: true},
		{ID: "busdox-transport-as2-ver2p0", Name: "Peppol AS2 v2"},
		{ID: "busdox-transport-ebms3-as4", Name: "AS4", Deprecated: true},
		{ID: "peppol-transport-as4-v2_0", Name: "Peppol AS4 v2"},
		{ID: "bdxr-transport-ebms3-as4-v1p0", Name: "OASIS BDXR AS4"},
		{ID: "busdox-transport-start", Name: "START", Deprecated: true},
	}
}

// DefaultSMLInfos is the SML set of a fresh store.
func DefaultSMLInfos() []domain.SMLInfo {
	return []domain.SMLInfo{
		{
			ID:                             "digitprod",
			DisplayName:                    "SML",
			DNSZone:                        "edelivery.tech.ec.europa.eu.",
			ManagementServiceURL:           "https://edelivery.tech.ec.europa.eu/edelivery-sml",
			URLSuffixManageParticipant:     urlSuffixManageParticipant,
			URLSuffixManageServiceMetadata: urlSuffixManageServiceMetadata,
			ClientCertificateRequired:      true,
		},
		{
			ID:                             "digittest",
			DisplayName:                    "SMK",
			DNSZone:                        "acc.edelivery.tech.ec.europa.eu.",
			ManagementServiceURL:           "https://acc.edelivery.tech.ec.europa.eu/edelivery-sml",
			URLSuffixManageParticipant:     urlSuffixManageParticipant,
			URLSuffixManageServiceMetadata: urlSuffixManageServiceMetadata,
			ClientCertificateRequired:      true,
		},
		{
			ID:                             "local",
			DisplayName:                    "Local SML",
			DNSZone:                        "smp.localhost.",
			ManagementServiceURL:           "http://localhost:8080",
			URLSuffixManageParticipant:     urlSuffixManageParticipant,
			URLSuffixManageServiceMetadata: urlSuffixManageServiceMetadata,
		},
	}
}

// SeedDefaults fills empty transport profile and SML collections with the
// default sets. Collections that already hold records are left untouched.
func SeedDefaults(ctx context.Context, b *Backend) error {
	if err := seed(ctx, b.TransportProfiles, DefaultTransportProfiles()); err != nil {
		return fmt.Errorf("seeding transport profiles: %w", err)
	}
	if err := seed(ctx, b.SMLInfos, DefaultSMLInfos()); err != nil {
		return fmt.Errorf("seeding sml infos: %w", err)
	}
	return nil
}

func seed[V Record[V]](ctx context.Context, c Collection[V], defaults []V) error {
	n, err := c.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, v := range defaults {
		// a concurrent seeder may have won the race
		if _, err := c.Create(ctx, v); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
	}
	return nil
}
