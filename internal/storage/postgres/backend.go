package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"smpd/internal/domain"
	"smpd/internal/storage"
)

const (
	serviceGroupsTable      = "smp_service_groups"
	redirectsTable          = "smp_redirects"
	serviceInformationTable = "smp_service_information"
	transportProfilesTable  = "smp_transport_profiles"
	smlInfosTable           = "smp_sml_infos"
	settingsTable           = "smp_settings"
)

// NewBackend wraps db. It migrates the schema first when migrate is set.
// The returned backend closes db on Close.
func NewBackend(ctx context.Context, db *sql.DB, migrate bool) (*storage.Backend, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	b := &storage.Backend{
		Kind:               storage.KindSQL,
		ServiceGroups:      NewCollection[domain.ServiceGroup](db, serviceGroupsTable),
		Redirects:          NewScopedCollection[domain.Redirect](db, redirectsTable),
		ServiceInformation: NewScopedCollection[domain.ServiceInformation](db, serviceInformationTable),
		TransportProfiles:  NewCollection[domain.TransportProfile](db, transportProfilesTable),
		SMLInfos:           NewCollection[domain.SMLInfo](db, smlInfosTable),
		Settings:           NewCollection[domain.Settings](db, settingsTable),
	}
	b.OnClose(db.Close)
	return b, nil
}

// Truncate empties every table. Tests use it to reset a shared database.
func Truncate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s, %s, %s, %s, %s, %s`,
		serviceGroupsTable, redirectsTable, serviceInformationTable,
		transportProfilesTable, smlInfosTable, settingsTable))
	return err
}
