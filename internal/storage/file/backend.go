// Package file is the storage backend that keeps each collection in one YAML
// snapshot file. Every mutation rewrites the file through a temporary file
// and a rename, so readers of the directory never see a partial snapshot.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"smpd/internal/domain"
	"smpd/internal/storage"
	"smpd/internal/storage/memory"
)

const formatVersion = 1

const (
	serviceGroupsFile      = "service-groups.yaml"
	redirectsFile          = "redirects.yaml"
	serviceInformationFile = "service-information.yaml"
	transportProfilesFile  = "transport-profiles.yaml"
	smlInfosFile           = "sml-infos.yaml"
	settingsFile           = "settings.yaml"
)

type snapshot[V any] struct {
	Version int `yaml:"version"`
	Items   []V `yaml:"items"`
}

// Open loads (or initializes) the snapshot files below dir.
func Open(dir string) (*storage.Backend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	groups, err := load[domain.ServiceGroup](dir, serviceGroupsFile)
	if err != nil {
		return nil, err
	}
	redirects, err := load[domain.Redirect](dir, redirectsFile)
	if err != nil {
		return nil, err
	}
	infos, err := load[domain.ServiceInformation](dir, serviceInformationFile)
	if err != nil {
		return nil, err
	}
	profiles, err := load[domain.TransportProfile](dir, transportProfilesFile)
	if err != nil {
		return nil, err
	}
	smls, err := load[domain.SMLInfo](dir, smlInfosFile)
	if err != nil {
		return nil, err
	}
	settings, err := load[domain.Settings](dir, settingsFile)
	if err != nil {
		return nil, err
	}

	return &storage.Backend{
		Kind: storage.KindFile,
		ServiceGroups: memory.NewCollection(
			memory.WithItems(groups), memory.WithCommit(writer[domain.ServiceGroup](dir, serviceGroupsFile))),
		Redirects: memory.NewScopedCollection(
			memory.WithItems(redirects), memory.WithCommit(writer[domain.Redirect](dir, redirectsFile))),
		ServiceInformation: memory.NewScopedCollection(
			memory.WithItems(infos), memory.WithCommit(writer[domain.ServiceInformation](dir, serviceInformationFile))),
		TransportProfiles: memory.NewCollection(
			memory.WithItems(profiles), memory.WithCommit(writer[domain.TransportProfile](dir, transportProfilesFile))),
		SMLInfos: memory.NewCollection(
			memory.WithItems(smls), memory.WithCommit(writer[domain.SMLInfo](dir, smlInfosFile))),
		Settings: memory.NewCollection(
			memory.WithItems(settings), memory.WithCommit(writer[domain.Settings](dir, settingsFile))),
	}, nil
}

func load[V any](dir, name string) ([]V, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	var snap snapshot[V]
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if snap.Version != formatVersion {
		return nil, fmt.Errorf("%s: unsupported format version %d", name, snap.Version)
	}
	return snap.Items, nil
}

func writer[V any](dir, name string) memory.CommitFunc[V] {
	return func(items []V) error {
		return writeAtomic(dir, name, snapshot[V]{Version: formatVersion, Items: items})
	}
}

func writeAtomic(dir, name string, v any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
