package domain

import "strings"

// TransportProfile names a document transport protocol.
type TransportProfile struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Deprecated bool   `json:"deprecated" yaml:"deprecated"`
}

func (t TransportProfile) StorageKey() string { return t.ID }
func (t TransportProfile) Clone() TransportProfile { return t }
func (t TransportProfile) Equal(other TransportProfile) bool { return t == other }

// SMLInfo describes one remote directory (SML) deployment.
type SMLInfo struct {
	ID                             string `json:"id" yaml:"id"`
	DisplayName                    string `json:"display_name" yaml:"display_name"`
	DNSZone                        string `json:"dns_zone" yaml:"dns_zone"`
	ManagementServiceURL           string `json:"management_service_url" yaml:"management_service_url"`
	URLSuffixManageParticipant     string `json:"url_suffix_manage_participant" yaml:"url_suffix_manage_participant"`
	URLSuffixManageServiceMetadata string `json:"url_suffix_manage_service_metadata" yaml:"url_suffix_manage_service_metadata"`
	ClientCertificateRequired      bool   `json:"client_certificate_required" yaml:"client_certificate_required"`
}

func (s SMLInfo) StorageKey() string { return s.ID }
func (s SMLInfo) Clone() SMLInfo { return s }
func (s SMLInfo) Equal(other SMLInfo) bool { return s == other }

// ManageParticipantEndpoint is the URL participant registrations are sent to.
func (s SMLInfo) ManageParticipantEndpoint() string {
	return joinURL(s.ManagementServiceURL, s.URLSuffixManageParticipant)
}

// ManageServiceMetadataEndpoint is the URL SMP registrations are sent to.
func (s SMLInfo) ManageServiceMetadataEndpoint() string {
	return joinURL(s.ManagementServiceURL, s.URLSuffixManageServiceMetadata)
}

func joinURL(base, suffix string) string {
	if suffix == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}

// SettingsKey is the storage key of the single Settings record.
const SettingsKey = "singleton"

// Settings is the persisted runtime configuration.
type Settings struct {
	RESTWritableAPIDisabled        bool   `json:"rest_writable_api_disabled" yaml:"rest_writable_api_disabled"`
	DirectoryIntegrationEnabled    bool   `json:"directory_integration_enabled" yaml:"directory_integration_enabled"`
	DirectoryIntegrationRequired   bool   `json:"directory_integration_required" yaml:"directory_integration_required"`
	DirectoryIntegrationAutoUpdate bool   `json:"directory_integration_auto_update" yaml:"directory_integration_auto_update"`
	DirectoryHostName              string `json:"directory_host_name" yaml:"directory_host_name"`
	SMLEnabled                     bool   `json:"sml_enabled" yaml:"sml_enabled"`
	SMLRequired                    bool   `json:"sml_required" yaml:"sml_required"`
	SMLInfoID                      string `json:"sml_info_id" yaml:"sml_info_id"`
}

func (s Settings) StorageKey() string { return SettingsKey }
func (s Settings) Clone() Settings { return s }
func (s Settings) Equal(other Settings) bool { return s == other }
