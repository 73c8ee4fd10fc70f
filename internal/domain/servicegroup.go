// Package domain holds the records managed by the server: service groups and
// their dependent redirects and service information, plus the transport
// profile, SML and runtime settings records.
//
// Every record is a plain value. Clone returns a copy that shares no mutable
// memory with the receiver, so stores can hand out defensive copies.
package domain

import "smpd/internal/identifier"

// ServiceGroup is the root record of a participant. Key is derived from the
// normalized participant and never changes after creation.
type ServiceGroup struct {
	Key         string                 `json:"key" yaml:"key"`
	Participant identifier.Participant `json:"participant" yaml:"participant"`
	OwnerID     string                 `json:"owner_id" yaml:"owner_id"`
	Extension   string                 `json:"extension,omitempty" yaml:"extension,omitempty"`
}

func (g ServiceGroup) StorageKey() string { return g.Key }
func (g ServiceGroup) Clone() ServiceGroup { return g }
func (g ServiceGroup) Equal(other ServiceGroup) bool { return g == other }

// DependentKey is the storage key of a record scoped to a service group and a
// document type. Both components are already escaped, so '#' cannot occur in
// either of them.
func DependentKey(serviceGroupKey, documentTypeKey string) string {
	return serviceGroupKey + "#" + documentTypeKey
}

// Redirect points one document type of a participant to another server.
type Redirect struct {
	ID                      string                  `json:"id" yaml:"id"`
	ServiceGroupKey         string                  `json:"service_group_key" yaml:"service_group_key"`
	DocumentType            identifier.DocumentType `json:"document_type" yaml:"document_type"`
	DocumentTypeKey         string                  `json:"document_type_key" yaml:"document_type_key"`
	TargetHref              string                  `json:"target_href" yaml:"target_href"`
	SubjectUniqueIdentifier string                  `json:"subject_unique_identifier" yaml:"subject_unique_identifier"`
	// Certificate is the base64 DER of the target signing certificate.
	Certificate             string                  `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	Extension               string                  `json:"extension,omitempty" yaml:"extension,omitempty"`
}

func (r Redirect) StorageKey() string { return DependentKey(r.ServiceGroupKey, r.DocumentTypeKey) }
func (r Redirect) ScopeKey() string { return r.ServiceGroupKey }

func (r Redirect) Clone() Redirect { return r }
func (r Redirect) Equal(other Redirect) bool { return r == other }
