package domain

import (
	"time"

	"smpd/internal/identifier"
)

// ServiceInformation lists the processes and endpoints a participant exposes
// for one document type. Processes keep their insertion order.
type ServiceInformation struct {
	ID              string                  `json:"id" yaml:"id"`
	ServiceGroupKey string                  `json:"service_group_key" yaml:"service_group_key"`
	DocumentType    identifier.DocumentType `json:"document_type" yaml:"document_type"`
	DocumentTypeKey string                  `json:"document_type_key" yaml:"document_type_key"`
	Processes       []Process               `json:"processes" yaml:"processes"`
	Extension       string                  `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// Process holds the endpoints of one business process. Endpoints are unique
// by transport profile.
type Process struct {
	ID        identifier.Process `json:"id" yaml:"id"`
	Endpoints []Endpoint         `json:"endpoints" yaml:"endpoints"`
	Extension string             `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// Endpoint is one access point of a process. TransportProfile is a weak
// reference to a TransportProfile ID.
type Endpoint struct {
	TransportProfile              string    `json:"transport_profile" yaml:"transport_profile"`
	EndpointReference             string    `json:"endpoint_reference" yaml:"endpoint_reference"`
	RequireBusinessLevelSignature bool      `json:"require_business_level_signature" yaml:"require_business_level_signature"`
	MinimumAuthenticationLevel    string    `json:"minimum_authentication_level,omitempty" yaml:"minimum_authentication_level,omitempty"`
	ServiceActivation             time.Time `json:"service_activation" yaml:"service_activation"`
	ServiceExpiration             time.Time `json:"service_expiration" yaml:"service_expiration"`
	Certificate                   string    `json:"certificate" yaml:"certificate"`
	ServiceDescription            string    `json:"service_description" yaml:"service_description"`
	TechnicalContactURL           string    `json:"technical_contact_url" yaml:"technical_contact_url"`
	TechnicalInformationURL       string    `json:"technical_information_url,omitempty" yaml:"technical_information_url,omitempty"`
	Extension                     string    `json:"extension,omitempty" yaml:"extension,omitempty"`
}

func (si ServiceInformation) StorageKey() string {
	return DependentKey(si.ServiceGroupKey, si.DocumentTypeKey)
}
func (si ServiceInformation) ScopeKey() string { return si.ServiceGroupKey }

func (si ServiceInformation) Clone() ServiceInformation {
	c := si
	if si.Processes != nil {
		c.Processes = make([]Process, len(si.Processes))
		for i, p := range si.Processes {
			c.Processes[i] = p.Clone()
		}
	}
	return c
}

func (si ServiceInformation) Equal(other ServiceInformation) bool {
	if si.ID != other.ID ||
		si.ServiceGroupKey != other.ServiceGroupKey ||
		si.DocumentType != other.DocumentType ||
		si.DocumentTypeKey != other.DocumentTypeKey ||
		si.Extension != other.Extension ||
		len(si.Processes) != len(other.Processes) {
		return false
	}
	for i := range si.Processes {
		if !si.Processes[i].Equal(other.Processes[i]) {
			return false
		}
	}
	return true
}

// EndpointCount sums the endpoints over all processes.
func (si ServiceInformation) EndpointCount() int {
	n := 0
	for _, p := range si.Processes {
		n += len(p.Endpoints)
	}
	return n
}

// UsesTransportProfile reports whether any endpoint references id.
func (si ServiceInformation) UsesTransportProfile(id string) bool {
	for _, p := range si.Processes {
		for _, e := range p.Endpoints {
			if e.TransportProfile == id {
				return true
			}
		}
	}
	return false
}

func (p Process) Clone() Process {
	c := p
	if p.Endpoints != nil {
		c.Endpoints = make([]Endpoint, len(p.Endpoints))
		copy(c.Endpoints, p.Endpoints)
	}
	return c
}

func (p Process) Equal(other Process) bool {
	if p.ID != other.ID || p.Extension != other.Extension || len(p.Endpoints) != len(other.Endpoints) {
		return false
	}
	for i := range p.Endpoints {
		if !p.Endpoints[i].Equal(other.Endpoints[i]) {
			return false
		}
	}
	return true
}

func (e Endpoint) Equal(other Endpoint) bool {
	return e.TransportProfile == other.TransportProfile &&
		e.EndpointReference == other.EndpointReference &&
		e.RequireBusinessLevelSignature == other.RequireBusinessLevelSignature &&
		e.MinimumAuthenticationLevel == other.MinimumAuthenticationLevel &&
		e.ServiceActivation.Equal(other.ServiceActivation) &&
		e.ServiceExpiration.Equal(other.ServiceExpiration) &&
		e.Certificate == other.Certificate &&
		e.ServiceDescription == other.ServiceDescription &&
		e.TechnicalContactURL == other.TechnicalContactURL &&
		e.TechnicalInformationURL == other.TechnicalInformationURL &&
		e.Extension == other.Extension
}
