// Package storagetest holds the conformance suite every storage backend must
// pass, plus fixtures and a fault-injecting collection wrapper.
package storagetest

import (
	"fmt"
	"time"

	"smpd/internal/domain"
	"smpd/internal/identifier"
)

var fixtureNormalizer = identifier.NewNormalizer()

// ServiceGroup builds a service group for participant iso6523::9915:<suffix>.
func ServiceGroup(suffix, owner string) domain.ServiceGroup {
	p := identifier.Participant{Scheme: "iso6523", Value: "9915:" + suffix}
	return domain.ServiceGroup{
		Key:         fixtureNormalizer.ParticipantKey(p),
		Participant: fixtureNormalizer.Participant(p),
		OwnerID:     owner,
	}
}

// DocumentType builds a document type identifier in the busdox scheme.
func DocumentType(value string) identifier.DocumentType {
	return identifier.DocumentType{Scheme: "busdox-docid-qns", Value: value}
}

// Redirect builds a redirect of sg for the named document type.
func Redirect(sg domain.ServiceGroup, doc, href string) domain.Redirect {
	d := DocumentType(doc)
	return domain.Redirect{
		ID:                      fmt.Sprintf("redirect-%s-%s", sg.Participant.Value, doc),
		ServiceGroupKey:         sg.Key,
		DocumentType:            d,
		DocumentTypeKey:         fixtureNormalizer.DocumentTypeKey(d),
		TargetHref:              href,
		SubjectUniqueIdentifier: "CN=target",
		Certificate:             "cert-" + doc,
	}
}

// Endpoint builds an endpoint for the transport profile.
func Endpoint(transportProfile, url string) domain.Endpoint {
	return domain.Endpoint{
		TransportProfile:    transportProfile,
		EndpointReference:   url,
		ServiceActivation:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ServiceExpiration:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Certificate:         "MIIB",
		ServiceDescription:  "endpoint",
		TechnicalContactURL: "mailto:ops@example.org",
	}
}

// Process builds a process in the cenbii scheme.
func Process(value string, endpoints ...domain.Endpoint) domain.Process {
	return domain.Process{
		ID:        identifier.Process{Scheme: "cenbii-procid-ubl", Value: value},
		Endpoints: endpoints,
	}
}

// ServiceInformation builds service information of sg for doc.
func ServiceInformation(sg domain.ServiceGroup, doc string, processes ...domain.Process) domain.ServiceInformation {
	d := DocumentType(doc)
	return domain.ServiceInformation{
		ID:              fmt.Sprintf("si-%s-%s", sg.Participant.Value, doc),
		ServiceGroupKey: sg.Key,
		DocumentType:    d,
		DocumentTypeKey: fixtureNormalizer.DocumentTypeKey(d),
		Processes:       processes,
	}
}
