// Package identifier holds the participant, document type and process
// identifiers of the routing network together with the normalizer that
// canonicalizes them and derives storage keys.
package identifier

import (
	"net/url"
	"regexp"
	"strings"

	dErrors "smpd/pkg/domain-errors"
)

const (
	// Separator joins scheme and value in the textual form "scheme::value".
	Separator = "::"

	maxSchemeLength            = 25
	maxParticipantValueLength  = 50
	maxDocumentTypeValueLength = 500
	maxProcessValueLength      = 200
)

var schemePattern = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+)*$`)

// Participant identifies a business registered with this server.
type Participant struct {
	Scheme string `json:"scheme" yaml:"scheme"`
	Value  string `json:"value" yaml:"value"`
}

// DocumentType identifies a business document type.
type DocumentType struct {
	Scheme string `json:"scheme" yaml:"scheme"`
	Value  string `json:"value" yaml:"value"`
}

// Process identifies a business process a document type is exchanged in.
type Process struct {
	Scheme string `json:"scheme" yaml:"scheme"`
	Value  string `json:"value" yaml:"value"`
}

func (p Participant) String() string { return p.Scheme + Separator + p.Value }
func (d DocumentType) String() string { return d.Scheme + Separator + d.Value }
func (p Process) String() string { return p.Scheme + Separator + p.Value }

// IsZero reports whether neither scheme nor value is set.
func (p Participant) IsZero() bool { return p.Scheme == "" && p.Value == "" }

// encodeKey escapes both components before joining them, so distinct
// (scheme, value) pairs can never collide on the separator.
func encodeKey(scheme, value string) string {
	return url.QueryEscape(scheme) + Separator + url.QueryEscape(value)
}

// ParseParticipant parses "scheme::value" and validates both parts.
func ParseParticipant(s string) (Participant, error) {
	scheme, value, err := split(s)
	if err != nil {
		return Participant{}, err
	}
	p := Participant{Scheme: scheme, Value: value}
	return p, ValidateParticipant(p)
}

// ParseDocumentType parses "scheme::value" and validates both parts.
func ParseDocumentType(s string) (DocumentType, error) {
	scheme, value, err := split(s)
	if err != nil {
		return DocumentType{}, err
	}
	d := DocumentType{Scheme: scheme, Value: value}
	return d, ValidateDocumentType(d)
}

// ParseProcess parses "scheme::value" and validates both parts.
func ParseProcess(s string) (Process, error) {
	scheme, value, err := split(s)
	if err != nil {
		return Process{}, err
	}
	p := Process{Scheme: scheme, Value: value}
	return p, ValidateProcess(p)
}

func split(s string) (string, string, error) {
	scheme, value, ok := strings.Cut(s, Separator)
	if !ok {
		return "", "", dErrors.Newf(dErrors.CodeValidation, "identifier %q lacks the %q separator", s, Separator)
	}
	return scheme, value, nil
}

// ValidateParticipant rejects malformed participant identifiers.
func ValidateParticipant(p Participant) error {
	return validate("participant", p.Scheme, p.Value, maxParticipantValueLength)
}

// ValidateDocumentType rejects malformed document type identifiers.
func ValidateDocumentType(d DocumentType) error {
	return validate("document type", d.Scheme, d.Value, maxDocumentTypeValueLength)
}

// ValidateProcess rejects malformed process identifiers.
func ValidateProcess(p Process) error {
	return validate("process", p.Scheme, p.Value, maxProcessValueLength)
}

func validate(kind, scheme, value string, maxValue int) error {
	switch {
	case scheme == "":
		return dErrors.Newf(dErrors.CodeValidation, "%s identifier scheme is required", kind)
	case len(scheme) > maxSchemeLength:
		return dErrors.Newf(dErrors.CodeValidation, "%s identifier scheme exceeds %d characters", kind, maxSchemeLength)
	case !schemePattern.MatchString(scheme):
		return dErrors.Newf(dErrors.CodeValidation, "%s identifier scheme %q is malformed", kind, scheme)
	case strings.TrimSpace(value) == "":
		return dErrors.Newf(dErrors.CodeValidation, "%s identifier value is required", kind)
	case len(value) > maxValue:
		return dErrors.Newf(dErrors.CodeValidation, "%s identifier value exceeds %d characters", kind, maxValue)
	}
	return nil
}
