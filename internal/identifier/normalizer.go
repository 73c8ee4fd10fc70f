package identifier

import "strings"

// Default case-insensitive schemes follow the Peppol identifier policy.
var (
	DefaultParticipantSchemes = []string{"iso6523-actorid-upis", "iso6523"}
	DefaultProcessSchemes     = []string{"cenbii-procid-ubl"}
)

// Normalizer canonicalizes identifiers: values of schemes declared
// case-insensitive are lower-cased, all others are kept verbatim. It is
// immutable after construction and safe for concurrent use.
//
// The normalizer never validates. Malformed input must be rejected with the
// Validate* functions before it gets here.
type Normalizer struct {
	participant  map[string]struct{}
	documentType map[string]struct{}
	process      map[string]struct{}
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCaseInsensitiveParticipantSchemes replaces the participant scheme set.
func WithCaseInsensitiveParticipantSchemes(schemes ...string) Option {
	return func(n *Normalizer) { n.participant = schemeSet(schemes) }
}

// WithCaseInsensitiveDocumentTypeSchemes replaces the document type scheme set.
func WithCaseInsensitiveDocumentTypeSchemes(schemes ...string) Option {
	return func(n *Normalizer) { n.documentType = schemeSet(schemes) }
}

// WithCaseInsensitiveProcessSchemes replaces the process scheme set.
func WithCaseInsensitiveProcessSchemes(schemes ...string) Option {
	return func(n *Normalizer) { n.process = schemeSet(schemes) }
}

// NewNormalizer builds a normalizer with the Peppol defaults, then applies opts.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		participant:  schemeSet(DefaultParticipantSchemes),
		documentType: schemeSet(nil),
		process:      schemeSet(DefaultProcessSchemes),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

func schemeSet(schemes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(schemes))
	for _, s := range schemes {
		set[strings.ToLower(s)] = struct{}{}
	}
	return set
}

func fold(set map[string]struct{}, scheme, value string) string {
	if _, ok := set[strings.ToLower(scheme)]; ok {
		return strings.ToLower(value)
	}
	return value
}

// Participant returns the canonical form of p.
func (n *Normalizer) Participant(p Participant) Participant {
	return Participant{Scheme: p.Scheme, Value: fold(n.participant, p.Scheme, p.Value)}
}

// DocumentType returns the canonical form of d.
func (n *Normalizer) DocumentType(d DocumentType) DocumentType {
	return DocumentType{Scheme: d.Scheme, Value: fold(n.documentType, d.Scheme, d.Value)}
}

// Process returns the canonical form of p.
func (n *Normalizer) Process(p Process) Process {
	return Process{Scheme: p.Scheme, Value: fold(n.process, p.Scheme, p.Value)}
}

// ParticipantKey derives the storage key of a service group. It is the only
// sanctioned way to compute one.
func (n *Normalizer) ParticipantKey(p Participant) string {
	c := n.Participant(p)
	return encodeKey(c.Scheme, c.Value)
}

// DocumentTypeKey derives the storage key component of a document type.
func (n *Normalizer) DocumentTypeKey(d DocumentType) string {
	c := n.DocumentType(d)
	return encodeKey(c.Scheme, c.Value)
}

// ProcessKey derives the comparison key of a process identifier.
func (n *Normalizer) ProcessKey(p Process) string {
	c := n.Process(p)
	return encodeKey(c.Scheme, c.Value)
}
