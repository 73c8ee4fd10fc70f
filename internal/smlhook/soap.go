package smlhook

import (
	"bytes"
	"encoding/xml"
	"strings"

	"smpd/internal/identifier"
)

const (
	nsEnvelope    = "http://schemas.xmlsoap.org/soap/envelope/"
	nsLocator     = "http://busdox.org/serviceMetadata/locator/1.0/"
	nsIdentifiers = "http://busdox.org/transport/identifiers/1.0/"

	actionBase   = "http://busdox.org/serviceMetadata/ManageBusinessIdentifierService/1.0/"
	actionCreate = actionBase + ":createIn"
	actionDelete = actionBase + ":deleteIn"
)

type envelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    body     `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

type body struct {
	Create *participantRequest `xml:"http://busdox.org/serviceMetadata/locator/1.0/ CreateParticipantIdentifier,omitempty"`
	Delete *participantRequest `xml:"http://busdox.org/serviceMetadata/locator/1.0/ DeleteParticipantIdentifier,omitempty"`
}

type participantRequest struct {
	Participant participantIdentifier `xml:"http://busdox.org/transport/identifiers/1.0/ ParticipantIdentifier"`
	SMPID       string                `xml:"http://busdox.org/serviceMetadata/locator/1.0/ ServiceMetadataPublisherID"`
}

type participantIdentifier struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

type responseEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    responseBody `xml:"Body"`
}

type responseBody struct {
	Fault *fault `xml:"Fault"`
}

type fault struct {
	Code   string      `xml:"faultcode"`
	String string      `xml:"faultstring"`
	Detail faultDetail `xml:"detail"`
}

type faultDetail struct {
	Unauthorized *faultMessage `xml:"UnauthorizedFault"`
	NotFound     *faultMessage `xml:"NotFoundFault"`
	BadRequest   *faultMessage `xml:"BadRequestFault"`
	Internal     *faultMessage `xml:"InternalErrorFault"`
}

type faultMessage struct {
	Message string `xml:"FaultMessage"`
}

func encodeRequest(create bool, smpID string, p identifier.Participant) ([]byte, error) {
	req := &participantRequest{
		Participant: participantIdentifier{Scheme: p.Scheme, Value: p.Value},
		SMPID:       smpID,
	}
	env := envelope{}
	if create {
		env.Body.Create = req
	} else {
		env.Body.Delete = req
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeFault extracts the fault from a SOAP response. ok is false when the
// payload is not a SOAP fault.
func decodeFault(payload []byte) (Kind, string, bool) {
	var env responseEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil || env.Body.Fault == nil {
		return KindOther, "", false
	}
	f := env.Body.Fault
	switch {
	case f.Detail.Unauthorized != nil:
		return KindUnauthorized, firstNonEmpty(f.Detail.Unauthorized.Message, f.String), true
	case f.Detail.NotFound != nil:
		return KindNotFound, firstNonEmpty(f.Detail.NotFound.Message, f.String), true
	case f.Detail.BadRequest != nil:
		return KindOther, firstNonEmpty(f.Detail.BadRequest.Message, f.String), true
	case f.Detail.Internal != nil:
		return KindOther, firstNonEmpty(f.Detail.Internal.Message, f.String), true
	}
	return KindOther, strings.TrimSpace(f.String), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
