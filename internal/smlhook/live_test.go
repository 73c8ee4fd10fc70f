package smlhook

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/platform/metrics"
	dErrors "smpd/pkg/domain-errors"
)

const unauthorizedFault = `<?xml version="1.0" encoding="UTF-8"?>
<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/">
  <S:Body>
    <S:Fault>
      <faultcode>S:Server</faultcode>
      <faultstring>[ERR-105] The user is not allowed</faultstring>
      <detail>
        <ns2:UnauthorizedFault xmlns:ns2="http://busdox.org/serviceMetadata/locator/1.0/">
          <ns2:FaultMessage>[ERR-105] SMP SMP-1 is not owned by the caller</ns2:FaultMessage>
        </ns2:UnauthorizedFault>
      </detail>
    </S:Fault>
  </S:Body>
</S:Envelope>`

const notFoundFault = `<?xml version="1.0" encoding="UTF-8"?>
<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/">
  <S:Body>
    <S:Fault>
      <faultcode>S:Server</faultcode>
      <faultstring>not found</faultstring>
      <detail>
        <ns2:NotFoundFault xmlns:ns2="http://busdox.org/serviceMetadata/locator/1.0/">
          <ns2:FaultMessage>[ERR-100] participant does not exist</ns2:FaultMessage>
        </ns2:NotFoundFault>
      </detail>
    </S:Fault>
  </S:Body>
</S:Envelope>`

const emptyResponse = `<?xml version="1.0" encoding="UTF-8"?>
<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body/></S:Envelope>`

type received struct {
	action string
	path   string
	env    envelope
}

type fakeSML struct {
	mu       sync.Mutex
	requests []received
	status   int
	reply    string
}

func (f *fakeSML) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, _ := io.ReadAll(r.Body)
	var env envelope
	_ = xml.Unmarshal(payload, &env)

	f.mu.Lock()
	f.requests = append(f.requests, received{action: r.Header.Get("SOAPAction"), path: r.URL.Path, env: env})
	status, reply := f.status, f.reply
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (f *fakeSML) respond(status int, reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.reply = status, reply
}

func (f *fakeSML) last() received {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type LiveSuite struct {
	suite.Suite
	sml     *fakeSML
	server  *httptest.Server
	metrics *metrics.Metrics
	hook    *Live
	p       identifier.Participant
}

func TestLiveSuite(t *testing.T) {
	suite.Run(t, new(LiveSuite))
}

func (s *LiveSuite) SetupTest() {
	s.sml = &fakeSML{status: http.StatusOK, reply: emptyResponse}
	s.server = httptest.NewServer(s.sml)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	info := domain.SMLInfo{
		ID:                         "local",
		ManagementServiceURL:       s.server.URL,
		URLSuffixManageParticipant: "/manageparticipantidentifier",
	}
	hook, err := NewLive(info, Config{SMPID: "SMP-1"}, nil,
		WithHTTPClient(s.server.Client()),
		WithLiveMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.hook = hook
	s.p = identifier.Participant{Scheme: "iso6523-actorid-upis", Value: "9915:test"}
}

func (s *LiveSuite) TearDownTest() {
	s.server.Close()
}

func (s *LiveSuite) TestRequests() {
	ctx := context.Background()

	s.Run("create sends CreateParticipantIdentifier", func() {
		s.Require().NoError(s.hook.CreateParticipant(ctx, s.p))
		req := s.sml.last()
		s.Equal(`"`+actionCreate+`"`, req.action)
		s.Equal("/manageparticipantidentifier", req.path)
		s.Require().NotNil(req.env.Body.Create)
		s.Nil(req.env.Body.Delete)
		s.Equal("SMP-1", req.env.Body.Create.SMPID)
		s.Equal("iso6523-actorid-upis", req.env.Body.Create.Participant.Scheme)
		s.Equal("9915:test", req.env.Body.Create.Participant.Value)
	})

	s.Run("undo create sends a delete", func() {
		s.Require().NoError(s.hook.UndoCreateParticipant(ctx, s.p))
		req := s.sml.last()
		s.Equal(`"`+actionDelete+`"`, req.action)
		s.NotNil(req.env.Body.Delete)
	})

	s.Run("delete sends DeleteParticipantIdentifier", func() {
		s.Require().NoError(s.hook.DeleteParticipant(ctx, s.p))
		s.NotNil(s.sml.last().env.Body.Delete)
	})

	s.Run("undo delete sends a create", func() {
		s.Require().NoError(s.hook.UndoDeleteParticipant(ctx, s.p))
		s.NotNil(s.sml.last().env.Body.Create)
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.HookCalls.WithLabelValues("create", "success")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.HookCalls.WithLabelValues("undo_delete", "success")))
}

func (s *LiveSuite) TestFaults() {
	ctx := context.Background()

	s.Run("unauthorized fault", func() {
		s.sml.respond(http.StatusInternalServerError, unauthorizedFault)
		err := s.hook.CreateParticipant(ctx, s.p)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDirectory))
		s.True(IsKind(err, KindUnauthorized))

		var he *Error
		s.Require().True(errors.As(err, &he))
		s.Equal(OpCreate, he.Op)
		s.Equal(s.p, he.Participant)
		s.Contains(he.Detail, "not owned by the caller")
	})

	s.Run("not found fault", func() {
		s.sml.respond(http.StatusInternalServerError, notFoundFault)
		err := s.hook.DeleteParticipant(ctx, s.p)
		s.Require().Error(err)
		s.True(IsKind(err, KindNotFound))
	})

	s.Run("plain http error is other", func() {
		s.sml.respond(http.StatusBadGateway, "upstream down")
		err := s.hook.DeleteParticipant(ctx, s.p)
		s.Require().Error(err)
		s.True(IsKind(err, KindOther))
		s.Contains(err.Error(), "502")
	})

	s.Run("connection failure is other", func() {
		s.server.Close()
		err := s.hook.CreateParticipant(ctx, s.p)
		s.Require().Error(err)
		s.True(IsKind(err, KindOther))
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.HookCalls.WithLabelValues("create", "unauthorized")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.HookCalls.WithLabelValues("delete", "not_found")))
}

func TestNewLiveRequiresSMPID(t *testing.T) {
	_, err := NewLive(domain.SMLInfo{ManagementServiceURL: "http://localhost:8080"}, Config{}, nil)
	if err == nil {
		t.Fatal("expected error without smp id")
	}
}

func TestNewLiveRequiresKeyManagerForClientCertificate(t *testing.T) {
	info := domain.SMLInfo{
		ID:                        "digittest",
		ManagementServiceURL:      "https://acc.edelivery.tech.ec.europa.eu/edelivery-sml",
		ClientCertificateRequired: true,
	}
	_, err := NewLive(info, Config{SMPID: "SMP-1"}, nil)
	if err == nil {
		t.Fatal("expected error without key manager")
	}
}
