package smlhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/platform/metrics"
)

const maxResponseBytes = 1 << 20

// Config holds the static settings of the live hook.
type Config struct {
	// SMPID is the ID this server is registered under in the SML.
	SMPID          string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Live sends participant registrations to an SML over SOAP.
type Live struct {
	endpoint string
	smpID    string
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type LiveOption func(*Live)

func WithLiveLogger(logger *slog.Logger) LiveOption {
	return func(l *Live) { l.logger = logger }
}

func WithLiveMetrics(m *metrics.Metrics) LiveOption {
	return func(l *Live) { l.metrics = m }
}

// WithHTTPClient replaces the transport built from the SML info. Tests use it
// to point the hook at an httptest server.
func WithHTTPClient(client *http.Client) LiveOption {
	return func(l *Live) { l.client = client }
}

// NewLive builds a hook for info. keys may be nil when info does not require
// a client certificate.
func NewLive(info domain.SMLInfo, cfg Config, keys KeyManager, opts ...LiveOption) (*Live, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.SMPID) == "" {
		return nil, errors.New("sml hook requires an smp id")
	}
	endpoint := info.ManageParticipantEndpoint()
	l := &Live{
		endpoint: endpoint,
		smpID:    cfg.SMPID,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("smpd/smlhook"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		client, err := newClient(info, cfg, keys)
		if err != nil {
			return nil, err
		}
		l.client = client
	}
	return l, nil
}

func newClient(info domain.SMLInfo, cfg Config, keys KeyManager) (*http.Client, error) {
	u, err := url.Parse(info.ManageParticipantEndpoint())
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid sml endpoint %q", info.ManageParticipantEndpoint())
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
	}
	if u.Scheme == "https" {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if info.ClientCertificateRequired {
			if keys == nil {
				return nil, fmt.Errorf("sml %s requires a client certificate but no key manager is configured", info.ID)
			}
			tlsCfg, err = keys.ClientTLSConfig()
			if err != nil {
				return nil, err
			}
		}
		if isLocalhost(u.Hostname()) {
			skipHostnameVerification(tlsCfg)
		}
		transport.TLSClientConfig = tlsCfg
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   cfg.RequestTimeout,
	}, nil
}

func isLocalhost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// skipHostnameVerification keeps chain verification but accepts any host
// name in the leaf certificate.
func skipHostnameVerification(cfg *tls.Config) {
	roots := cfg.RootCAs
	cfg.InsecureSkipVerify = true
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("sml presented no certificate")
		}
		intermediates := x509.NewCertPool()
		for _, c := range cs.PeerCertificates[1:] {
			intermediates.AddCert(c)
		}
		_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
		})
		return err
	}
}

func (l *Live) CreateParticipant(ctx context.Context, p identifier.Participant) error {
	return l.call(ctx, OpCreate, p)
}

// UndoCreateParticipant removes a registration made by CreateParticipant.
func (l *Live) UndoCreateParticipant(ctx context.Context, p identifier.Participant) error {
	return l.call(ctx, OpUndoCreate, p)
}

func (l *Live) DeleteParticipant(ctx context.Context, p identifier.Participant) error {
	return l.call(ctx, OpDelete, p)
}

// UndoDeleteParticipant registers a participant removed by DeleteParticipant
// again.
func (l *Live) UndoDeleteParticipant(ctx context.Context, p identifier.Participant) error {
	return l.call(ctx, OpUndoDelete, p)
}

func (l *Live) call(ctx context.Context, op Op, p identifier.Participant) error {
	create := op == OpCreate || op == OpUndoDelete
	action := actionDelete
	if create {
		action = actionCreate
	}

	ctx, span := l.tracer.Start(ctx, "sml."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sml.op", string(op)),
			attribute.String("sml.participant", p.String()),
			attribute.String("sml.endpoint", l.endpoint),
		),
	)
	defer span.End()

	start := time.Now()
	if op == OpUndoCreate || op == OpUndoDelete {
		l.logger.WarnContext(ctx, "compensating sml registration", "op", op, "participant", p.String(), "endpoint", l.endpoint)
	} else {
		l.logger.InfoContext(ctx, "sending sml registration", "op", op, "participant", p.String(), "endpoint", l.endpoint)
	}

	if he := l.send(ctx, op, action, create, p); he != nil {
		outcome := he.Kind.String()
		l.metrics.ObserveHookCall(string(op), outcome, start)
		span.RecordError(he)
		span.SetStatus(codes.Error, outcome)
		l.logger.ErrorContext(ctx, "sml registration failed", "op", op, "participant", p.String(), "kind", outcome, "error", he)
		return domainError(he)
	}

	l.metrics.ObserveHookCall(string(op), "success", start)
	l.logger.InfoContext(ctx, "sml registration succeeded", "op", op, "participant", p.String(), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (l *Live) send(ctx context.Context, op Op, action string, create bool, p identifier.Participant) *Error {
	fail := func(kind Kind, detail string, err error) *Error {
		return &Error{Kind: kind, Op: op, Participant: p, Detail: detail, Err: err}
	}

	payload, err := encodeRequest(create, l.smpID, p)
	if err != nil {
		return fail(KindOther, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fail(KindOther, "build request", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+action+`"`)

	resp, err := l.client.Do(req)
	if err != nil {
		return fail(KindOther, "", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(KindOther, "read response", err)
	}

	if kind, detail, ok := decodeFault(respBody); ok {
		return fail(kind, detail, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(KindOther, fmt.Sprintf("unexpected http status %d", resp.StatusCode), nil)
	}
	return nil
}
