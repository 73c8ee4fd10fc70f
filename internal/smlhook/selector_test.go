package smlhook

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/notify"
	"smpd/internal/platform/metrics"
	dErrors "smpd/pkg/domain-errors"
)

type staticSettings struct{ s domain.Settings }

func (f *staticSettings) Get(context.Context) (domain.Settings, error) { return f.s, nil }

type staticSMLs map[string]domain.SMLInfo

func (f staticSMLs) Get(_ context.Context, id string) (domain.SMLInfo, error) {
	info, ok := f[id]
	if !ok {
		return domain.SMLInfo{}, dErrors.Newf(dErrors.CodeNotFound, "sml info %q not found", id)
	}
	return info, nil
}

type SelectorSuite struct {
	suite.Suite
	settings *staticSettings
	smls     staticSMLs
	metrics  *metrics.Metrics
	selector *Selector
}

func TestSelectorSuite(t *testing.T) {
	suite.Run(t, new(SelectorSuite))
}

func (s *SelectorSuite) SetupTest() {
	s.settings = &staticSettings{}
	s.smls = staticSMLs{
		"local": {ID: "local", ManagementServiceURL: "http://localhost:8080", URLSuffixManageParticipant: "/manageparticipantidentifier"},
		"other": {ID: "other", ManagementServiceURL: "http://127.0.0.1:9090", URLSuffixManageParticipant: "/manageparticipantidentifier"},
	}
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	sel, err := NewSelector(s.settings, s.smls, Config{SMPID: "SMP-1"}, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.selector = sel
}

func (s *SelectorSuite) TestSelect() {
	ctx := context.Background()

	s.Run("sync disabled selects noop", func() {
		s.settings.s = domain.Settings{SMLEnabled: false, SMLInfoID: "local"}
		hook, err := s.selector.Select(ctx)
		s.Require().NoError(err)
		s.IsType(Noop{}, hook)
	})

	s.Run("sync enabled without sml info fails", func() {
		s.settings.s = domain.Settings{SMLEnabled: true}
		_, err := s.selector.Select(ctx)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDirectory))
	})

	s.Run("unknown sml info fails", func() {
		s.settings.s = domain.Settings{SMLEnabled: true, SMLInfoID: "missing"}
		_, err := s.selector.Select(ctx)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("live hook is reused while the sml info is unchanged", func() {
		s.settings.s = domain.Settings{SMLEnabled: true, SMLInfoID: "local"}
		first, err := s.selector.Select(ctx)
		s.Require().NoError(err)
		live, ok := first.(*Live)
		s.Require().True(ok)
		s.Equal("http://localhost:8080/manageparticipantidentifier", live.endpoint)

		second, err := s.selector.Select(ctx)
		s.Require().NoError(err)
		s.Same(live, second)
	})

	s.Run("switching sml info builds a new hook", func() {
		s.settings.s = domain.Settings{SMLEnabled: true, SMLInfoID: "other"}
		hook, err := s.selector.Select(ctx)
		s.Require().NoError(err)
		s.Equal("http://127.0.0.1:9090/manageparticipantidentifier", hook.(*Live).endpoint)
	})
}

func (s *SelectorSuite) TestListenerTracksSyncGauge() {
	ctx := context.Background()
	bus := notify.NewBus()
	bus.Subscribe("sml-selector", s.selector.Listener())

	bus.Publish(ctx, notify.SettingsEvent(domain.Settings{SMLEnabled: true, SMLInfoID: "local"}))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.SMLSyncActive))

	bus.Publish(ctx, notify.SettingsEvent(domain.Settings{SMLEnabled: false, SMLRequired: true}))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.SMLSyncActive))
}

func TestNewSelectorRequiresSources(t *testing.T) {
	if _, err := NewSelector(nil, staticSMLs{}, Config{}); err == nil {
		t.Fatal("expected error without settings source")
	}
}
