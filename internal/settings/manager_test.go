package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/notify"
	"smpd/internal/smlinfo"
	"smpd/internal/storage"
	"smpd/internal/storage/memory"
	dErrors "smpd/pkg/domain-errors"
)

type ManagerSuite struct {
	suite.Suite
	ctx      context.Context
	backend  *storage.Backend
	manager  *Manager
	recorder *notify.Recorder
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = memory.NewBackend()
	s.Require().NoError(storage.SeedDefaults(s.ctx, s.backend))
	smls, err := smlinfo.New(s.backend.SMLInfos)
	s.Require().NoError(err)

	s.recorder = &notify.Recorder{}
	bus := notify.NewBus()
	bus.Subscribe("recorder", s.recorder.Handle)
	s.manager, err = New(s.ctx, s.backend.Settings, Defaults(), WithBus(bus), WithSMLInfos(smls))
	s.Require().NoError(err)
}

func (s *ManagerSuite) TestFirstStartUsesDefaults() {
	got, err := s.manager.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(Defaults(), got)

	required, err := s.manager.IsSyncRequired(s.ctx)
	s.Require().NoError(err)
	s.True(required)
	enabled, err := s.manager.IsSyncEnabled(s.ctx)
	s.Require().NoError(err)
	s.False(enabled)
}

func (s *ManagerSuite) TestSMLInfoIDIsNotSeededFromConfig() {
	initial := Defaults()
	initial.SMLInfoID = "digitprod"
	initial.SMLEnabled = true

	m, err := New(s.ctx, memory.NewBackend().Settings, initial)
	s.Require().NoError(err)
	id, err := m.ActiveSMLInfoID(s.ctx)
	s.Require().NoError(err)
	s.Empty(id)
}

func (s *ManagerSuite) TestUpdateRoundTrip() {
	next := domain.Settings{
		RESTWritableAPIDisabled:        true,
		DirectoryIntegrationEnabled:    false,
		DirectoryIntegrationRequired:   false,
		DirectoryIntegrationAutoUpdate: false,
		DirectoryHostName:              "https://directory.example.org",
		SMLEnabled:                     true,
		SMLRequired:                    false,
		SMLInfoID:                      "digittest",
	}

	change, err := s.manager.Update(s.ctx, next)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	got, err := s.manager.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(next, got)

	change, err = s.manager.Update(s.ctx, next)
	s.Require().NoError(err)
	s.Equal(storage.Unchanged, change)

	s.Equal([]notify.EventType{notify.SettingsChanged}, s.recorder.Types())
}

func (s *ManagerSuite) TestUpdateValidates() {
	s.Run("enabling sml without sml info", func() {
		next := Defaults()
		next.SMLEnabled = true
		_, err := s.manager.Update(s.ctx, next)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown sml info", func() {
		next := Defaults()
		next.SMLInfoID = "nope"
		_, err := s.manager.Update(s.ctx, next)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Empty(s.recorder.Events())
}

func (s *ManagerSuite) TestActiveSMLInfo() {
	_, ok, err := s.manager.ActiveSMLInfo(s.ctx)
	s.Require().NoError(err)
	s.False(ok, "nothing is selected on first start")

	next := Defaults()
	next.SMLEnabled = true
	next.SMLInfoID = "local"
	_, err = s.manager.Update(s.ctx, next)
	s.Require().NoError(err)

	info, ok, err := s.manager.ActiveSMLInfo(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("local", info.ID)
	s.Equal("http://localhost:8080/manageparticipantidentifier", info.ManageParticipantEndpoint())
}
