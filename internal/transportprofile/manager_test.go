package transportprofile

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/storage"
	"smpd/internal/storage/memory"
	dErrors "smpd/pkg/domain-errors"
)

type staticUsage map[string]bool

func (u staticUsage) ContainsTransportProfile(_ context.Context, id string) (bool, error) {
	return u[id], nil
}

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	backend := memory.NewBackend()
	s.Require().NoError(storage.SeedDefaults(s.ctx, backend))
	m, err := New(backend.TransportProfiles, WithUsageChecker(staticUsage{"peppol-transport-as4-v2_0": true}))
	s.Require().NoError(err)
	s.manager = m
}

func (s *ManagerSuite) TestSeededProfiles() {
	n, err := s.manager.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(len(storage.DefaultTransportProfiles()), n)

	tp, err := s.manager.Get(s.ctx, "busdox-transport-start")
	s.Require().NoError(err)
	s.True(tp.Deprecated)
}

func (s *ManagerSuite) TestLifecycle() {
	tp := domain.TransportProfile{ID: "custom-profile", Name: "Custom"}
	_, err := s.manager.Create(s.ctx, tp)
	s.Require().NoError(err)

	_, err = s.manager.Create(s.ctx, tp)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	tp.Deprecated = true
	change, err := s.manager.Update(s.ctx, tp)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	change, err = s.manager.Delete(s.ctx, tp.ID)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	ok, err := s.manager.Contains(s.ctx, tp.ID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ManagerSuite) TestDeleteRefusesProfileInUse() {
	_, err := s.manager.Delete(s.ctx, "peppol-transport-as4-v2_0")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ManagerSuite) TestValidation() {
	_, err := s.manager.Create(s.ctx, domain.TransportProfile{ID: " "})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ManagerSuite) TestMutationsAreLogged() {
	var buf bytes.Buffer
	m, err := New(memory.NewBackend().TransportProfiles, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	s.Require().NoError(err)

	tp := domain.TransportProfile{ID: "custom-profile", Name: "Custom"}
	_, err = m.Create(s.ctx, tp)
	s.Require().NoError(err)
	tp.Deprecated = true
	_, err = m.Update(s.ctx, tp)
	s.Require().NoError(err)
	_, err = m.Delete(s.ctx, tp.ID)
	s.Require().NoError(err)

	for _, msg := range []string{"transport profile created", "transport profile updated", "transport profile deleted"} {
		s.Contains(buf.String(), msg)
	}
}
