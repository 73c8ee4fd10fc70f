package servicegroup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"smpd/internal/identifier"
	"smpd/internal/storage"
	"smpd/internal/storage/memory"
	dErrors "smpd/pkg/domain-errors"
)

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
	m, err := New(memory.NewBackend().ServiceGroups, identifier.NewNormalizer())
	s.Require().NoError(err)
	s.manager = m
}

func (s *ManagerSuite) TestNewRequiresStore() {
	_, err := New(nil, nil)
	s.Require().ErrorIs(err, ErrStoreRequired)
}

func (s *ManagerSuite) TestCreateAndLookup() {
	p := identifier.Participant{Scheme: "iso6523", Value: "9915:Test"}
	sg := s.manager.Build(p, "alice", "")

	_, err := s.manager.Create(s.ctx, sg)
	s.Require().NoError(err)

	s.Run("lookup folds case", func() {
		got, err := s.manager.GetByParticipant(s.ctx, identifier.Participant{Scheme: "iso6523", Value: "9915:TEST"})
		s.Require().NoError(err)
		s.Equal("alice", got.OwnerID)
		s.Equal("9915:test", got.Participant.Value)
	})

	s.Run("second create conflicts", func() {
		_, err := s.manager.Create(s.ctx, sg)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("mismatched key is rejected", func() {
		bad := sg
		bad.Key = "forged"
		_, err := s.manager.Create(s.ctx, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ManagerSuite) TestUpdateKeepsParticipant() {
	sg := s.manager.Build(identifier.Participant{Scheme: "iso6523", Value: "9915:upd"}, "alice", "")
	_, err := s.manager.Create(s.ctx, sg)
	s.Require().NoError(err)

	next := sg
	next.OwnerID = "bob"
	next.Participant.Value = "9915:other"
	change, err := s.manager.Update(s.ctx, next)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	got, err := s.manager.Get(s.ctx, sg.Key)
	s.Require().NoError(err)
	s.Equal("bob", got.OwnerID)
	s.Equal("9915:upd", got.Participant.Value)

	change, err = s.manager.Update(s.ctx, next)
	s.Require().NoError(err)
	s.Equal(storage.Unchanged, change)

	missing := s.manager.Build(identifier.Participant{Scheme: "iso6523", Value: "9915:none"}, "x", "")
	change, err = s.manager.Update(s.ctx, missing)
	s.Require().NoError(err)
	s.Equal(storage.NotFound, change)
}

func (s *ManagerSuite) TestListOfOwnerAndRestore() {
	for _, v := range []string{"9915:a", "9915:b", "9915:c"} {
		owner := "alice"
		if v == "9915:b" {
			owner = "bob"
		}
		_, err := s.manager.Create(s.ctx, s.manager.Build(identifier.Participant{Scheme: "iso6523", Value: v}, owner, ""))
		s.Require().NoError(err)
	}

	mine, err := s.manager.ListOfOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(mine, 2)

	victim := mine[0]
	change, err := s.manager.Delete(s.ctx, victim.Key)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	s.Require().NoError(s.manager.Restore(s.ctx, victim))
	s.Require().NoError(s.manager.Restore(s.ctx, victim), "restoring a present record is a no-op")
	n, err := s.manager.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
}
