package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/storage/memory"
	"smpd/internal/storage/storagetest"
	"smpd/pkg/platform/sentinel"
)

type CacheSuite struct {
	suite.Suite
	ctx   context.Context
	inner *storagetest.Faulty[domain.ServiceGroup]
	cache *Collection[domain.ServiceGroup]
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.inner = storagetest.NewFaulty[domain.ServiceGroup](memory.NewCollection[domain.ServiceGroup]())
	s.cache = New[domain.ServiceGroup](s.inner, 0)
}

func (s *CacheSuite) TestGetIsServedFromCache() {
	sg := storagetest.ServiceGroup("cached", "alice")
	_, err := s.cache.Create(s.ctx, sg)
	s.Require().NoError(err)

	for range 3 {
		got, err := s.cache.Get(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.Equal(sg, got)
	}
	s.Equal(1, s.inner.Calls(storagetest.OpGet))
}

func (s *CacheSuite) TestMutationsInvalidate() {
	sg := storagetest.ServiceGroup("invalidate", "alice")
	_, err := s.cache.Create(s.ctx, sg)
	s.Require().NoError(err)
	_, err = s.cache.Get(s.ctx, sg.Key)
	s.Require().NoError(err)

	s.Run("update", func() {
		next := sg
		next.OwnerID = "bob"
		_, err := s.cache.Update(s.ctx, next)
		s.Require().NoError(err)

		got, err := s.cache.Get(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.Equal("bob", got.OwnerID)
	})

	s.Run("delete", func() {
		_, err := s.cache.Delete(s.ctx, sg.Key)
		s.Require().NoError(err)

		_, err = s.cache.Get(s.ctx, sg.Key)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		ok, err := s.cache.Contains(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *CacheSuite) TestMissesAreNotCached() {
	sg := storagetest.ServiceGroup("miss", "alice")
	_, err := s.cache.Get(s.ctx, sg.Key)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	s.Equal(0, s.cache.Len())
}
