package redirect

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/notify"
	"smpd/internal/platform/metrics"
	"smpd/internal/servicegroup"
	"smpd/internal/storage"
	"smpd/internal/storage/memory"
	"smpd/internal/storage/storagetest"
	dErrors "smpd/pkg/domain-errors"
)

type ManagerSuite struct {
	suite.Suite
	ctx      context.Context
	backend  *storage.Backend
	groups   *servicegroup.Manager
	manager  *Manager
	recorder *notify.Recorder
	sg       domain.ServiceGroup
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = memory.NewBackend()
	groups, err := servicegroup.New(s.backend.ServiceGroups, identifier.NewNormalizer())
	s.Require().NoError(err)
	s.groups = groups

	s.sg = storagetest.ServiceGroup("test", "alice")
	_, err = s.groups.Create(s.ctx, s.sg)
	s.Require().NoError(err)

	s.recorder = &notify.Recorder{}
	bus := notify.NewBus()
	bus.Subscribe("recorder", s.recorder.Handle)
	s.manager, err = New(s.ctx, s.backend.Redirects, s.groups, identifier.NewNormalizer(), WithBus(bus))
	s.Require().NoError(err)
}

func (s *ManagerSuite) redirect(doc, href string) domain.Redirect {
	return domain.Redirect{
		ServiceGroupKey:         s.sg.Key,
		DocumentType:            storagetest.DocumentType(doc),
		TargetHref:              href,
		SubjectUniqueIdentifier: "CN=target",
	}
}

func (s *ManagerSuite) TestNewRequiresServiceGroupManager() {
	_, err := New(s.ctx, s.backend.Redirects, nil, nil)
	s.Require().ErrorIs(err, ErrServiceGroupManagerRequired)
}

func (s *ManagerSuite) TestCreateOrUpdateReplaces() {
	first, change, err := s.manager.CreateOrUpdate(s.ctx, s.redirect("doc1", "http://a"))
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)
	s.NotEmpty(first.ID)

	second, change, err := s.manager.CreateOrUpdate(s.ctx, s.redirect("doc1", "http://b"))
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)
	s.Equal(first.ID, second.ID)

	all, err := s.manager.GetAllOfServiceGroup(s.ctx, s.sg.Key)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("http://b", all[0].TargetHref)

	_, change, err = s.manager.CreateOrUpdate(s.ctx, s.redirect("doc1", "http://b"))
	s.Require().NoError(err)
	s.Equal(storage.Unchanged, change)

	s.Equal([]notify.EventType{notify.RedirectCreated, notify.RedirectUpdated}, s.recorder.Types())
}

func (s *ManagerSuite) TestCreateOrUpdateValidates() {
	s.Run("empty href", func() {
		_, _, err := s.manager.CreateOrUpdate(s.ctx, s.redirect("doc1", " "))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown service group", func() {
		r := s.redirect("doc1", "http://a")
		r.ServiceGroupKey = storagetest.ServiceGroup("ghost", "x").Key
		_, _, err := s.manager.CreateOrUpdate(s.ctx, r)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ManagerSuite) TestDeleteAllOfServiceGroup() {
	for _, doc := range []string{"doc1", "doc2", "doc3"} {
		_, _, err := s.manager.CreateOrUpdate(s.ctx, s.redirect(doc, "http://a"))
		s.Require().NoError(err)
	}
	s.recorder.Reset()

	n, err := s.manager.DeleteAllOfServiceGroup(s.ctx, s.sg.Key)
	s.Require().NoError(err)
	s.Equal(3, n)
	s.Len(s.recorder.Events(), 3)

	count, err := s.manager.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	change, err := s.manager.Delete(s.ctx, s.sg.Key, storagetest.DocumentType("doc1"))
	s.Require().NoError(err)
	s.Equal(storage.Unchanged, change)
}

func (s *ManagerSuite) TestRemoveAndRestoreAreSilent() {
	r, _, err := s.manager.CreateOrUpdate(s.ctx, s.redirect("doc1", "http://a"))
	s.Require().NoError(err)
	s.recorder.Reset()

	removed, err := s.manager.Remove(s.ctx, []domain.Redirect{r})
	s.Require().NoError(err)
	s.Len(removed, 1)
	s.Require().NoError(s.manager.Restore(s.ctx, []domain.Redirect{r}))

	got, err := s.manager.Get(s.ctx, s.sg.Key, storagetest.DocumentType("doc1"))
	s.Require().NoError(err)
	s.Equal(r, got)
	s.Empty(s.recorder.Events())
}

func (s *ManagerSuite) TestOrphansAreCountedOnLoad() {
	orphan := storagetest.Redirect(storagetest.ServiceGroup("gone", "x"), "doc1", "http://a")
	_, err := s.backend.Redirects.Create(s.ctx, orphan)
	s.Require().NoError(err)

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	_, err = New(s.ctx, s.backend.Redirects, s.groups, nil, WithMetrics(m))
	s.Require().NoError(err)
	s.Equal(float64(1), testutil.ToFloat64(m.OrphanRecords.WithLabelValues("redirects")))
}
