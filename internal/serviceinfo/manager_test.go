package serviceinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/notify"
	"smpd/internal/servicegroup"
	"smpd/internal/storage"
	"smpd/internal/storage/memory"
	"smpd/internal/storage/storagetest"
	dErrors "smpd/pkg/domain-errors"
)

type ManagerSuite struct {
	suite.Suite
	ctx      context.Context
	manager  *Manager
	recorder *notify.Recorder
	sg       domain.ServiceGroup
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	backend := memory.NewBackend()
	groups, err := servicegroup.New(backend.ServiceGroups, nil)
	s.Require().NoError(err)
	s.sg = storagetest.ServiceGroup("si", "alice")
	_, err = groups.Create(s.ctx, s.sg)
	s.Require().NoError(err)

	s.recorder = &notify.Recorder{}
	bus := notify.NewBus()
	bus.Subscribe("recorder", s.recorder.Handle)
	s.manager, err = New(s.ctx, backend.ServiceInformation, groups, nil, WithBus(bus))
	s.Require().NoError(err)
}

func (s *ManagerSuite) submission(processes ...domain.Process) domain.ServiceInformation {
	si := storagetest.ServiceInformation(s.sg, "doc1", processes...)
	si.ID = ""
	return si
}

func (s *ManagerSuite) TestMergeTwiceIsUnchanged() {
	si := s.submission(storagetest.Process("p1",
		storagetest.Endpoint("peppol-transport-as4-v2_0", "https://a"),
		storagetest.Endpoint("busdox-transport-as2-ver2p0", "https://b"),
	))

	first, change, err := s.manager.Merge(s.ctx, si)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)
	s.NotEmpty(first.ID)

	second, change, err := s.manager.Merge(s.ctx, si)
	s.Require().NoError(err)
	s.Equal(storage.Unchanged, change)
	s.Equal(first.ID, second.ID)
	s.Equal(first.EndpointCount(), second.EndpointCount())

	n, err := s.manager.CountEndpoints(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal([]notify.EventType{notify.ServiceInformationCreated}, s.recorder.Types())
}

func (s *ManagerSuite) TestMergeAppendsNewProcess() {
	_, _, err := s.manager.Merge(s.ctx, s.submission(storagetest.Process("p1", storagetest.Endpoint("peppol-transport-as4-v2_0", "https://a"))))
	s.Require().NoError(err)
	merged, change, err := s.manager.Merge(s.ctx, s.submission(storagetest.Process("p2", storagetest.Endpoint("peppol-transport-as4-v2_0", "https://a"))))
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)
	s.Len(merged.Processes, 2)

	inUse, err := s.manager.ContainsTransportProfile(s.ctx, "peppol-transport-as4-v2_0")
	s.Require().NoError(err)
	s.True(inUse)
	inUse, err = s.manager.ContainsTransportProfile(s.ctx, "busdox-transport-start")
	s.Require().NoError(err)
	s.False(inUse)
}

func (s *ManagerSuite) TestMergeValidates() {
	s.Run("no processes", func() {
		_, _, err := s.manager.Merge(s.ctx, s.submission())
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("endpoint without transport profile", func() {
		_, _, err := s.manager.Merge(s.ctx, s.submission(storagetest.Process("p1", storagetest.Endpoint("", "https://a"))))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown service group", func() {
		si := s.submission(storagetest.Process("p1", storagetest.Endpoint("peppol-transport-as4-v2_0", "https://a")))
		si.ServiceGroupKey = "missing"
		_, _, err := s.manager.Merge(s.ctx, si)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ManagerSuite) TestDeleteProcess() {
	_, _, err := s.manager.Merge(s.ctx, s.submission(
		storagetest.Process("p1", storagetest.Endpoint("peppol-transport-as4-v2_0", "https://a")),
		storagetest.Process("p2", storagetest.Endpoint("peppol-transport-as4-v2_0", "https://a")),
	))
	s.Require().NoError(err)
	doc := storagetest.DocumentType("doc1")
	p1 := identifier.Process{Scheme: "cenbii-procid-ubl", Value: "p1"}
	p2 := identifier.Process{Scheme: "cenbii-procid-ubl", Value: "p2"}

	change, err := s.manager.DeleteProcess(s.ctx, s.sg.Key, doc, p1)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	change, err = s.manager.DeleteProcess(s.ctx, s.sg.Key, doc, p1)
	s.Require().NoError(err)
	s.Equal(storage.Unchanged, change)

	change, err = s.manager.DeleteProcess(s.ctx, s.sg.Key, doc, p2)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	_, err = s.manager.Get(s.ctx, s.sg.Key, doc)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "last process removes the record")
}

func (s *ManagerSuite) TestDeleteAllOfServiceGroup() {
	for _, doc := range []string{"doc1", "doc2"} {
		si := storagetest.ServiceInformation(s.sg, doc, storagetest.Process("p1", storagetest.Endpoint("peppol-transport-as4-v2_0", "https://a")))
		_, _, err := s.manager.Merge(s.ctx, si)
		s.Require().NoError(err)
	}
	n, err := s.manager.DeleteAllOfServiceGroup(s.ctx, s.sg.Key)
	s.Require().NoError(err)
	s.Equal(2, n)

	all, err := s.manager.GetAllOfServiceGroup(s.ctx, s.sg.Key)
	s.Require().NoError(err)
	s.Empty(all)
}
