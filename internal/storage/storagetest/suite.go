package storagetest

import (
	"context"

	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/storage"
	"smpd/pkg/platform/sentinel"
)

// BackendSuite checks the storage contract against one backend technology.
// Open must return an empty backend; it is called once per test.
type BackendSuite struct {
	suite.Suite
	Open    func() *storage.Backend
	backend *storage.Backend
	ctx     context.Context
}

func (s *BackendSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = s.Open()
	s.Require().NotNil(s.backend)
}

func (s *BackendSuite) TearDownTest() {
	if s.backend != nil {
		s.Require().NoError(s.backend.Close())
	}
}

func (s *BackendSuite) TestCreate() {
	groups := s.backend.ServiceGroups
	sg := ServiceGroup("create", "alice")

	s.Run("inserts and returns the stored record", func() {
		stored, err := groups.Create(s.ctx, sg)
		s.Require().NoError(err)
		s.Equal(sg, stored)

		got, err := groups.Get(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.Equal(sg, got)
	})

	s.Run("duplicate key is a conflict", func() {
		dup := sg
		dup.OwnerID = "mallory"
		_, err := groups.Create(s.ctx, dup)
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		got, err := groups.Get(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.Equal("alice", got.OwnerID)
	})
}

func (s *BackendSuite) TestUpdate() {
	groups := s.backend.ServiceGroups
	sg := ServiceGroup("update", "alice")

	s.Run("missing record reports not found without error", func() {
		change, err := groups.Update(s.ctx, sg)
		s.Require().NoError(err)
		s.Equal(storage.NotFound, change)
	})

	_, err := groups.Create(s.ctx, sg)
	s.Require().NoError(err)

	s.Run("equal record is unchanged", func() {
		change, err := groups.Update(s.ctx, sg)
		s.Require().NoError(err)
		s.Equal(storage.Unchanged, change)
	})

	s.Run("different record is changed", func() {
		next := sg
		next.OwnerID = "bob"
		change, err := groups.Update(s.ctx, next)
		s.Require().NoError(err)
		s.Equal(storage.Changed, change)

		got, err := groups.Get(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.Equal("bob", got.OwnerID)
	})
}

func (s *BackendSuite) TestDelete() {
	groups := s.backend.ServiceGroups
	sg := ServiceGroup("delete", "alice")

	s.Run("missing record is unchanged", func() {
		change, err := groups.Delete(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.Equal(storage.Unchanged, change)
	})

	s.Run("existing record is removed", func() {
		_, err := groups.Create(s.ctx, sg)
		s.Require().NoError(err)

		change, err := groups.Delete(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.Equal(storage.Changed, change)

		_, err = groups.Get(s.ctx, sg.Key)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		ok, err := groups.Contains(s.ctx, sg.Key)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *BackendSuite) TestReads() {
	groups := s.backend.ServiceGroups
	for _, suffix := range []string{"c", "a", "b"} {
		_, err := groups.Create(s.ctx, ServiceGroup(suffix, "owner"))
		s.Require().NoError(err)
	}

	n, err := groups.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)

	list, err := groups.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal(ServiceGroup("a", "owner").Key, list[0].Key)
	s.Equal(ServiceGroup("c", "owner").Key, list[2].Key)

	ok, err := groups.Contains(s.ctx, ServiceGroup("b", "owner").Key)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *BackendSuite) TestScopedListing() {
	sgA := ServiceGroup("scope-a", "alice")
	sgB := ServiceGroup("scope-b", "bob")

	for _, r := range []domain.Redirect{
		Redirect(sgA, "doc1", "http://a"),
		Redirect(sgA, "doc2", "http://a2"),
		Redirect(sgB, "doc1", "http://b"),
	} {
		_, err := s.backend.Redirects.Create(s.ctx, r)
		s.Require().NoError(err)
	}

	ofA, err := s.backend.Redirects.ListByScope(s.ctx, sgA.Key)
	s.Require().NoError(err)
	s.Len(ofA, 2)
	for _, r := range ofA {
		s.Equal(sgA.Key, r.ServiceGroupKey)
	}

	none, err := s.backend.Redirects.ListByScope(s.ctx, ServiceGroup("other", "x").Key)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *BackendSuite) TestServiceInformationRoundTrip() {
	sg := ServiceGroup("si", "alice")
	si := ServiceInformation(sg, "doc1",
		Process("proc1", Endpoint("peppol-transport-as4-v2_0", "https://ap.example.org/as4")),
		Process("proc2",
			Endpoint("peppol-transport-as4-v2_0", "https://ap.example.org/as4"),
			Endpoint("busdox-transport-as2-ver2p0", "https://ap.example.org/as2"),
		),
	)
	_, err := s.backend.ServiceInformation.Create(s.ctx, si)
	s.Require().NoError(err)

	got, err := s.backend.ServiceInformation.Get(s.ctx, si.StorageKey())
	s.Require().NoError(err)
	s.True(si.Equal(got), "service information must round-trip without loss")
	s.Equal(3, got.EndpointCount())

	s.Run("returned records are defensive copies", func() {
		got.Processes[0].Endpoints[0].EndpointReference = "https://evil.example.org"
		got.Processes = append(got.Processes, Process("proc3"))

		again, err := s.backend.ServiceInformation.Get(s.ctx, si.StorageKey())
		s.Require().NoError(err)
		s.True(si.Equal(again))
	})
}

func (s *BackendSuite) TestSettingsSingleton() {
	settings := domain.Settings{SMLRequired: true, DirectoryHostName: "https://directory.peppol.eu"}
	_, err := s.backend.Settings.Create(s.ctx, settings)
	s.Require().NoError(err)

	settings.SMLEnabled = true
	change, err := s.backend.Settings.Update(s.ctx, settings)
	s.Require().NoError(err)
	s.Equal(storage.Changed, change)

	got, err := s.backend.Settings.Get(s.ctx, domain.SettingsKey)
	s.Require().NoError(err)
	s.Equal(settings, got)
}

func (s *BackendSuite) TestSeedDefaults() {
	s.Require().NoError(storage.SeedDefaults(s.ctx, s.backend))
	s.Require().NoError(storage.SeedDefaults(s.ctx, s.backend), "seeding twice is a no-op")

	profiles, err := s.backend.TransportProfiles.List(s.ctx)
	s.Require().NoError(err)
	s.Len(profiles, len(storage.DefaultTransportProfiles()))

	sml, err := s.backend.SMLInfos.Get(s.ctx, "digitprod")
	s.Require().NoError(err)
	s.True(sml.ClientCertificateRequired)
	s.Equal("https://edelivery.tech.ec.europa.eu/edelivery-sml/manageparticipantidentifier", sml.ManageParticipantEndpoint())
}
