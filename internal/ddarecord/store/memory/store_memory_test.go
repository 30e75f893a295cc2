package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	ddamodels "dataspace/internal/dda/models"
	"dataspace/internal/ddarecord/models"
	"dataspace/internal/ddarecord/store"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
)

type RecordStoreSuite struct {
	suite.Suite
	ctx      context.Context
	store    *Store
	template *ddamodels.Template
	now      time.Time
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreSuite))
}

func (s *RecordStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	body := ddamodels.Body{
		Purpose:     "research",
		LawfulBasis: "consent",
		DataController: ddamodels.DataController{
			Name: "Acme Research",
		},
		DataSharingRestrictions: ddamodels.DataSharingRestrictions{
			PolicyURL:           "https://acme.example/policy",
			Jurisdiction:        "EU",
			DataRetentionPeriod: 365,
		},
	}
	tmpl, err := ddamodels.NewTemplate(uuid.New(), body, nil, s.now)
	s.Require().NoError(err)
	s.template = tmpl
}

func (s *RecordStoreSuite) TestOneActiveRecordPerPair() {
	first := models.NewRecord("conn-1", s.template, s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))

	second := models.NewRecord("conn-1", s.template, s.now.Add(time.Minute))
	err := s.store.Create(s.ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// Other connections are independent.
	other := models.NewRecord("conn-2", s.template, s.now)
	s.Require().NoError(s.store.Create(s.ctx, other))

	// Terminal records free the slot.
	s.Require().NoError(first.Reject(s.now.Add(time.Minute)))
	s.Require().NoError(s.store.Update(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
}

func (s *RecordStoreSuite) TestCorrelationLookups() {
	r := models.NewRecord("conn-1", s.template, s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))
	s.Require().NoError(r.ApplyRequestSent("thread-1", "pex-1", "verifier", s.now))
	s.Require().NoError(s.store.Update(s.ctx, r))

	byThread, err := s.store.FindByThreadID(s.ctx, "thread-1")
	s.Require().NoError(err)
	s.Equal(r.ID, byThread.ID)

	byPex, err := s.store.FindByPresentationExchangeID(s.ctx, "pex-1")
	s.Require().NoError(err)
	s.Equal(r.ID, byPex.ID)

	_, err = s.store.FindByThreadID(s.ctx, "")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RecordStoreSuite) TestFindOldestPendingByConnection() {
	older := models.NewRecord("conn-1", s.template, s.now)
	s.Require().NoError(s.store.Create(s.ctx, older))

	other, err := ddamodels.NewTemplate(s.template.OrganisationID, s.template.Body, nil, s.now)
	s.Require().NoError(err)
	newer := models.NewRecord("conn-1", other, s.now.Add(time.Minute))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	got, err := s.store.FindOldestPendingByConnection(s.ctx, "conn-1")
	s.Require().NoError(err)
	s.Equal(older.ID, got.ID)

	_, err = s.store.FindOldestPendingByConnection(s.ctx, "conn-9")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RecordStoreSuite) TestListFiltersAndPages() {
	for i := 0; i < 25; i++ {
		tmpl, err := ddamodels.NewTemplate(s.template.OrganisationID, s.template.Body, nil, s.now)
		s.Require().NoError(err)
		r := models.NewRecord("conn-1", tmpl, s.now.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	page, total, err := s.store.List(s.ctx, store.Filter{ConnectionID: "conn-1"}, pagination.New(20, 10))
	s.Require().NoError(err)
	s.Equal(25, total)
	s.Len(page, 5)

	page, total, err = s.store.List(s.ctx, store.Filter{State: models.StateVerified}, pagination.New(0, 10))
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(page)
}

func (s *RecordStoreSuite) TestCountActiveByTemplate() {
	r := models.NewRecord("conn-1", s.template, s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	count, err := s.store.CountActiveByTemplate(s.ctx, s.template.TemplateID)
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Require().NoError(r.Supersede(s.now))
	s.Require().NoError(s.store.Update(s.ctx, r))

	count, err = s.store.CountActiveByTemplate(s.ctx, s.template.TemplateID)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *RecordStoreSuite) TestRevisionChain() {
	r := models.NewRecord("conn-1", s.template, s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	previous := r.State
	s.Require().NoError(r.ApplyRequestSent("thread-1", "pex-1", "verifier", s.now))
	rev, err := models.NewRevision(r, previous, "request_sent", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.AppendRevision(s.ctx, rev))

	previous = r.State
	s.Require().NoError(r.ApplyPresentationReceived(nil, s.now.Add(time.Minute)))
	rev, err = models.NewRevision(r, previous, "presentation_received", s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.store.AppendRevision(s.ctx, rev))

	chain, err := s.store.ListRevisions(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(chain, 2)
	s.Equal(models.StatePending, chain[0].PreviousState)
	s.Equal(models.StateRequested, chain[0].NewState)
	s.Equal(models.StateRequested, chain[1].PreviousState)
	s.Equal(models.StatePresented, chain[1].NewState)
}
