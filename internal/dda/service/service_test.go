package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dataspace/internal/dda/models"
	"dataspace/internal/dda/store"
	"dataspace/internal/dda/store/memory"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/audit"
	"dataspace/pkg/requestcontext"
)

type stubRecordCounter struct {
	active int
	err    error
}

func (s *stubRecordCounter) CountActiveByTemplate(context.Context, string) (int, error) {
	return s.active, s.err
}

type capturingPublisher struct {
	events []audit.Event
}

func (p *capturingPublisher) Publish(_ context.Context, e audit.Event) error {
	p.events = append(p.events, e)
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	svc     *Service
	records *stubRecordCounter
	audit   *capturingPublisher
	orgID   uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	s.records = &stubRecordCounter{}
	s.audit = &capturingPublisher{}
	s.orgID = uuid.New()
	s.svc = New(memory.New(), s.records, WithAuditPublisher(s.audit))
}

func (s *ServiceSuite) validBody(purpose string) models.Body {
	return models.Body{
		Purpose:     purpose,
		LawfulBasis: "consent",
		DataController: models.DataController{
			Name: "Acme Research",
		},
		DataSharingRestrictions: models.DataSharingRestrictions{
			PolicyURL:           "https://acme.example/policy",
			Jurisdiction:        "EU",
			DataRetentionPeriod: 365,
		},
	}
}

func (s *ServiceSuite) TestCreate() {
	s.Run("starts lineage at version 1 in draft", func() {
		t, err := s.svc.Create(s.ctx, s.orgID, s.validBody("research"), []string{"health"})
		s.Require().NoError(err)
		s.Equal(1, t.Version)
		s.Equal(models.StatusDraft, t.Status)
		s.NotEmpty(t.RevisionID)
		s.Require().Len(s.audit.events, 1)
		s.Equal(audit.KindTemplateCreated, s.audit.events[0].Kind)
	})

	s.Run("rejects invalid body", func() {
		body := s.validBody("research")
		body.Purpose = ""
		_, err := s.svc.Create(s.ctx, s.orgID, body, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUpdate() {
	t, err := s.svc.Create(s.ctx, s.orgID, s.validBody("research"), nil)
	s.Require().NoError(err)

	s.Run("appends a new version", func() {
		next, err := s.svc.Update(s.ctx, s.orgID, t.TemplateID, s.validBody("research v2"), nil)
		s.Require().NoError(err)
		s.Equal(2, next.Version)
		s.NotEqual(t.RevisionID, next.RevisionID)
	})

	s.Run("identical body is a no-op", func() {
		before, err := s.svc.Get(s.ctx, t.TemplateID, 0)
		s.Require().NoError(err)
		same, err := s.svc.Update(s.ctx, s.orgID, t.TemplateID, before.Body, nil)
		s.Require().NoError(err)
		s.Equal(before.Version, same.Version)
	})

	s.Run("published templates are not editable", func() {
		_, err := s.svc.UpdateStatus(s.ctx, s.orgID, t.TemplateID, models.StatusPublished)
		s.Require().NoError(err)
		_, err = s.svc.Update(s.ctx, s.orgID, t.TemplateID, s.validBody("research v3"), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("other organisations see not found", func() {
		_, err := s.svc.Update(s.ctx, uuid.New(), t.TemplateID, s.validBody("x"), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestGet() {
	t, err := s.svc.Create(s.ctx, s.orgID, s.validBody("research"), nil)
	s.Require().NoError(err)
	_, err = s.svc.Update(s.ctx, s.orgID, t.TemplateID, s.validBody("research v2"), nil)
	s.Require().NoError(err)

	s.Run("version 0 means latest", func() {
		got, err := s.svc.Get(s.ctx, t.TemplateID, 0)
		s.Require().NoError(err)
		s.Equal(2, got.Version)
	})

	s.Run("explicit version", func() {
		got, err := s.svc.Get(s.ctx, t.TemplateID, 1)
		s.Require().NoError(err)
		s.Equal(1, got.Version)
		s.False(got.IsLatestVersion)
	})

	s.Run("unknown lineage", func() {
		_, err := s.svc.Get(s.ctx, "missing", 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestList() {
	for i := 0; i < 12; i++ {
		_, err := s.svc.Create(s.ctx, s.orgID, s.validBody("purpose"), nil)
		s.Require().NoError(err)
	}

	templates, meta, err := s.svc.List(s.ctx, store.Filter{OrganisationID: s.orgID}, pagination.New(0, 10))
	s.Require().NoError(err)
	s.Len(templates, 10)
	s.Equal(12, meta.TotalItems)
	s.Equal(2, meta.TotalPages)
	s.True(meta.HasNext)
	s.False(meta.HasPrevious)
}

func (s *ServiceSuite) TestUpdateStatus() {
	t, err := s.svc.Create(s.ctx, s.orgID, s.validBody("research"), nil)
	s.Require().NoError(err)

	s.Run("publish then archive", func() {
		published, err := s.svc.UpdateStatus(s.ctx, s.orgID, t.TemplateID, models.StatusPublished)
		s.Require().NoError(err)
		s.Equal(models.StatusPublished, published.Status)

		archived, err := s.svc.UpdateStatus(s.ctx, s.orgID, t.TemplateID, models.StatusArchived)
		s.Require().NoError(err)
		s.Equal(models.StatusArchived, archived.Status)
	})

	s.Run("archived is terminal", func() {
		_, err := s.svc.UpdateStatus(s.ctx, s.orgID, t.TemplateID, models.StatusDraft)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ServiceSuite) TestArchiveRefusedWithActiveRecords() {
	t, err := s.svc.Create(s.ctx, s.orgID, s.validBody("research"), nil)
	s.Require().NoError(err)
	s.records.active = 3

	_, err = s.svc.UpdateStatus(s.ctx, s.orgID, t.TemplateID, models.StatusArchived)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	got, err := s.svc.Get(s.ctx, t.TemplateID, 0)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, got.Status)
}

func (s *ServiceSuite) TestUpdateTags() {
	t, err := s.svc.Create(s.ctx, s.orgID, s.validBody("research"), nil)
	s.Require().NoError(err)

	tagged, err := s.svc.UpdateTags(s.ctx, s.orgID, t.TemplateID, []string{"health"})
	s.Require().NoError(err)
	s.Equal([]string{"health"}, tagged.Tags)
	s.Equal(1, tagged.Version)
}
