package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dataspace/internal/organisation/models"
	"dataspace/internal/organisation/store/memory"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/platform/sentinel"
	"dataspace/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
	orgID   uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	s.service = New(memory.New())
	s.orgID = uuid.New()
}

func (s *ServiceSuite) profile(name string) models.Profile {
	return models.Profile{
		Name:      name,
		Location:  "Stockholm",
		PolicyURL: "https://acme.example/policy",
		Sector:    "Healthcare",
	}
}

func (s *ServiceSuite) TestCreateGetUpdate() {
	created, err := s.service.Create(s.ctx, s.orgID, s.profile("Acme Research"))
	s.Require().NoError(err)
	s.Equal(s.orgID, created.ID)
	s.Equal(models.VerificationStateUnverified, created.Verification.State)

	got, err := s.service.Get(s.ctx, s.orgID)
	s.Require().NoError(err)
	s.Equal("Acme Research", got.Name)

	updated, err := s.service.Update(s.ctx, s.orgID, s.profile("Acme Labs"))
	s.Require().NoError(err)
	s.Equal("Acme Labs", updated.Name)
}

func (s *ServiceSuite) TestCreateIsOncePerTenant() {
	_, err := s.service.Create(s.ctx, s.orgID, s.profile("Acme Research"))
	s.Require().NoError(err)

	_, err = s.service.Create(s.ctx, s.orgID, s.profile("Acme Again"))
	s.Require().Error(err)
	s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestGetUnknownTenant() {
	_, err := s.service.Get(s.ctx, uuid.New())
	s.Require().Error(err)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestVerificationFlow() {
	_, err := s.service.Create(s.ctx, s.orgID, s.profile("Acme Research"))
	s.Require().NoError(err)

	o, err := s.service.BeginVerification(s.ctx, s.orgID, "pex-verify-1")
	s.Require().NoError(err)
	s.Equal(models.VerificationStateRequestSent, o.Verification.State)
	s.False(o.Verification.Verified)

	s.Require().NoError(s.service.ResolveVerification(s.ctx, "pex-verify-1", models.VerificationStateVerified))

	got, err := s.service.Get(s.ctx, s.orgID)
	s.Require().NoError(err)
	s.True(got.Verification.Verified)
	s.Equal(models.VerificationStateVerified, got.Verification.State)
}

func (s *ServiceSuite) TestResolveUnknownExchange() {
	_, err := s.service.Create(s.ctx, s.orgID, s.profile("Acme Research"))
	s.Require().NoError(err)

	err = s.service.ResolveVerification(s.ctx, "pex-unknown", models.VerificationStateVerified)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestAbandonedVerificationStaysUnverified() {
	_, err := s.service.Create(s.ctx, s.orgID, s.profile("Acme Research"))
	s.Require().NoError(err)
	_, err = s.service.BeginVerification(s.ctx, s.orgID, "pex-verify-1")
	s.Require().NoError(err)

	s.Require().NoError(s.service.ResolveVerification(s.ctx, "pex-verify-1", models.VerificationStateAbandoned))

	got, err := s.service.Get(s.ctx, s.orgID)
	s.Require().NoError(err)
	s.False(got.Verification.Verified)
	s.Equal(models.VerificationStateAbandoned, got.Verification.State)
}
