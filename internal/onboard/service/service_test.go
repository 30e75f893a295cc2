package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dataspace/internal/jwttoken"
	"dataspace/internal/onboard/store/memory"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
	tokens  *jwttoken.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	s.tokens = jwttoken.NewService("test-signing-key", "dataspace-test")
	s.service = New(memory.New(), s.tokens)
}

func (s *ServiceSuite) TestRegisterAndLogin() {
	u, err := s.service.Register(s.ctx, "Admin@Acme.Example", "Acme Admin", "correct-horse")
	s.Require().NoError(err)
	s.Equal("admin@acme.example", u.Email)
	s.NotEqual(uuid.Nil, u.OrgID)
	s.NotEmpty(u.PasswordHash)

	logged, token, err := s.service.Login(s.ctx, "admin@acme.example", "correct-horse")
	s.Require().NoError(err)
	s.Equal(u.ID, logged.ID)

	claims, err := s.tokens.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal(u.ID.String(), claims.UserID)
	s.Equal(u.OrgID.String(), claims.OrgID)
}

func (s *ServiceSuite) TestDuplicateEmail() {
	_, err := s.service.Register(s.ctx, "admin@acme.example", "Acme Admin", "correct-horse")
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, "admin@acme.example", "Other Admin", "correct-horse")
	s.Require().Error(err)
	s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestLoginRejectsBadCredentials() {
	_, err := s.service.Register(s.ctx, "admin@acme.example", "Acme Admin", "correct-horse")
	s.Require().NoError(err)

	_, _, err = s.service.Login(s.ctx, "admin@acme.example", "wrong-password")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	_, _, err = s.service.Login(s.ctx, "nobody@acme.example", "correct-horse")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestShortPasswordRejected() {
	_, err := s.service.Register(s.ctx, "admin@acme.example", "Acme Admin", "short")
	s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestChangePassword() {
	u, err := s.service.Register(s.ctx, "admin@acme.example", "Acme Admin", "correct-horse")
	s.Require().NoError(err)

	err = s.service.ChangePassword(s.ctx, u.ID, "wrong-password", "battery-staple")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	s.Require().NoError(s.service.ChangePassword(s.ctx, u.ID, "correct-horse", "battery-staple"))

	_, _, err = s.service.Login(s.ctx, "admin@acme.example", "correct-horse")
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	_, _, err = s.service.Login(s.ctx, "admin@acme.example", "battery-staple")
	s.Require().NoError(err)
}
