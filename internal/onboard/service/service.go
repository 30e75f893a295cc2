// Package service implements registration, login and password change for
// portal accounts.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"dataspace/internal/onboard/models"
	"dataspace/internal/onboard/store"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/platform/sentinel"
	"dataspace/pkg/requestcontext"
)

const minPasswordLength = 8

// DefaultTokenTTL is the access token lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID, orgID string, expiresIn time.Duration) (string, error)
}

// Service coordinates user onboarding against the store.
type Service struct {
	store    store.Store
	issuer   TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.tokenTTL = ttl }
}

// New constructs a Service.
func New(s store.Store, issuer TokenIssuer, opts ...Option) *Service {
	svc := &Service{
		store:    s,
		issuer:   issuer,
		tokenTTL: DefaultTokenTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register creates an account. The user's organisation identifier is minted
// here; the organisation profile itself is created later through the
// data-source endpoint.
func (s *Service) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	u, err := models.New(email, name, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID, "organisation_id", u.OrgID)
	return u, nil
}

// Login verifies credentials and issues an access token. Unknown email and
// wrong password return the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email, err := models.NormalizeEmail(email)
	if err != nil {
		return nil, "", err
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.issuer.GenerateAccessToken(u.ID, u.OrgID.String(), s.tokenTTL)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return u, token, nil
}

// ChangePassword rotates the password of the authenticated user after
// re-verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if err := checkPassword(next); err != nil {
		return err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "unknown user")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(current)) != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	u.PasswordHash = hash
	u.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, u); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", u.ID)
	return nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	return nil
}
