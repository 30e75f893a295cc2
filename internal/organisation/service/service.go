// Package service manages the data-source profile of a tenant: creation,
// updates, and the identity verification exchange.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"dataspace/internal/organisation/models"
	"dataspace/internal/organisation/store"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/platform/audit"
	"dataspace/pkg/platform/sentinel"
	"dataspace/pkg/requestcontext"
)

// Service coordinates organisation operations against the store.
type Service struct {
	store  store.Store
	logger *slog.Logger
	audit  audit.Publisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// New constructs a Service.
func New(s store.Store, opts ...Option) *Service {
	svc := &Service{
		store:  s,
		logger: slog.Default(),
		audit:  audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create registers the data-source profile of the calling tenant. Each tenant
// has exactly one.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, p models.Profile) (*models.Organisation, error) {
	o, err := models.New(orgID, p, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, o); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "organisation already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organisation")
	}
	s.logger.InfoContext(ctx, "organisation created", "organisation_id", o.ID, "name", o.Name)
	return o, nil
}

// Get returns the profile of the calling tenant.
func (s *Service) Get(ctx context.Context, orgID uuid.UUID) (*models.Organisation, error) {
	o, err := s.store.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organisation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organisation")
	}
	return o, nil
}

// Update overwrites the editable profile fields.
func (s *Service) Update(ctx context.Context, orgID uuid.UUID, p models.Profile) (*models.Organisation, error) {
	o, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := o.ApplyProfile(p, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, o); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update organisation")
	}
	s.logger.InfoContext(ctx, "organisation updated", "organisation_id", o.ID)
	return o, nil
}

// BeginVerification records the presentation exchange that will prove the
// organisation's identity. The exchange is resolved by the present_proof
// webhook.
func (s *Service) BeginVerification(ctx context.Context, orgID uuid.UUID, presentationExchangeID string) (*models.Organisation, error) {
	o, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := o.BeginVerification(presentationExchangeID, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, o); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification exchange")
	}
	s.logger.InfoContext(ctx, "organisation verification started",
		"organisation_id", o.ID, "presentation_exchange_id", presentationExchangeID)
	return o, nil
}

// ResolveVerification applies a presentation exchange outcome. Called from the
// reconciliation path when a present_proof event matches no agreement record
// but does match the organisation's recorded exchange.
func (s *Service) ResolveVerification(ctx context.Context, presentationExchangeID, state string) error {
	o, err := s.store.FindByVerificationExchange(ctx, presentationExchangeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up verification exchange")
	}
	if err := o.ResolveVerification(presentationExchangeID, state, requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.Update(ctx, o); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification state")
	}

	_ = s.audit.Publish(ctx, audit.Event{
		ID:         uuid.New(),
		Kind:       audit.KindOrganisationVerified,
		OccurredAt: requestcontext.Now(ctx),
		ActorID:    o.ID.String(),
		RequestID:  requestcontext.RequestID(ctx),
		Detail: map[string]string{
			"presentation_exchange_id": presentationExchangeID,
			"state":                    state,
		},
	})
	s.logger.InfoContext(ctx, "organisation verification resolved",
		"organisation_id", o.ID, "state", state, "verified", o.Verification.Verified)
	return nil
}
