// Package service is the read facade plus API entrypoint for agreement
// records. All mutation is delegated to the reconciliation engine so that
// manual actions and webhook events share one serialization and transaction
// scope.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"dataspace/internal/ddarecord/models"
	"dataspace/internal/ddarecord/store"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
)

// Mutator is the slice of the reconciliation engine the service drives.
type Mutator interface {
	CreateRecord(ctx context.Context, connectionID, templateID string, renegotiate bool) (*models.Record, error)
	Reject(ctx context.Context, recordID uuid.UUID) (*models.Record, error)
	Abandon(ctx context.Context, recordID uuid.UUID) (*models.Record, error)
}

// Service exposes record reads and API-driven record actions.
type Service struct {
	store  store.Store
	engine Mutator
	logger *slog.Logger
}

// New constructs a record service.
func New(s store.Store, engine Mutator, logger *slog.Logger) *Service {
	return &Service{store: s, engine: engine, logger: logger}
}

// Create starts a negotiation; see Engine.CreateRecord for the conflict and
// renegotiation rules.
func (s *Service) Create(ctx context.Context, connectionID, templateID string, renegotiate bool) (*models.Record, error) {
	record, err := s.engine.CreateRecord(ctx, connectionID, templateID, renegotiate)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "agreement record created",
		"record_id", record.ID, "connection_id", connectionID, "template_id", templateID)
	return record, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agreement record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return record, nil
}

// List pages over records, newest first.
func (s *Service) List(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Record, pagination.Meta, error) {
	records, total, err := s.store.List(ctx, f, q)
	if err != nil {
		return nil, pagination.Meta{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	return records, pagination.NewMeta(q, total), nil
}

// ListRevisions returns the audit chain of a record, oldest first.
func (s *Service) ListRevisions(ctx context.Context, id uuid.UUID) ([]*models.Revision, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	revisions, err := s.store.ListRevisions(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list record revisions")
	}
	return revisions, nil
}

// Reject terminally refuses a negotiation.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	return s.engine.Reject(ctx, id)
}

// Abandon manually terminates a stuck exchange.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	return s.engine.Abandon(ctx, id)
}
