// Package store defines persistence for organisations.
package store

import (
	"context"

	"github.com/google/uuid"

	"dataspace/internal/organisation/models"
)

// Store persists organisations keyed by tenant ID.
//
// Create returns sentinel.ErrConflict when the tenant already has an
// organisation. Get and FindByVerificationExchange return sentinel.ErrNotFound
// when nothing matches.
type Store interface {
	Create(ctx context.Context, o *models.Organisation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Organisation, error)
	Update(ctx context.Context, o *models.Organisation) error
	FindByVerificationExchange(ctx context.Context, presentationExchangeID string) (*models.Organisation, error)
}
