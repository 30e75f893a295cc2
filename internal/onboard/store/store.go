// Package store defines persistence for onboarded users.
package store

import (
	"context"

	"github.com/google/uuid"

	"dataspace/internal/onboard/models"
)

// Store persists users. Create returns sentinel.ErrConflict when the email is
// already registered; lookups return sentinel.ErrNotFound on a miss.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
}
