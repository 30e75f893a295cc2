// Package store persists agreement records and their revision chains.
package store

import (
	"context"

	"github.com/google/uuid"

	"dataspace/internal/ddarecord/models"
	"dataspace/pkg/pagination"
)

// Filter narrows record listings. Zero values mean "any".
type Filter struct {
	ConnectionID string
	TemplateID   string
	State        models.State
}

// Store is the repository interface for agreement records.
//
// Implementations must guarantee:
//   - Create fails with sentinel.ErrConflict while an active record exists
//     for the same (connection, template) pair
//   - revisions are append-only; Update never touches them
type Store interface {
	Create(ctx context.Context, r *models.Record) error
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	Update(ctx context.Context, r *models.Record) error

	FindByThreadID(ctx context.Context, threadID string) (*models.Record, error)
	FindByPresentationExchangeID(ctx context.Context, presentationExchangeID string) (*models.Record, error)
	FindActive(ctx context.Context, connectionID, templateID string) (*models.Record, error)
	// FindOldestPendingByConnection returns the pending record a freshly sent
	// presentation request binds to. Pending records have no thread id yet,
	// so the engine matches by connection.
	FindOldestPendingByConnection(ctx context.Context, connectionID string) (*models.Record, error)

	List(ctx context.Context, f Filter, q pagination.Query) ([]*models.Record, int, error)
	CountActiveByTemplate(ctx context.Context, templateID string) (int, error)

	AppendRevision(ctx context.Context, rev *models.Revision) error
	// ListRevisions returns the audit chain of a record, oldest first.
	ListRevisions(ctx context.Context, recordID uuid.UUID) ([]*models.Revision, error)
}
