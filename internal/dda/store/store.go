// Package store persists Data Disclosure Agreement template versions.
// Versions are append-only: Append is the single write path for content, and
// it atomically retires the previous latest version of the lineage.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dataspace/internal/dda/models"
	"dataspace/pkg/pagination"
)

// Filter narrows listings. Zero values mean "any".
type Filter struct {
	OrganisationID uuid.UUID
	Status         models.Status
}

// Store is the repository interface for template versions.
//
// Implementations must guarantee:
//   - Append(v1) fails with sentinel.ErrConflict when the lineage exists
//   - Append(vN) fails with sentinel.ErrConflict unless the current latest
//     version is exactly N-1, and retires it in the same atomic step
//   - superseded versions are never mutated afterwards
type Store interface {
	Append(ctx context.Context, t *models.Template) error
	GetLatest(ctx context.Context, templateID string) (*models.Template, error)
	GetVersion(ctx context.Context, templateID string, version int) (*models.Template, error)
	// ListVersions returns every version of a lineage, newest first.
	ListVersions(ctx context.Context, templateID string) ([]*models.Template, error)
	// ListLatest pages over latest versions, newest lineage first, excluding
	// archived ones unless the filter asks for them. The returned total comes
	// from the same snapshot as the page.
	ListLatest(ctx context.Context, f Filter, q pagination.Query) ([]*models.Template, int, error)
	// UpdateStatus mutates the latest version's status.
	UpdateStatus(ctx context.Context, templateID string, status models.Status, now time.Time) error
	// UpdateTags mutates the latest version's tags.
	UpdateTags(ctx context.Context, templateID string, tags []string, now time.Time) error
}
