// Package store persists the connection read model.
package store

import (
	"context"

	"dataspace/internal/connection/models"
	"dataspace/pkg/pagination"
)

// Store is the repository interface for connections.
//
// Upsert keys on the agent connection id: the first event inserts, later
// events update state and metadata in place.
type Store interface {
	Upsert(ctx context.Context, c *models.Connection) error
	FindByConnectionID(ctx context.Context, connectionID string) (*models.Connection, error)
	List(ctx context.Context, q pagination.Query) ([]*models.Connection, int, error)
	Delete(ctx context.Context, connectionID string) error
}
