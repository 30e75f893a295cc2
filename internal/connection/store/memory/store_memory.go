// Package memory provides an in-memory connection store.
package memory

import (
	"context"
	"sort"
	"sync"

	"dataspace/internal/connection/models"
	"dataspace/internal/connection/store"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
)

type Store struct {
	mu          sync.RWMutex
	connections map[string]*models.Connection
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{connections: make(map[string]*models.Connection)}
}

func (s *Store) Upsert(ctx context.Context, c *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	if existing, ok := s.connections[c.ConnectionID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	s.connections[c.ConnectionID] = &cp
	return nil
}

func (s *Store) FindByConnectionID(ctx context.Context, connectionID string) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.connections[connectionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) List(ctx context.Context, q pagination.Query) ([]*models.Connection, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ConnectionID > all[j].ConnectionID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return pagination.Slice(all, q), len(all), nil
}

func (s *Store) Delete(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[connectionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.connections, connectionID)
	return nil
}
