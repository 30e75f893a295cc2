// Package memory provides an in-memory user store.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"dataspace/internal/onboard/models"
	"dataspace/internal/onboard/store"
	"dataspace/pkg/platform/sentinel"
)

type Store struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *Store) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return sentinel.ErrConflict
	}
	cp := cloneUser(u)
	s.byID[u.ID] = cp
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *Store) Update(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[u.ID] = cloneUser(u)
	return nil
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &cp
}
