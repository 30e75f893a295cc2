// Package memory provides an in-memory organisation store.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"dataspace/internal/organisation/models"
	"dataspace/internal/organisation/store"
	"dataspace/pkg/platform/sentinel"
)

type Store struct {
	mu            sync.RWMutex
	organisations map[uuid.UUID]*models.Organisation
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{organisations: make(map[uuid.UUID]*models.Organisation)}
}

func (s *Store) Create(ctx context.Context, o *models.Organisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.organisations[o.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *o
	s.organisations[o.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.organisations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) Update(ctx context.Context, o *models.Organisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.organisations[o.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *o
	s.organisations[o.ID] = &cp
	return nil
}

func (s *Store) FindByVerificationExchange(ctx context.Context, presentationExchangeID string) (*models.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.organisations {
		if o.Verification.PresentationExchangeID == presentationExchangeID &&
			presentationExchangeID != "" {
			cp := *o
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
