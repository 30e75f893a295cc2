// Package memory provides an in-memory agreement record store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dataspace/internal/ddarecord/models"
	"dataspace/internal/ddarecord/store"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
)

type Store struct {
	mu        sync.RWMutex
	records   map[uuid.UUID]*models.Record
	revisions map[uuid.UUID][]*models.Revision // ascending by append order
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records:   make(map[uuid.UUID]*models.Record),
		revisions: make(map[uuid.UUID][]*models.Revision),
	}
}

func (s *Store) Create(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.ConnectionID == r.ConnectionID &&
			existing.TemplateID == r.TemplateID &&
			existing.State.Active() {
			return sentinel.ErrConflict
		}
	}
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) Update(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

func (s *Store) FindByThreadID(ctx context.Context, threadID string) (*models.Record, error) {
	return s.findOne(func(r *models.Record) bool {
		return r.ThreadID == threadID && threadID != ""
	})
}

func (s *Store) FindByPresentationExchangeID(ctx context.Context, presentationExchangeID string) (*models.Record, error) {
	return s.findOne(func(r *models.Record) bool {
		return r.PresentationExchangeID == presentationExchangeID && presentationExchangeID != ""
	})
}

func (s *Store) FindActive(ctx context.Context, connectionID, templateID string) (*models.Record, error) {
	return s.findOne(func(r *models.Record) bool {
		return r.ConnectionID == connectionID && r.TemplateID == templateID && r.State.Active()
	})
}

func (s *Store) FindOldestPendingByConnection(ctx context.Context, connectionID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *models.Record
	for _, r := range s.records {
		if r.ConnectionID != connectionID || r.State != models.StatePending {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (s *Store) List(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Record, 0, len(s.records))
	for _, r := range s.records {
		if f.ConnectionID != "" && r.ConnectionID != f.ConnectionID {
			continue
		}
		if f.TemplateID != "" && r.TemplateID != f.TemplateID {
			continue
		}
		if f.State != "" && r.State != f.State {
			continue
		}
		cp := *r
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return pagination.Slice(matched, q), len(matched), nil
}

func (s *Store) CountActiveByTemplate(ctx context.Context, templateID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.records {
		if r.TemplateID == templateID && r.State.Active() {
			count++
		}
	}
	return count, nil
}

func (s *Store) AppendRevision(ctx context.Context, rev *models.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rev
	s.revisions[rev.RecordID] = append(s.revisions[rev.RecordID], &cp)
	return nil
}

func (s *Store) ListRevisions(ctx context.Context, recordID uuid.UUID) ([]*models.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	revs := s.revisions[recordID]
	out := make([]*models.Revision, 0, len(revs))
	for _, rev := range revs {
		cp := *rev
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) findOne(match func(*models.Record) bool) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if match(r) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
