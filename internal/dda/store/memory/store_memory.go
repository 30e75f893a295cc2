// Package memory provides an in-memory template store used in tests and for
// running the server without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataspace/internal/dda/models"
	"dataspace/internal/dda/store"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/sentinel"
)

// Store keeps every template version in memory, keyed by lineage.
type Store struct {
	mu       sync.RWMutex
	lineages map[string][]*models.Template // ascending by version
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{lineages: make(map[string][]*models.Template)}
}

func (s *Store) Append(ctx context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.lineages[t.TemplateID]
	if t.Version == 1 {
		if len(versions) > 0 {
			return sentinel.ErrConflict
		}
	} else {
		if len(versions) == 0 {
			return sentinel.ErrConflict
		}
		latest := versions[len(versions)-1]
		if latest.Version != t.Version-1 {
			return sentinel.ErrConflict
		}
		latest.IsLatestVersion = false
	}

	cp := *t
	cp.IsLatestVersion = true
	s.lineages[t.TemplateID] = append(versions, &cp)
	return nil
}

func (s *Store) GetLatest(ctx context.Context, templateID string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.lineages[templateID]
	if len(versions) == 0 {
		return nil, sentinel.ErrNotFound
	}
	cp := *versions[len(versions)-1]
	return &cp, nil
}

func (s *Store) GetVersion(ctx context.Context, templateID string, version int) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.lineages[templateID] {
		if v.Version == version {
			cp := *v
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) ListVersions(ctx context.Context, templateID string) ([]*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.lineages[templateID]
	if len(versions) == 0 {
		return nil, sentinel.ErrNotFound
	}
	out := make([]*models.Template, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		cp := *versions[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListLatest(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Template, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Template, 0, len(s.lineages))
	for _, versions := range s.lineages {
		latest := versions[len(versions)-1]
		if f.OrganisationID != uuid.Nil && latest.OrganisationID != f.OrganisationID {
			continue
		}
		if f.Status != "" {
			if latest.Status != f.Status {
				continue
			}
		} else if latest.Status == models.StatusArchived {
			continue
		}
		cp := *latest
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].TemplateID > matched[j].TemplateID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := pagination.Slice(matched, q)
	return page, len(matched), nil
}

func (s *Store) UpdateStatus(ctx context.Context, templateID string, status models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.lineages[templateID]
	if len(versions) == 0 {
		return sentinel.ErrNotFound
	}
	latest := versions[len(versions)-1]
	latest.Status = status
	latest.UpdatedAt = now
	return nil
}

func (s *Store) UpdateTags(ctx context.Context, templateID string, tags []string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.lineages[templateID]
	if len(versions) == 0 {
		return sentinel.ErrNotFound
	}
	latest := versions[len(versions)-1]
	latest.Tags = append([]string(nil), tags...)
	latest.UpdatedAt = now
	return nil
}
