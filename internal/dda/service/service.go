// Package service orchestrates the template lifecycle: lineage creation,
// versioned updates, status changes, and listing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dataspace/internal/dda/metrics"
	"dataspace/internal/dda/models"
	"dataspace/internal/dda/store"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/audit"
	"dataspace/pkg/platform/sentinel"
	"dataspace/pkg/requestcontext"
)

// RecordCounter reports how many non-terminal agreement records reference a
// template lineage. Archiving is refused while any exist.
type RecordCounter interface {
	CountActiveByTemplate(ctx context.Context, templateID string) (int, error)
}

// Service coordinates template operations against the store.
type Service struct {
	store   store.Store
	records RecordCounter
	logger  *slog.Logger
	audit   audit.Publisher
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. records may be nil, in which case archiving skips
// the active-record check.
func New(templates store.Store, records RecordCounter, opts ...Option) *Service {
	s := &Service{
		store:   templates,
		records: records,
		logger:  slog.Default(),
		audit:   audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new lineage at version 1 in draft for the caller's
// organisation.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, body models.Body, tags []string) (*models.Template, error) {
	t, err := models.NewTemplate(orgID, body, tags, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Append(ctx, t); err != nil {
		return nil, s.translate(err, "failed to create template")
	}

	s.emit(ctx, audit.KindTemplateCreated, t, nil)
	if s.metrics != nil {
		s.metrics.TemplatesCreated.Inc()
	}
	s.logger.InfoContext(ctx, "template created",
		"template_id", t.TemplateID, "revision_id", t.RevisionID)
	return t, nil
}

// Update appends a new version with the given body. Only the latest version
// of a lineage can be updated, and only while it is a draft.
func (s *Service) Update(ctx context.Context, orgID uuid.UUID, templateID string, body models.Body, tags []string) (*models.Template, error) {
	latest, err := s.getOwned(ctx, orgID, templateID)
	if err != nil {
		return nil, err
	}
	if !latest.Editable() {
		return nil, dErrors.New(dErrors.CodeConflict, "only draft templates can be updated")
	}

	next, err := latest.NewVersion(body, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if tags != nil {
		next.Tags = tags
	}
	if next.RevisionID == latest.RevisionID && tags == nil {
		// Identical content needs no new version.
		return latest, nil
	}
	if err := s.store.Append(ctx, next); err != nil {
		return nil, s.translate(err, "failed to append template version")
	}

	s.emit(ctx, audit.KindTemplateVersioned, next, map[string]string{
		"version": fmt.Sprint(next.Version),
	})
	if s.metrics != nil {
		s.metrics.VersionsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "template version appended",
		"template_id", next.TemplateID, "version", next.Version)
	return next, nil
}

// Get returns one version of a lineage. Version 0 means latest.
func (s *Service) Get(ctx context.Context, templateID string, version int) (*models.Template, error) {
	var (
		t   *models.Template
		err error
	)
	if version == 0 {
		t, err = s.store.GetLatest(ctx, templateID)
	} else {
		t, err = s.store.GetVersion(ctx, templateID, version)
	}
	if err != nil {
		return nil, s.translate(err, "failed to load template")
	}
	return t, nil
}

// List pages over latest versions, newest first.
func (s *Service) List(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Template, pagination.Meta, error) {
	start := time.Now()
	templates, total, err := s.store.ListLatest(ctx, f, q)
	if err != nil {
		return nil, pagination.Meta{}, s.translate(err, "failed to list templates")
	}
	if s.metrics != nil {
		s.metrics.ObserveList(start)
	}
	return templates, pagination.NewMeta(q, total), nil
}

// ListVersions returns the full revision history of a lineage, newest first.
func (s *Service) ListVersions(ctx context.Context, templateID string) ([]*models.Template, error) {
	versions, err := s.store.ListVersions(ctx, templateID)
	if err != nil {
		return nil, s.translate(err, "failed to list template versions")
	}
	return versions, nil
}

// UpdateStatus moves the latest version to a new status. Archiving is refused
// with a Conflict while active agreement records reference the lineage.
func (s *Service) UpdateStatus(ctx context.Context, orgID uuid.UUID, templateID string, next models.Status) (*models.Template, error) {
	latest, err := s.getOwned(ctx, orgID, templateID)
	if err != nil {
		return nil, err
	}
	if err := latest.CanChangeStatus(next); err != nil {
		return nil, err
	}
	if next == models.StatusArchived && s.records != nil {
		active, err := s.records.CountActiveByTemplate(ctx, templateID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count active records")
		}
		if active > 0 {
			if s.metrics != nil {
				s.metrics.ArchiveConflicts.Inc()
			}
			return nil, dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("cannot archive template: %d active agreement records reference it", active))
		}
	}

	now := requestcontext.Now(ctx)
	if err := s.store.UpdateStatus(ctx, templateID, next, now); err != nil {
		return nil, s.translate(err, "failed to update template status")
	}
	previous := latest.Status
	latest.Status = next
	latest.UpdatedAt = now

	s.emit(ctx, audit.KindTemplateStatusChanged, latest, map[string]string{
		"previous_status": string(previous),
		"next_status":     string(next),
	})
	if s.metrics != nil {
		s.metrics.StatusChanges.WithLabelValues(string(next)).Inc()
	}
	s.logger.InfoContext(ctx, "template status changed",
		"template_id", templateID, "from", string(previous), "to", string(next))
	return latest, nil
}

// UpdateTags replaces the tags on the latest version.
func (s *Service) UpdateTags(ctx context.Context, orgID uuid.UUID, templateID string, tags []string) (*models.Template, error) {
	latest, err := s.getOwned(ctx, orgID, templateID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if err := s.store.UpdateTags(ctx, templateID, tags, now); err != nil {
		return nil, s.translate(err, "failed to update template tags")
	}
	latest.Tags = tags
	latest.UpdatedAt = now
	return latest, nil
}

func (s *Service) getOwned(ctx context.Context, orgID uuid.UUID, templateID string) (*models.Template, error) {
	latest, err := s.store.GetLatest(ctx, templateID)
	if err != nil {
		return nil, s.translate(err, "failed to load template")
	}
	if orgID != uuid.Nil && latest.OrganisationID != orgID {
		// Lineages of other organisations are invisible, not forbidden.
		return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
	}
	return latest, nil
}

func (s *Service) translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "template not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "template version conflict")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) emit(ctx context.Context, kind audit.Kind, t *models.Template, detail map[string]string) {
	_ = s.audit.Publish(ctx, audit.Event{
		ID:         uuid.New(),
		Kind:       kind,
		OccurredAt: requestcontext.Now(ctx),
		ActorID:    requestcontext.UserID(ctx),
		TemplateID: t.TemplateID,
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Detail:     detail,
	})
}
