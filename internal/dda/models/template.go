package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "dataspace/pkg/domain-errors"
)

// Status is the lifecycle state of a template version.
type Status string

const (
	// StatusDraft is editable and invisible to counterparts.
	StatusDraft Status = "draft"
	// StatusPublished is visible to counterparts; new agreement records may
	// reference it.
	StatusPublished Status = "published"
	// StatusArchived is terminal. Archived lineages are excluded from
	// listings but retained for audit.
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// CanTransitionTo enforces the status table: draft and published swap freely
// (publish / take down), both may archive, archived is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPublished || next == StatusArchived
	case StatusPublished:
		return next == StatusDraft || next == StatusArchived
	}
	return false
}

// Template is one immutable version of a Data Disclosure Agreement lineage.
//
// Invariants:
//   - Version is strictly increasing within a TemplateID lineage, starting at 1
//   - exactly one version per lineage has IsLatestVersion=true
//   - a superseded version never changes again; only the latest version's
//     Status and Tags are mutable
//   - RevisionID is the content hash of Body and never recomputed after insert
type Template struct {
	ID              uuid.UUID `json:"id"`
	TemplateID      string    `json:"templateId"`
	Version         int       `json:"version"`
	Status          Status    `json:"status"`
	OrganisationID  uuid.UUID `json:"organisationId"`
	Body            Body      `json:"dataDisclosureAgreement"`
	RevisionID      string    `json:"revisionId"`
	IsLatestVersion bool      `json:"isLatestVersion"`
	Tags            []string  `json:"tags,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Editable reports whether this version accepts content updates. Only drafts
// are editable; a published version must be taken down first.
func (t *Template) Editable() bool {
	return t.Status == StatusDraft
}

// NewTemplate starts a new lineage at version 1 in draft.
func NewTemplate(orgID uuid.UUID, body Body, tags []string, now time.Time) (*Template, error) {
	if err := body.Validate(); err != nil {
		return nil, err
	}
	revisionID, err := body.RevisionID()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive revision id")
	}
	return &Template{
		ID:              uuid.New(),
		TemplateID:      uuid.NewString(),
		Version:         1,
		Status:          StatusDraft,
		OrganisationID:  orgID,
		Body:            body,
		RevisionID:      revisionID,
		IsLatestVersion: true,
		Tags:            tags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// NewVersion derives the successor version of t with the given body. The
// receiver must be the current latest version; the caller persists both the
// supersession of t and the insert atomically.
func (t *Template) NewVersion(body Body, now time.Time) (*Template, error) {
	if !t.IsLatestVersion {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "only the latest version can be superseded")
	}
	if err := body.Validate(); err != nil {
		return nil, err
	}
	revisionID, err := body.RevisionID()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive revision id")
	}
	return &Template{
		ID:              uuid.New(),
		TemplateID:      t.TemplateID,
		Version:         t.Version + 1,
		Status:          t.Status,
		OrganisationID:  t.OrganisationID,
		Body:            body,
		RevisionID:      revisionID,
		IsLatestVersion: true,
		Tags:            t.Tags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanChangeStatus checks a status transition against the table. The version
// must additionally be the latest; stores enforce that.
func (t *Template) CanChangeStatus(next Status) error {
	if !next.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown status: "+string(next))
	}
	if !t.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"status cannot change from "+string(t.Status)+" to "+string(next))
	}
	return nil
}
