// Package audit defines the lifecycle audit trail: every agreement record
// transition, rejected event, and template change produces an Event that is
// published asynchronously and persisted for manual review.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind names an audit event category.
type Kind string

const (
	KindRecordTransition       Kind = "record.transition"
	KindRecordOutOfOrder       Kind = "record.out_of_order_event"
	KindRecordSuperseded       Kind = "record.superseded"
	KindTemplateCreated        Kind = "template.created"
	KindTemplateVersioned      Kind = "template.versioned"
	KindTemplateStatusChanged  Kind = "template.status_changed"
	KindConnectionStateChanged Kind = "connection.state_changed"
	KindOrganisationVerified   Kind = "organisation.verification_changed"
)

// Event is one append-only audit entry. Detail carries kind-specific fields
// (previous/next state, correlation IDs, rejection reasons).
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Kind       Kind              `json:"kind"`
	OccurredAt time.Time         `json:"occurredAt"`
	ActorID    string            `json:"actorId,omitempty"`
	RecordID   string            `json:"recordId,omitempty"`
	TemplateID string            `json:"templateId,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	ClientIP   string            `json:"clientIp,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// Publisher accepts events for asynchronous delivery. Publishing must never
// fail a domain operation; implementations drop on overflow and count it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRecord(ctx context.Context, recordID string) ([]Event, error)
}

// NopPublisher discards events. Used in tests and when auditing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
