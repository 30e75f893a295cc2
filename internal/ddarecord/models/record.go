// Package models holds the agreement record, the central mutable entity of
// the portal. A record links a connection to one template version and tracks
// the presentation exchange that turns the template into an accepted
// agreement.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	ddamodels "dataspace/internal/dda/models"
	dErrors "dataspace/pkg/domain-errors"
)

// State is the lifecycle state of an agreement record.
type State string

const (
	// StatePending is the initial state: record created, no presentation yet.
	StatePending State = "pending"
	// StateRequested means the presentation request went out to the holder.
	StateRequested State = "requested"
	// StatePresented means the holder responded, verification outstanding.
	StatePresented State = "presented"
	// StateVerified means terms are accepted and the agreement snapshot is
	// populated. The record stays active until superseded.
	StateVerified State = "verified"
	// StateRejected is terminal: the organisation refused the exchange.
	StateRejected State = "rejected"
	// StateAbandoned is terminal: the exchange failed or timed out.
	StateAbandoned State = "abandoned"
	// StateSuperseded is terminal: a newer negotiation round replaced this
	// record.
	StateSuperseded State = "superseded"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateRequested, StatePresented, StateVerified,
		StateRejected, StateAbandoned, StateSuperseded:
		return true
	}
	return false
}

// Terminal states accept no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateAbandoned, StateSuperseded:
		return true
	}
	return false
}

// Active reports whether the record still occupies the one-active-record
// slot of its (connection, template) pair.
func (s State) Active() bool {
	return !s.Terminal()
}

// CanTransitionTo is the transition table. Everything outside it is an
// out-of-order or invalid event.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StatePending:
		return next == StateRequested || next == StateRejected || next == StateSuperseded
	case StateRequested:
		return next == StatePresented || next == StateAbandoned || next == StateRejected || next == StateSuperseded
	case StatePresented:
		return next == StateVerified || next == StateAbandoned || next == StateRejected || next == StateSuperseded
	case StateVerified:
		return next == StateSuperseded
	}
	return false
}

// Record is one agreement negotiation over a connection.
//
// Invariants:
//   - at most one record per (ConnectionID, TemplateID) is in an active state
//   - State only changes along the transition table, serialized per record
//   - DataAgreement is a snapshot copied at verification time; later template
//     versions never alter it
type Record struct {
	ID                     uuid.UUID       `json:"id"`
	ConnectionID           string          `json:"connectionId"`
	TemplateID             string          `json:"templateId"`
	TemplateVersion        int             `json:"templateVersion"`
	State                  State           `json:"state"`
	Role                   string          `json:"role,omitempty"`
	ThreadID               string          `json:"threadId,omitempty"`
	PresentationExchangeID string          `json:"presentationExchangeId,omitempty"`
	DataAgreement          *ddamodels.Body `json:"dataAgreement,omitempty"`
	Presentation           json.RawMessage `json:"presentation,omitempty"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}

// NewRecord starts a negotiation in pending against a template version.
func NewRecord(connectionID string, template *ddamodels.Template, now time.Time) *Record {
	return &Record{
		ID:              uuid.New(),
		ConnectionID:    connectionID,
		TemplateID:      template.TemplateID,
		TemplateVersion: template.Version,
		State:           StatePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// transition moves the record to next or reports why it cannot.
func (r *Record) transition(next State, now time.Time) error {
	if !r.State.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"record cannot move from "+string(r.State)+" to "+string(next))
	}
	r.State = next
	r.UpdatedAt = now
	return nil
}

// ApplyRequestSent binds the record to the presentation exchange and moves it
// to requested.
func (r *Record) ApplyRequestSent(threadID, presentationExchangeID, role string, now time.Time) error {
	if err := r.transition(StateRequested, now); err != nil {
		return err
	}
	r.ThreadID = threadID
	r.PresentationExchangeID = presentationExchangeID
	r.Role = role
	return nil
}

// ApplyPresentationReceived stores the raw presentation and moves the record
// to presented.
func (r *Record) ApplyPresentationReceived(presentation json.RawMessage, now time.Time) error {
	if err := r.transition(StatePresented, now); err != nil {
		return err
	}
	r.Presentation = presentation
	return nil
}

// ApplyVerified snapshots the agreed body into the record and moves it to
// verified. The body is copied so later template versions leave it untouched.
func (r *Record) ApplyVerified(agreement ddamodels.Body, now time.Time) error {
	if err := r.transition(StateVerified, now); err != nil {
		return err
	}
	snapshot := agreement
	r.DataAgreement = &snapshot
	return nil
}

// ApplyAbandoned marks the exchange as failed.
func (r *Record) ApplyAbandoned(now time.Time) error {
	return r.transition(StateAbandoned, now)
}

// Reject terminally refuses the negotiation. Driven by API callers, not
// webhook events.
func (r *Record) Reject(now time.Time) error {
	return r.transition(StateRejected, now)
}

// Supersede retires the record in favour of a newer negotiation round.
func (r *Record) Supersede(now time.Time) error {
	return r.transition(StateSuperseded, now)
}

// Revision is one step of a record's audit chain, appended on every applied
// transition. Revisions are write-once.
type Revision struct {
	ID            uuid.UUID       `json:"id"`
	RecordID      uuid.UUID       `json:"recordId"`
	PreviousState State           `json:"previousState"`
	NewState      State           `json:"newState"`
	Event         string          `json:"event"`
	Snapshot      json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewRevision captures the record after a transition.
func NewRevision(r *Record, previous State, event string, now time.Time) (*Revision, error) {
	snapshot, err := json.Marshal(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to snapshot record")
	}
	return &Revision{
		ID:            uuid.New(),
		RecordID:      r.ID,
		PreviousState: previous,
		NewState:      r.State,
		Event:         event,
		Snapshot:      snapshot,
		CreatedAt:     now,
	}, nil
}
