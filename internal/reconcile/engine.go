// Package reconcile applies normalized webhook events and manual actions to
// agreement records. It owns every record transition: the idempotency ledger
// check, the transition table, per-record serialization, and the transaction
// around record, revision and ledger writes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	connmodels "dataspace/internal/connection/models"
	connstore "dataspace/internal/connection/store"
	ddamodels "dataspace/internal/dda/models"
	ddastore "dataspace/internal/dda/store"
	recmodels "dataspace/internal/ddarecord/models"
	recstore "dataspace/internal/ddarecord/store"
	"dataspace/internal/reconcile/ledger"
	"dataspace/internal/reconcile/metrics"
	"dataspace/internal/webhook"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/platform/audit"
	"dataspace/pkg/platform/sentinel"
	"dataspace/pkg/requestcontext"
)

// dataAgreementRejected is the data_agreement_status value that turns a
// verified exchange into a rejection.
const dataAgreementRejected = "rejected"

// VerificationResolver applies a presentation outcome that belongs to an
// organisation identity exchange rather than an agreement record. It returns
// sentinel.ErrNotFound when the exchange is unknown to it too.
type VerificationResolver interface {
	ResolveVerification(ctx context.Context, presentationExchangeID, state string) error
}

// Engine reconciles events into record state. It does not own data; stores
// do. It owns transitions.
type Engine struct {
	records     recstore.Store
	templates   ddastore.Store
	connections connstore.Store
	ledger      ledger.Ledger
	tx          *RecordTx
	verifier    VerificationResolver
	logger      *slog.Logger
	audit       audit.Publisher
	metrics     *metrics.Metrics
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(e *Engine) { e.audit = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithVerificationResolver lets presentation events that match no agreement
// record fall through to organisation identity verification.
func WithVerificationResolver(v VerificationResolver) Option {
	return func(e *Engine) { e.verifier = v }
}

// New constructs the engine around its stores, ledger and transaction scope.
func New(records recstore.Store, templates ddastore.Store, connections connstore.Store,
	l ledger.Ledger, tx *RecordTx, opts ...Option) *Engine {
	e := &Engine{
		records:     records,
		templates:   templates,
		connections: connections,
		ledger:      l,
		tx:          tx,
		logger:      slog.Default(),
		audit:       audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply reconciles one normalized event. Discardable outcomes (duplicate,
// out-of-order, unmatched) come back as their typed errors; callers on the
// webhook path acknowledge those with 200.
func (e *Engine) Apply(ctx context.Context, event webhook.Event) error {
	start := time.Now()
	var err error
	switch event.Kind {
	case webhook.KindConnectionStateChanged:
		err = e.applyConnection(ctx, event)
	case webhook.KindPresentationStateChanged:
		err = e.applyPresentation(ctx, event)
	case webhook.KindDdaPublished:
		err = e.applyPublishedDda(ctx, event)
	default:
		err = fmt.Errorf("%w: unknown event kind %q", webhook.ErrMalformedEvent, event.Kind)
	}
	e.observe(event, start, err)
	return err
}

func (e *Engine) applyConnection(ctx context.Context, event webhook.Event) error {
	key := event.CorrelationKey()
	return e.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		last, err := e.ledger.Last(ctx, key)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger lookup failed")
		}
		if event.Ordinal() <= last {
			return ErrDuplicateEvent
		}

		now := requestcontext.Now(ctx)
		conn, err := e.connections.FindByConnectionID(ctx, event.ConnectionID)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "connection lookup failed")
			}
			conn = connmodels.New(event.ConnectionID, connmodels.State(event.State), now)
		}
		previous := conn.State
		conn.State = connmodels.State(event.State)
		conn.UpdatedAt = now
		if event.TheirLabel != "" {
			conn.TheirLabel = event.TheirLabel
		}
		if event.TheirDID != "" {
			conn.TheirDID = event.TheirDID
		}
		if event.InvitationKey != "" {
			conn.InvitationKey = event.InvitationKey
		}
		if err := e.connections.Upsert(ctx, conn); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "connection upsert failed")
		}
		if err := e.ledger.Advance(ctx, key, event.Ordinal()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger advance failed")
		}

		e.emit(ctx, audit.KindConnectionStateChanged, audit.Event{
			Detail: map[string]string{
				"connection_id":  event.ConnectionID,
				"previous_state": string(previous),
				"next_state":     event.State,
			},
		})
		return nil
	})
}

func (e *Engine) applyPresentation(ctx context.Context, event webhook.Event) error {
	record, err := e.findRecord(ctx, event)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if handled, verr := e.applyVerification(ctx, event); handled || verr != nil {
				return verr
			}
			e.emitRejection(ctx, event, "unmatched")
			return fmt.Errorf("%w: key %s", ErrUnmatchedEvent, event.CorrelationKey())
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "record lookup failed")
	}

	// The lock key is the record id: webhook events and manual actions on
	// the same record serialize against each other regardless of which
	// correlation field found it.
	return e.tx.RunInTx(ctx, record.ID.String(), func(ctx context.Context) error {
		// Re-read under the lock; the pre-lock copy may be stale.
		record, err := e.records.Get(ctx, record.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "record re-read failed")
		}

		key := event.CorrelationKey()
		last, err := e.ledger.Last(ctx, key)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger lookup failed")
		}
		if event.Ordinal() <= last {
			return ErrDuplicateEvent
		}

		now := requestcontext.Now(ctx)
		previous := record.State
		eventName := presentationEventName(event.State)

		if err := e.applyPresentationState(ctx, record, event, now); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				e.emitRejection(ctx, event, "out_of_order")
				return fmt.Errorf("%w: %s in state %s", ErrOutOfOrderEvent, event.State, previous)
			}
			return err
		}

		if err := e.persistTransition(ctx, record, previous, eventName, key, event.Ordinal(), now); err != nil {
			return err
		}

		e.emit(ctx, audit.KindRecordTransition, audit.Event{
			RecordID:   record.ID.String(),
			TemplateID: record.TemplateID,
			Detail: map[string]string{
				"event":          eventName,
				"previous_state": string(previous),
				"next_state":     string(record.State),
			},
		})
		return nil
	})
}

// applyVerification routes an otherwise unmatched presentation event to the
// organisation identity exchange. Ledger and serialization follow the same
// correlation key as record-bound presentation events.
func (e *Engine) applyVerification(ctx context.Context, event webhook.Event) (bool, error) {
	if e.verifier == nil || event.PresentationExchangeID == "" {
		return false, nil
	}
	key := event.CorrelationKey()
	var handled bool
	err := e.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		last, err := e.ledger.Last(ctx, key)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger lookup failed")
		}
		if event.Ordinal() <= last {
			handled = true
			return ErrDuplicateEvent
		}
		if err := e.verifier.ResolveVerification(ctx, event.PresentationExchangeID, event.State); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				handled = true
				e.emitRejection(ctx, event, "out_of_order")
				return fmt.Errorf("%w: verification %s", ErrOutOfOrderEvent, event.State)
			}
			return err
		}
		handled = true
		if err := e.ledger.Advance(ctx, key, event.Ordinal()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger advance failed")
		}
		return nil
	})
	return handled, err
}

// presentationEventName labels a revision after its wire state. States that
// already carry the presentation_ prefix are used as-is.
func presentationEventName(state string) string {
	if strings.HasPrefix(state, "presentation_") {
		return state
	}
	return "presentation_" + state
}

// applyPresentationState maps the wire state onto a record transition.
func (e *Engine) applyPresentationState(ctx context.Context, record *recmodels.Record, event webhook.Event, now time.Time) error {
	switch event.State {
	case webhook.PresentationStateRequestSent:
		return record.ApplyRequestSent(event.ThreadID, event.PresentationExchangeID, event.Role, now)
	case webhook.PresentationStatePresentationReceived:
		return record.ApplyPresentationReceived(event.Presentation, now)
	case webhook.PresentationStateVerified:
		if event.DataAgreementStatus == dataAgreementRejected {
			return record.Reject(now)
		}
		agreement, err := e.resolveAgreement(ctx, record, event)
		if err != nil {
			return err
		}
		return record.ApplyVerified(agreement, now)
	case webhook.PresentationStateAbandoned, webhook.PresentationStateError:
		return record.ApplyAbandoned(now)
	}
	return fmt.Errorf("%w: unknown presentation state %q", webhook.ErrMalformedEvent, event.State)
}

// resolveAgreement picks the snapshot written into a verified record: the
// event's data_agreement when the agent sent one, otherwise the template
// version the record was created against.
func (e *Engine) resolveAgreement(ctx context.Context, record *recmodels.Record, event webhook.Event) (ddamodels.Body, error) {
	if event.DataAgreement != nil {
		return *event.DataAgreement, nil
	}
	tmpl, err := e.templates.GetVersion(ctx, record.TemplateID, record.TemplateVersion)
	if err != nil {
		return ddamodels.Body{}, dErrors.Wrap(err, dErrors.CodeInternal, "template version lookup failed")
	}
	return tmpl.Body, nil
}

func (e *Engine) applyPublishedDda(ctx context.Context, event webhook.Event) error {
	key := "dda:" + event.TemplateID
	return e.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		incoming := *event.DataAgreement
		revisionID, err := incoming.RevisionID()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive revision id")
		}

		latest, err := e.templates.GetLatest(ctx, event.TemplateID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			t := &ddamodels.Template{
				ID:              uuid.New(),
				TemplateID:      event.TemplateID,
				Version:         1,
				Status:          ddamodels.StatusPublished,
				Body:            incoming,
				RevisionID:      revisionID,
				IsLatestVersion: true,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := e.templates.Append(ctx, t); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "template insert failed")
			}
			if err := e.advancePublication(ctx, event, 1); err != nil {
				return err
			}
			e.emit(ctx, audit.KindTemplateCreated, audit.Event{
				TemplateID: event.TemplateID,
				Detail:     map[string]string{"source": "webhook", "revision_id": revisionID},
			})
			return nil
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "template lookup failed")
		}

		if latest.RevisionID == revisionID {
			return ErrDuplicateEvent
		}
		next := &ddamodels.Template{
			ID:              uuid.New(),
			TemplateID:      latest.TemplateID,
			Version:         latest.Version + 1,
			Status:          ddamodels.StatusPublished,
			OrganisationID:  latest.OrganisationID,
			Body:            incoming,
			RevisionID:      revisionID,
			IsLatestVersion: true,
			Tags:            latest.Tags,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := e.templates.Append(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "template version append failed")
		}
		if err := e.advancePublication(ctx, event, next.Version); err != nil {
			return err
		}
		e.emit(ctx, audit.KindTemplateVersioned, audit.Event{
			TemplateID: event.TemplateID,
			Detail: map[string]string{
				"source":      "webhook",
				"version":     fmt.Sprint(next.Version),
				"revision_id": revisionID,
			},
		})
		return nil
	})
}

// advancePublication records the published version in the ledger. The ordinal
// is the version number, so redelivered publications are recognizable even
// after a restart.
func (e *Engine) advancePublication(ctx context.Context, event webhook.Event, version int) error {
	if err := e.ledger.Advance(ctx, event.CorrelationKey(), version); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "ledger advance failed")
	}
	return nil
}

// findRecord resolves the record a presentation event belongs to. Events past
// request_sent match by thread or exchange id; request_sent binds to the
// oldest pending record on the connection.
func (e *Engine) findRecord(ctx context.Context, event webhook.Event) (*recmodels.Record, error) {
	if event.ThreadID != "" {
		if r, err := e.records.FindByThreadID(ctx, event.ThreadID); err == nil {
			return r, nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
	}
	if event.PresentationExchangeID != "" {
		if r, err := e.records.FindByPresentationExchangeID(ctx, event.PresentationExchangeID); err == nil {
			return r, nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
	}
	if event.State == webhook.PresentationStateRequestSent {
		return e.records.FindOldestPendingByConnection(ctx, event.ConnectionID)
	}
	return nil, sentinel.ErrNotFound
}

// persistTransition writes the mutated record, its revision and the ledger
// advance. All three ride the ambient transaction.
func (e *Engine) persistTransition(ctx context.Context, record *recmodels.Record, previous recmodels.State,
	eventName, key string, ordinal int, now time.Time) error {
	if err := e.records.Update(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record update failed")
	}
	rev, err := recmodels.NewRevision(record, previous, eventName, now)
	if err != nil {
		return err
	}
	if err := e.records.AppendRevision(ctx, rev); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revision append failed")
	}
	if key != "" {
		if err := e.ledger.Advance(ctx, key, ordinal); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger advance failed")
		}
	}
	return nil
}

// CreateRecord starts a negotiation for a published template over a usable
// connection. With renegotiate the prior active record is superseded in the
// same transaction; without it an existing active record is a conflict.
func (e *Engine) CreateRecord(ctx context.Context, connectionID, templateID string, renegotiate bool) (*recmodels.Record, error) {
	conn, err := e.connections.FindByConnectionID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "connection not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "connection lookup failed")
	}
	if !conn.State.Usable() {
		return nil, dErrors.New(dErrors.CodeConflict, "connection is not active")
	}

	tmpl, err := e.templates.GetLatest(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "template lookup failed")
	}
	if tmpl.Status != ddamodels.StatusPublished {
		return nil, dErrors.New(dErrors.CodeConflict, "template is not published")
	}

	var created *recmodels.Record
	lockKey := "create:" + connectionID + ":" + templateID
	err = e.tx.RunInTx(ctx, lockKey, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)

		prior, err := e.records.FindActive(ctx, connectionID, templateID)
		switch {
		case err == nil:
			if !renegotiate {
				return dErrors.New(dErrors.CodeConflict,
					"an active agreement record already exists for this connection and template")
			}
			previous := prior.State
			if err := prior.Supersede(now); err != nil {
				return err
			}
			if err := e.persistTransition(ctx, prior, previous, "superseded", "", 0, now); err != nil {
				return err
			}
			e.emit(ctx, audit.KindRecordSuperseded, audit.Event{
				RecordID:   prior.ID.String(),
				TemplateID: templateID,
			})
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "active record lookup failed")
		}

		record := recmodels.NewRecord(connectionID, tmpl, now)
		if err := e.records.Create(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict,
					"an active agreement record already exists for this connection and template")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "record insert failed")
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Reject terminally refuses a negotiation on behalf of an API caller.
func (e *Engine) Reject(ctx context.Context, recordID uuid.UUID) (*recmodels.Record, error) {
	return e.manualTransition(ctx, recordID, "rejected", func(r *recmodels.Record, now time.Time) error {
		return r.Reject(now)
	})
}

// Abandon manually terminates a stuck exchange.
func (e *Engine) Abandon(ctx context.Context, recordID uuid.UUID) (*recmodels.Record, error) {
	return e.manualTransition(ctx, recordID, "abandoned", func(r *recmodels.Record, now time.Time) error {
		return r.ApplyAbandoned(now)
	})
}

func (e *Engine) manualTransition(ctx context.Context, recordID uuid.UUID, eventName string,
	apply func(*recmodels.Record, time.Time) error) (*recmodels.Record, error) {
	var result *recmodels.Record
	err := e.tx.RunInTx(ctx, recordID.String(), func(ctx context.Context) error {
		record, err := e.records.Get(ctx, recordID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "agreement record not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "record lookup failed")
		}

		now := requestcontext.Now(ctx)
		previous := record.State
		if err := apply(record, now); err != nil {
			return err
		}
		if err := e.persistTransition(ctx, record, previous, "manual_"+eventName, "", 0, now); err != nil {
			return err
		}

		e.emit(ctx, audit.KindRecordTransition, audit.Event{
			RecordID:   record.ID.String(),
			TemplateID: record.TemplateID,
			Detail: map[string]string{
				"event":          "manual_" + eventName,
				"previous_state": string(previous),
				"next_state":     string(record.State),
			},
		})
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) emit(ctx context.Context, kind audit.Kind, event audit.Event) {
	event.ID = uuid.New()
	event.Kind = kind
	event.OccurredAt = requestcontext.Now(ctx)
	event.ActorID = requestcontext.UserID(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	_ = e.audit.Publish(ctx, event)
}

// emitRejection flags a discarded event for manual review.
func (e *Engine) emitRejection(ctx context.Context, event webhook.Event, reason string) {
	e.emit(ctx, audit.KindRecordOutOfOrder, audit.Event{
		Detail: map[string]string{
			"reason":          reason,
			"correlation_key": event.CorrelationKey(),
			"state":           event.State,
		},
	})
	e.logger.WarnContext(ctx, "webhook event discarded",
		"reason", reason,
		"correlation_key", event.CorrelationKey(),
		"state", event.State,
	)
}

func (e *Engine) observe(event webhook.Event, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "applied"
	switch {
	case errors.Is(err, ErrDuplicateEvent):
		outcome = "duplicate"
		e.metrics.Duplicates.Inc()
	case errors.Is(err, ErrOutOfOrderEvent):
		outcome = "out_of_order"
		e.metrics.OutOfOrder.Inc()
	case errors.Is(err, ErrUnmatchedEvent):
		outcome = "unmatched"
		e.metrics.Unmatched.Inc()
	case err != nil:
		outcome = "error"
	default:
		e.metrics.ObserveTransition(start)
	}
	e.metrics.EventsTotal.WithLabelValues(string(event.Kind), outcome).Inc()
}
