// Package handler exposes the agreement record endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dataspace/internal/ddarecord/models"
	"dataspace/internal/ddarecord/store"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/httputil"
	"dataspace/pkg/requestcontext"
)

// Service defines the record operations the handler depends on.
type Service interface {
	Create(ctx context.Context, connectionID, templateID string, renegotiate bool) (*models.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	List(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Record, pagination.Meta, error)
	ListRevisions(ctx context.Context, id uuid.UUID) ([]*models.Revision, error)
	Reject(ctx context.Context, id uuid.UUID) (*models.Record, error)
	Abandon(ctx context.Context, id uuid.UUID) (*models.Record, error)
}

// Handler wires record endpoints to the record service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a record handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts record endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/config/data-disclosure-agreement-records/", h.HandleCreate)
	r.Get("/config/data-disclosure-agreement-records/", h.HandleList)
	r.Get("/config/data-disclosure-agreement-record/{recordID}/", h.HandleGet)
	r.Get("/config/data-disclosure-agreement-record/{recordID}/revisions/", h.HandleListRevisions)
	r.Put("/config/data-disclosure-agreement-record/{recordID}/reject/", h.HandleReject)
	r.Put("/config/data-disclosure-agreement-record/{recordID}/abandon/", h.HandleAbandon)
}

// CreateRequest is the HTTP request body for starting a negotiation.
type CreateRequest struct {
	ConnectionID string `json:"connectionId"`
	TemplateID   string `json:"templateId"`
	Renegotiate  bool   `json:"renegotiate"`
}

func (r *CreateRequest) Validate() error {
	r.ConnectionID = strings.TrimSpace(r.ConnectionID)
	r.TemplateID = strings.TrimSpace(r.TemplateID)
	if r.ConnectionID == "" {
		return dErrors.New(dErrors.CodeValidation, "connectionId is required")
	}
	if r.TemplateID == "" {
		return dErrors.New(dErrors.CodeValidation, "templateId is required")
	}
	return nil
}

// HandleCreate handles POST /config/data-disclosure-agreement-records/.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.service.Create(ctx, req.ConnectionID, req.TemplateID, req.Renegotiate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, recordEnvelope{Record: record})
}

// HandleList handles GET /config/data-disclosure-agreement-records/.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f := store.Filter{
		ConnectionID: r.URL.Query().Get("connectionId"),
		TemplateID:   r.URL.Query().Get("templateId"),
	}
	if raw := r.URL.Query().Get("state"); raw != "" {
		state := models.State(raw)
		if !state.Valid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown state filter: "+raw))
			return
		}
		f.State = state
	}

	records, meta, err := h.service.List(ctx, f, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordListEnvelope{
		Records:    records,
		Pagination: meta,
	})
}

// HandleGet handles GET /config/data-disclosure-agreement-record/{recordID}/.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.withRecordID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		record, err := h.service.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return recordEnvelope{Record: record}, nil
	})
}

// HandleListRevisions handles
// GET /config/data-disclosure-agreement-record/{recordID}/revisions/.
func (h *Handler) HandleListRevisions(w http.ResponseWriter, r *http.Request) {
	h.withRecordID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		revisions, err := h.service.ListRevisions(ctx, id)
		if err != nil {
			return nil, err
		}
		return revisionListEnvelope{Revisions: revisions}, nil
	})
}

// HandleReject handles PUT .../{recordID}/reject/.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.withRecordID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		record, err := h.service.Reject(ctx, id)
		if err != nil {
			return nil, err
		}
		return recordEnvelope{Record: record}, nil
	})
}

// HandleAbandon handles PUT .../{recordID}/abandon/.
func (h *Handler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	h.withRecordID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		record, err := h.service.Abandon(ctx, id)
		if err != nil {
			return nil, err
		}
		return recordEnvelope{Record: record}, nil
	})
}

func (h *Handler) withRecordID(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id uuid.UUID) (any, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "record id must be a UUID"))
		return
	}
	body, err := fn(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

type recordEnvelope struct {
	Record *models.Record `json:"dataDisclosureAgreementRecord"`
}

type recordListEnvelope struct {
	Records    []*models.Record `json:"dataDisclosureAgreementRecords"`
	Pagination pagination.Meta  `json:"pagination"`
}

type revisionListEnvelope struct {
	Revisions []*models.Revision `json:"revisions"`
}
