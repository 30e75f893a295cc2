// Package handler wires the template configuration endpoints to the template
// service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dataspace/internal/dda/models"
	"dataspace/internal/dda/store"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/pagination"
	"dataspace/pkg/platform/httputil"
	"dataspace/pkg/requestcontext"
)

// Service defines the template operations the handler depends on.
type Service interface {
	Create(ctx context.Context, orgID uuid.UUID, body models.Body, tags []string) (*models.Template, error)
	Update(ctx context.Context, orgID uuid.UUID, templateID string, body models.Body, tags []string) (*models.Template, error)
	Get(ctx context.Context, templateID string, version int) (*models.Template, error)
	List(ctx context.Context, f store.Filter, q pagination.Query) ([]*models.Template, pagination.Meta, error)
	ListVersions(ctx context.Context, templateID string) ([]*models.Template, error)
	UpdateStatus(ctx context.Context, orgID uuid.UUID, templateID string, next models.Status) (*models.Template, error)
	UpdateTags(ctx context.Context, orgID uuid.UUID, templateID string, tags []string) (*models.Template, error)
}

// Handler exposes template lifecycle endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a template handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts template endpoints on the router. The router is expected to
// already require authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/config/data-disclosure-agreements/", h.HandleCreate)
	r.Get("/config/data-disclosure-agreements/", h.HandleList)
	r.Get("/config/data-disclosure-agreement/{templateID}/", h.HandleGet)
	r.Put("/config/data-disclosure-agreement/{templateID}/", h.HandleUpdate)
	r.Delete("/config/data-disclosure-agreement/{templateID}/", h.HandleArchive)
	r.Get("/config/data-disclosure-agreement/{templateID}/revisions/", h.HandleListRevisions)
	r.Put("/config/data-disclosure-agreement/{templateID}/status/", h.HandleUpdateStatus)
	r.Put("/config/data-disclosure-agreement/{templateID}/tags/", h.HandleUpdateTags)
}

// HandleCreate handles POST /config/data-disclosure-agreements/.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TemplateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	t, err := h.service.Create(ctx, orgID, req.Body, req.Tags)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, templateEnvelope{Template: t})
}

// HandleList handles GET /config/data-disclosure-agreements/.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, ctx)
	if !ok {
		return
	}

	f := store.Filter{OrganisationID: orgID}
	if status := r.URL.Query().Get("status"); status != "" {
		parsed := models.Status(status)
		if !parsed.Valid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown status filter: "+status))
			return
		}
		f.Status = parsed
	}

	q := pagination.FromRequest(r)
	templates, meta, err := h.service.List(ctx, f, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, templateListEnvelope{
		Templates:  templates,
		Pagination: meta,
	})
}

// HandleGet handles GET /config/data-disclosure-agreement/{templateID}/.
// The optional version query parameter selects a historical version.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := chi.URLParam(r, "templateID")

	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "version must be a positive integer"))
			return
		}
		version = parsed
	}

	t, err := h.service.Get(ctx, templateID, version)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, templateEnvelope{Template: t})
}

// HandleUpdate handles PUT /config/data-disclosure-agreement/{templateID}/.
// A successful update appends a new version of the lineage.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TemplateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	t, err := h.service.Update(ctx, orgID, chi.URLParam(r, "templateID"), req.Body, req.Tags)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, templateEnvelope{Template: t})
}

// HandleArchive handles DELETE /config/data-disclosure-agreement/{templateID}/.
// Archiving is a status change, not a row delete; it fails with a conflict
// while active agreement records reference the lineage.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, ctx)
	if !ok {
		return
	}

	t, err := h.service.UpdateStatus(ctx, orgID, chi.URLParam(r, "templateID"), models.StatusArchived)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, templateEnvelope{Template: t})
}

// HandleListRevisions handles GET /config/data-disclosure-agreement/{templateID}/revisions/.
func (h *Handler) HandleListRevisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	versions, err := h.service.ListVersions(ctx, chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, revisionListEnvelope{Revisions: versions})
}

// HandleUpdateStatus handles PUT /config/data-disclosure-agreement/{templateID}/status/.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	t, err := h.service.UpdateStatus(ctx, orgID, chi.URLParam(r, "templateID"), req.ParsedStatus())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, templateEnvelope{Template: t})
}

// HandleUpdateTags handles PUT /config/data-disclosure-agreement/{templateID}/tags/.
func (h *Handler) HandleUpdateTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TagsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	t, err := h.service.UpdateTags(ctx, orgID, chi.URLParam(r, "templateID"), req.Tags)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, templateEnvelope{Template: t})
}

func (h *Handler) requireOrg(w http.ResponseWriter, ctx context.Context) (uuid.UUID, bool) {
	raw := requestcontext.OrgID(ctx)
	orgID, err := uuid.Parse(raw)
	if raw == "" || err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "organisation context required"))
		return uuid.Nil, false
	}
	return orgID, true
}

type templateEnvelope struct {
	Template *models.Template `json:"dataDisclosureAgreement"`
}

type templateListEnvelope struct {
	Templates  []*models.Template `json:"dataDisclosureAgreements"`
	Pagination pagination.Meta    `json:"pagination"`
}

type revisionListEnvelope struct {
	Revisions []*models.Template `json:"revisions"`
}
