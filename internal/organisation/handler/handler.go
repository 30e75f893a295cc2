// Package handler exposes the data-source profile endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dataspace/internal/organisation/models"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/platform/httputil"
	"dataspace/pkg/requestcontext"
)

// Service defines the organisation operations the handler depends on.
type Service interface {
	Create(ctx context.Context, orgID uuid.UUID, p models.Profile) (*models.Organisation, error)
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organisation, error)
	Update(ctx context.Context, orgID uuid.UUID, p models.Profile) (*models.Organisation, error)
	BeginVerification(ctx context.Context, orgID uuid.UUID, presentationExchangeID string) (*models.Organisation, error)
}

// Handler wires data-source endpoints to the organisation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an organisation handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the data-source endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/config/data-source/", h.HandleCreate)
	r.Get("/config/data-source/", h.HandleGet)
	r.Put("/config/data-source/", h.HandleUpdate)
	r.Put("/config/data-source/verification/", h.HandleBeginVerification)
}

// ProfileRequest is the HTTP request body for creating or updating the
// data-source profile.
type ProfileRequest struct {
	Organisation struct {
		Name                string `json:"name"`
		Description         string `json:"description"`
		Sector              string `json:"sector"`
		Location            string `json:"location"`
		PolicyURL           string `json:"policyUrl"`
		LogoURL             string `json:"logoUrl"`
		CoverImageURL       string `json:"coverImageUrl"`
		OpenAPIURL          string `json:"openApiUrl"`
		AccessPointEndpoint string `json:"accessPointEndpoint"`
	} `json:"organisation"`
}

func (r *ProfileRequest) Validate() error {
	if strings.TrimSpace(r.Organisation.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "organisation name is required")
	}
	return nil
}

func (r *ProfileRequest) profile() models.Profile {
	o := r.Organisation
	return models.Profile{
		Name:                o.Name,
		Description:         o.Description,
		Sector:              o.Sector,
		Location:            o.Location,
		PolicyURL:           o.PolicyURL,
		LogoURL:             o.LogoURL,
		CoverImageURL:       o.CoverImageURL,
		OpenAPIURL:          o.OpenAPIURL,
		AccessPointEndpoint: o.AccessPointEndpoint,
	}
}

// VerificationRequest starts the organisation identity exchange.
type VerificationRequest struct {
	PresentationExchangeID string `json:"presentationExchangeId"`
}

func (r *VerificationRequest) Validate() error {
	r.PresentationExchangeID = strings.TrimSpace(r.PresentationExchangeID)
	if r.PresentationExchangeID == "" {
		return dErrors.New(dErrors.CodeValidation, "presentationExchangeId is required")
	}
	return nil
}

// HandleCreate handles POST /config/data-source/.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	o, err := h.service.Create(ctx, orgID, req.profile())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, organisationEnvelope{Organisation: o})
}

// HandleGet handles GET /config/data-source/.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	o, err := h.service.Get(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, organisationEnvelope{Organisation: o})
}

// HandleUpdate handles PUT /config/data-source/.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	o, err := h.service.Update(ctx, orgID, req.profile())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, organisationEnvelope{Organisation: o})
}

// HandleBeginVerification handles PUT /config/data-source/verification/.
func (h *Handler) HandleBeginVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerificationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	o, err := h.service.BeginVerification(ctx, orgID, req.PresentationExchangeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, organisationEnvelope{Organisation: o})
}

func (h *Handler) requireOrg(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orgID, err := uuid.Parse(requestcontext.OrgID(r.Context()))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing organisation context"))
		return uuid.Nil, false
	}
	return orgID, true
}

type organisationEnvelope struct {
	Organisation *models.Organisation `json:"organisation"`
}
