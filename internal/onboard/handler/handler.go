// Package handler exposes the onboarding endpoints. Register and login are
// unauthenticated; password change requires a valid token.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dataspace/internal/onboard/models"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/platform/httputil"
	"dataspace/pkg/requestcontext"
)

// Service defines the onboarding operations the handler depends on.
type Service interface {
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

// Handler wires onboarding endpoints to the onboard service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an onboarding handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/onboard/register/", h.HandleRegister)
	r.Post("/onboard/login/", h.HandleLogin)
}

// RegisterProtected mounts the endpoints that require authentication.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/onboard/password/", h.HandleChangePassword)
}

// RegisterRequest is the HTTP request body for account creation.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}

// LoginRequest is the HTTP request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	return nil
}

// PasswordChangeRequest is the HTTP request body for rotating a password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *PasswordChangeRequest) Validate() error {
	if r.CurrentPassword == "" || r.NewPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "currentPassword and newPassword are required")
	}
	return nil
}

// HandleRegister handles POST /onboard/register/.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	u, err := h.service.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, userEnvelope{User: u})
}

// HandleLogin handles POST /onboard/login/.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	u, token, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginEnvelope{User: u, AccessToken: token, TokenType: "Bearer"})
}

// HandleChangePassword handles POST /onboard/password/.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "user context required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[PasswordChangeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.service.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

type userEnvelope struct {
	User *models.User `json:"user"`
}

type loginEnvelope struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
}
