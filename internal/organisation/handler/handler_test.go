package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dataspace/internal/organisation/models"
	"dataspace/internal/organisation/service"
	"dataspace/internal/organisation/store/memory"
	"dataspace/pkg/requestcontext"
)

func newOrganisationRouter(t *testing.T, orgID uuid.UUID) chi.Router {
	t.Helper()
	h := New(service.New(memory.New()), slog.Default())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithOrgID(req.Context(), orgID.String())
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeOrganisation(t *testing.T, rec *httptest.ResponseRecorder) *models.Organisation {
	t.Helper()
	var resp struct {
		Organisation *models.Organisation `json:"organisation"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Organisation)
	return resp.Organisation
}

func profilePayload(name string) map[string]any {
	return map[string]any{
		"organisation": map[string]any{
			"name":      name,
			"location":  "Stockholm",
			"policyUrl": "https://acme.example/policy",
			"sector":    "Healthcare",
			"logoUrl":   "https://acme.example/logo.png",
		},
	}
}

func TestDataSourceLifecycle(t *testing.T) {
	orgID := uuid.New()
	router := newOrganisationRouter(t, orgID)

	missing := doJSON(t, router, http.MethodGet, "/config/data-source/", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)

	created := doJSON(t, router, http.MethodPost, "/config/data-source/", profilePayload("Acme Research"))
	require.Equal(t, http.StatusCreated, created.Code)
	require.Equal(t, orgID, decodeOrganisation(t, created).ID)

	dup := doJSON(t, router, http.MethodPost, "/config/data-source/", profilePayload("Acme Again"))
	require.Equal(t, http.StatusConflict, dup.Code)

	updated := doJSON(t, router, http.MethodPut, "/config/data-source/", profilePayload("Acme Labs"))
	require.Equal(t, http.StatusOK, updated.Code)
	require.Equal(t, "Acme Labs", decodeOrganisation(t, updated).Name)

	got := doJSON(t, router, http.MethodGet, "/config/data-source/", nil)
	require.Equal(t, http.StatusOK, got.Code)
	require.Equal(t, "Acme Labs", decodeOrganisation(t, got).Name)
}

func TestDataSourceValidation(t *testing.T) {
	router := newOrganisationRouter(t, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/config/data-source/", map[string]any{
		"organisation": map[string]any{"description": "no name"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBeginVerificationViaHandler(t *testing.T) {
	router := newOrganisationRouter(t, uuid.New())

	created := doJSON(t, router, http.MethodPost, "/config/data-source/", profilePayload("Acme Research"))
	require.Equal(t, http.StatusCreated, created.Code)

	rec := doJSON(t, router, http.MethodPut, "/config/data-source/verification/", map[string]any{
		"presentationExchangeId": "pex-verify-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	o := decodeOrganisation(t, rec)
	require.Equal(t, models.VerificationStateRequestSent, o.Verification.State)
	require.False(t, o.Verification.Verified)
}

func TestDataSourceRequiresOrgContext(t *testing.T) {
	h := New(service.New(memory.New()), slog.Default())
	r := chi.NewRouter()
	h.Register(r)

	rec := doJSON(t, r, http.MethodGet, "/config/data-source/", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
