package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	connmemory "dataspace/internal/connection/store/memory"
	ddamodels "dataspace/internal/dda/models"
	ddamemory "dataspace/internal/dda/store/memory"
	"dataspace/internal/ddarecord/models"
	"dataspace/internal/ddarecord/service"
	recmemory "dataspace/internal/ddarecord/store/memory"
	"dataspace/internal/reconcile"
	"dataspace/internal/reconcile/ledger"
	"dataspace/internal/webhook"
	"dataspace/pkg/requestcontext"
)

type recordFixture struct {
	router   chi.Router
	engine   *reconcile.Engine
	template *ddamodels.Template
	ctx      context.Context
}

func newRecordFixture(t *testing.T) *recordFixture {
	t.Helper()

	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	records := recmemory.New()
	templates := ddamemory.New()
	connections := connmemory.New()
	eng := reconcile.New(records, templates, connections,
		ledger.NewMemory(), reconcile.NewRecordTx(reconcile.PassthroughTx{}))

	body := ddamodels.Body{
		Purpose:     "research",
		LawfulBasis: "consent",
		DataController: ddamodels.DataController{
			Name: "Acme Research",
		},
		DataSharingRestrictions: ddamodels.DataSharingRestrictions{
			PolicyURL:           "https://acme.example/policy",
			Jurisdiction:        "EU",
			DataRetentionPeriod: 365,
		},
	}
	tmpl, err := ddamodels.NewTemplate(uuid.New(), body, nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, templates.Append(ctx, tmpl))
	require.NoError(t, templates.UpdateStatus(ctx, tmpl.TemplateID, ddamodels.StatusPublished, time.Now()))
	tmpl.Status = ddamodels.StatusPublished

	svc := service.New(records, eng, slog.Default())
	h := New(svc, slog.Default())

	r := chi.NewRouter()
	h.Register(r)

	return &recordFixture{router: r, engine: eng, template: tmpl, ctx: ctx}
}

func (f *recordFixture) activateConnection(t *testing.T, connectionID string) {
	t.Helper()
	err := f.engine.Apply(f.ctx, webhook.Event{
		Kind:         webhook.KindConnectionStateChanged,
		ConnectionID: connectionID,
		State:        "active",
	})
	require.NoError(t, err)
}

func (f *recordFixture) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) *models.Record {
	t.Helper()
	var resp struct {
		Record *models.Record `json:"dataDisclosureAgreementRecord"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Record)
	return resp.Record
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestCreateRecordViaHandler(t *testing.T) {
	f := newRecordFixture(t)
	f.activateConnection(t, "conn-1")

	rec := f.do(t, http.MethodPost, "/config/data-disclosure-agreement-records/", map[string]any{
		"connectionId": "conn-1",
		"templateId":   f.template.TemplateID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeRecord(t, rec)
	require.Equal(t, models.StatePending, created.State)
	require.Equal(t, "conn-1", created.ConnectionID)
	require.Equal(t, f.template.TemplateID, created.TemplateID)
	require.Equal(t, 1, created.TemplateVersion)
}

func TestCreateRecordValidation(t *testing.T) {
	f := newRecordFixture(t)

	rec := f.do(t, http.MethodPost, "/config/data-disclosure-agreement-records/", map[string]any{
		"templateId": f.template.TemplateID,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", decodeErrorCode(t, rec))
}

func TestCreateRecordConflictViaHandler(t *testing.T) {
	f := newRecordFixture(t)
	f.activateConnection(t, "conn-1")

	payload := map[string]any{
		"connectionId": "conn-1",
		"templateId":   f.template.TemplateID,
	}
	first := f.do(t, http.MethodPost, "/config/data-disclosure-agreement-records/", payload)
	require.Equal(t, http.StatusCreated, first.Code)

	dup := f.do(t, http.MethodPost, "/config/data-disclosure-agreement-records/", payload)
	require.Equal(t, http.StatusConflict, dup.Code)

	payload["renegotiate"] = true
	renegotiated := f.do(t, http.MethodPost, "/config/data-disclosure-agreement-records/", payload)
	require.Equal(t, http.StatusCreated, renegotiated.Code)
}

func TestGetRecordViaHandler(t *testing.T) {
	f := newRecordFixture(t)
	f.activateConnection(t, "conn-1")

	created := decodeRecord(t, f.do(t, http.MethodPost,
		"/config/data-disclosure-agreement-records/", map[string]any{
			"connectionId": "conn-1",
			"templateId":   f.template.TemplateID,
		}))

	rec := f.do(t, http.MethodGet,
		"/config/data-disclosure-agreement-record/"+created.ID.String()+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created.ID, decodeRecord(t, rec).ID)

	missing := f.do(t, http.MethodGet,
		"/config/data-disclosure-agreement-record/"+uuid.NewString()+"/", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)

	malformed := f.do(t, http.MethodGet,
		"/config/data-disclosure-agreement-record/not-a-uuid/", nil)
	require.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestListRecordsWithFilterAndPagination(t *testing.T) {
	f := newRecordFixture(t)
	for i := 0; i < 12; i++ {
		connID := fmt.Sprintf("conn-%d", i)
		f.activateConnection(t, connID)
		rec := f.do(t, http.MethodPost, "/config/data-disclosure-agreement-records/", map[string]any{
			"connectionId": connID,
			"templateId":   f.template.TemplateID,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet,
		"/config/data-disclosure-agreement-records/?offset=10&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records    []*models.Record `json:"dataDisclosureAgreementRecords"`
		Pagination struct {
			TotalItems int `json:"totalItems"`
		} `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Records, 2)
	require.Equal(t, 12, resp.Pagination.TotalItems)

	filtered := f.do(t, http.MethodGet,
		"/config/data-disclosure-agreement-records/?connectionId=conn-3", nil)
	require.Equal(t, http.StatusOK, filtered.Code)
	require.NoError(t, json.NewDecoder(filtered.Body).Decode(&resp))
	require.Len(t, resp.Records, 1)
	require.Equal(t, "conn-3", resp.Records[0].ConnectionID)

	bad := f.do(t, http.MethodGet,
		"/config/data-disclosure-agreement-records/?state=bogus", nil)
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRejectAndAbandonViaHandler(t *testing.T) {
	f := newRecordFixture(t)
	f.activateConnection(t, "conn-1")
	f.activateConnection(t, "conn-2")

	first := decodeRecord(t, f.do(t, http.MethodPost,
		"/config/data-disclosure-agreement-records/", map[string]any{
			"connectionId": "conn-1",
			"templateId":   f.template.TemplateID,
		}))
	rejected := f.do(t, http.MethodPut,
		"/config/data-disclosure-agreement-record/"+first.ID.String()+"/reject/", nil)
	require.Equal(t, http.StatusOK, rejected.Code)
	require.Equal(t, models.StateRejected, decodeRecord(t, rejected).State)

	second := decodeRecord(t, f.do(t, http.MethodPost,
		"/config/data-disclosure-agreement-records/", map[string]any{
			"connectionId": "conn-2",
			"templateId":   f.template.TemplateID,
		}))
	require.NoError(t, f.engine.Apply(f.ctx, webhook.Event{
		Kind:                   webhook.KindPresentationStateChanged,
		ConnectionID:           "conn-2",
		ThreadID:               "t2",
		PresentationExchangeID: "pex-t2",
		State:                  "request_sent",
		Role:                   "verifier",
	}))
	abandoned := f.do(t, http.MethodPut,
		"/config/data-disclosure-agreement-record/"+second.ID.String()+"/abandon/", nil)
	require.Equal(t, http.StatusOK, abandoned.Code)
	require.Equal(t, models.StateAbandoned, decodeRecord(t, abandoned).State)

	// Terminal records refuse further manual transitions.
	again := f.do(t, http.MethodPut,
		"/config/data-disclosure-agreement-record/"+first.ID.String()+"/abandon/", nil)
	require.Equal(t, http.StatusConflict, again.Code)
}

func TestRecordRevisionsViaHandler(t *testing.T) {
	f := newRecordFixture(t)
	f.activateConnection(t, "conn-1")

	created := decodeRecord(t, f.do(t, http.MethodPost,
		"/config/data-disclosure-agreement-records/", map[string]any{
			"connectionId": "conn-1",
			"templateId":   f.template.TemplateID,
		}))
	require.NoError(t, f.engine.Apply(f.ctx, webhook.Event{
		Kind:                   webhook.KindPresentationStateChanged,
		ConnectionID:           "conn-1",
		ThreadID:               "t1",
		PresentationExchangeID: "pex-t1",
		State:                  "request_sent",
		Role:                   "verifier",
	}))

	rec := f.do(t, http.MethodGet,
		"/config/data-disclosure-agreement-record/"+created.ID.String()+"/revisions/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Revisions []*models.Revision `json:"revisions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Revisions, 1)
	require.Equal(t, models.StatePending, resp.Revisions[0].PreviousState)
	require.Equal(t, models.StateRequested, resp.Revisions[0].NewState)
}
