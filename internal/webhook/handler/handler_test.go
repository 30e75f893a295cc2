package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dataspace/internal/reconcile"
	"dataspace/internal/webhook"
)

type stubEngine struct {
	err    error
	events []webhook.Event
}

func (s *stubEngine) Apply(_ context.Context, event webhook.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func newWebhookRouter(engine Engine) chi.Router {
	r := chi.NewRouter()
	New(engine, slog.Default()).Register(r)
	return r
}

func deliver(t *testing.T, router chi.Router, topic string, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/topic/"+topic+"/",
		bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func ackStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Status
}

func TestAcceptedDelivery(t *testing.T) {
	engine := &stubEngine{}
	router := newWebhookRouter(engine)

	rec := deliver(t, router, "connections", `{"connection_id": "c1", "state": "active"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "accepted", ackStatus(t, rec))
	require.Len(t, engine.events, 1)
	require.Equal(t, webhook.KindConnectionStateChanged, engine.events[0].Kind)
}

func TestMalformedPayloadAcknowledged(t *testing.T) {
	engine := &stubEngine{}
	router := newWebhookRouter(engine)

	rec := deliver(t, router, "present_proof", `{"state": "verified"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ignored", ackStatus(t, rec))
	require.Empty(t, engine.events, "malformed events never reach the engine")

	rec = deliver(t, router, "connections", `{not json`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ignored", ackStatus(t, rec))
}

func TestDiscardableOutcomesAcknowledged(t *testing.T) {
	for _, engineErr := range []error{
		reconcile.ErrDuplicateEvent,
		reconcile.ErrOutOfOrderEvent,
		reconcile.ErrUnmatchedEvent,
	} {
		engine := &stubEngine{err: engineErr}
		router := newWebhookRouter(engine)

		rec := deliver(t, router, "present_proof",
			`{"thread_id": "t1", "state": "verified"}`)
		require.Equal(t, http.StatusOK, rec.Code, "outcome %v must ack", engineErr)
		require.Equal(t, "discarded", ackStatus(t, rec))
	}
}

func TestPersistenceFailureIsRetryable(t *testing.T) {
	engine := &stubEngine{err: errors.New("connection refused")}
	router := newWebhookRouter(engine)

	rec := deliver(t, router, "present_proof", `{"thread_id": "t1", "state": "verified"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "internal_error", resp["error"])
	// Internal details never leak to the producer.
	require.Empty(t, resp["error_description"])
}

func TestPublishedDdaTopic(t *testing.T) {
	engine := &stubEngine{}
	router := newWebhookRouter(engine)

	rec := deliver(t, router, "published_data_disclosure_agreement", `{
		"connection_id": "c1",
		"template_id": "lineage-1",
		"dda": {
			"purpose": "research",
			"lawfulBasis": "consent",
			"dataController": {"name": "Acme"},
			"dataSharingRestrictions": {
				"policyUrl": "https://acme.example/policy",
				"jurisdiction": "EU",
				"dataRetentionPeriod": 365
			}
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "accepted", ackStatus(t, rec))
	require.Len(t, engine.events, 1)
	require.Equal(t, webhook.KindDdaPublished, engine.events[0].Kind)
}
