// Package handler exposes the webhook topic endpoints consumed by the
// external agent. The contract is fire-and-forget: accepted and discarded
// deliveries are both acknowledged with 200, and only a persistence failure
// surfaces as a retryable 5xx.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataspace/internal/reconcile"
	"dataspace/internal/webhook"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/platform/httputil"
	"dataspace/pkg/requestcontext"
)

// maxPayloadBytes bounds one webhook delivery.
const maxPayloadBytes = 1 << 20

// Engine is the reconciliation entrypoint the handler feeds.
type Engine interface {
	Apply(ctx context.Context, event webhook.Event) error
}

// Handler terminates the three webhook topics.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// New constructs a webhook handler.
func New(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Register mounts the webhook endpoints. These run unauthenticated; payload
// shape validation is the only gate.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhook/topic/connections/", h.topic(webhook.NormalizeConnection))
	r.Post("/webhook/topic/present_proof/", h.topic(webhook.NormalizePresentProof))
	r.Post("/webhook/topic/published_data_disclosure_agreement/", h.topic(webhook.NormalizePublishedDda))
}

type ack struct {
	Status string `json:"status"`
}

func (h *Handler) topic(normalize func([]byte) (webhook.Event, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			h.logger.WarnContext(ctx, "failed to read webhook body",
				"request_id", requestID, "error", err)
			httputil.WriteJSON(w, http.StatusOK, ack{Status: "ignored"})
			return
		}

		event, err := normalize(raw)
		if err != nil {
			// Malformed payloads are acknowledged and dropped, never a 5xx.
			h.logger.WarnContext(ctx, "malformed webhook event discarded",
				"request_id", requestID, "error", err)
			httputil.WriteJSON(w, http.StatusOK, ack{Status: "ignored"})
			return
		}

		if err := h.engine.Apply(ctx, event); err != nil {
			if reconcile.Discardable(err) {
				h.logger.InfoContext(ctx, "webhook event discarded",
					"request_id", requestID,
					"correlation_key", event.CorrelationKey(),
					"reason", err.Error(),
				)
				httputil.WriteJSON(w, http.StatusOK, ack{Status: "discarded"})
				return
			}
			// Persistence failures are the one retryable outcome.
			h.logger.ErrorContext(ctx, "webhook event failed",
				"request_id", requestID,
				"correlation_key", event.CorrelationKey(),
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "event processing failed"))
			return
		}

		httputil.WriteJSON(w, http.StatusOK, ack{Status: "accepted"})
	}
}
