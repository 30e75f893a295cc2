// Package http assembles the portal's HTTP surface: the authenticated /config
// and /onboard API, the unauthenticated webhook receivers, and the
// operational endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ddahandler "dataspace/internal/dda/handler"
	rechandler "dataspace/internal/ddarecord/handler"
	onboardhandler "dataspace/internal/onboard/handler"
	orghandler "dataspace/internal/organisation/handler"
	"dataspace/internal/platform/metrics"
	"dataspace/internal/platform/middleware"
	webhookhandler "dataspace/internal/webhook/handler"
	"dataspace/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Templates *ddahandler.Handler
	Records   *rechandler.Handler
	DataSrc   *orghandler.Handler
	Onboard   *onboardhandler.Handler
	Webhooks  *webhookhandler.Handler

	Auth           func(http.Handler) http.Handler
	RequestTimeout func(http.Handler) http.Handler
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// NewRouter wires the middleware chain and all handlers.
//
// Webhook routes skip the timeout and auth middleware: agents retry on
// non-200 responses, so a timeout-induced 503 would multiply deliveries for
// the reconciler to absorb.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.ClientMetadata)
	if d.Metrics != nil {
		r.Use(middleware.Latency(d.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Unauthenticated API: registration and login.
	r.Group(func(pr chi.Router) {
		pr.Use(d.RequestTimeout)
		pr.Use(middleware.ContentTypeJSON)
		d.Onboard.RegisterPublic(pr)
	})

	// Authenticated API.
	r.Group(func(ar chi.Router) {
		ar.Use(d.RequestTimeout)
		ar.Use(middleware.ContentTypeJSON)
		ar.Use(d.Auth)
		d.Onboard.RegisterProtected(ar)
		d.DataSrc.Register(ar)
		d.Templates.Register(ar)
		d.Records.Register(ar)
	})

	// Webhook receivers.
	r.Group(func(wr chi.Router) {
		d.Webhooks.Register(wr)
	})

	return r
}
