// Package httptransport assembles the HTTP surface: middleware chain, public
// and authenticated route groups, health and metrics endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accesshandler "healthexchange/internal/access/handler"
	emergencyhandler "healthexchange/internal/emergency/handler"
	identityhandler "healthexchange/internal/identity/handler"
	"healthexchange/internal/platform/metrics"
	"healthexchange/internal/platform/middleware"
	"healthexchange/internal/ratelimit"
	recordshandler "healthexchange/internal/records/handler"
	"healthexchange/pkg/platform/middleware/metadata"
)

// Deps carries everything the router wires together.
type Deps struct {
	Logger    *slog.Logger
	Identity  *identityhandler.Handler
	Access    *accesshandler.Handler
	Records   *recordshandler.Handler
	Emergency *emergencyhandler.Handler
	Tokens    middleware.TokenValidator
	Limiter   *ratelimit.Middleware
	HTTP      *metrics.HTTP
	Health    func(w http.ResponseWriter, r *http.Request)
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Tracing)
	if d.HTTP != nil {
		r.Use(middleware.Latency(d.HTTP))
	}
	r.Use(middleware.Timeout(30 * time.Second))
	if d.Limiter != nil {
		r.Use(d.Limiter.Limit)
	}

	r.Get("/healthz", d.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		d.Identity.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Tokens, d.Logger))
		d.Identity.RegisterProtected(r)
		d.Access.Register(r)
		d.Records.Register(r)
		d.Emergency.Register(r)
	})

	return r
}
