// Package api is the daemon's HTTP control surface: company management, job
// control and observation, declaration listings.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ykovtun/declsync/internal/bus"
	"github.com/ykovtun/declsync/internal/store"
	"github.com/ykovtun/declsync/internal/syncjob"
)

// Handlers bundles the daemon dependencies the HTTP layer drives.
type Handlers struct {
	db         *store.DB
	controller *syncjob.Controller
	creds      *syncjob.Credentials
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(db *store.DB, controller *syncjob.Controller, creds *syncjob.Credentials, b *bus.Bus, logger *zap.Logger) *Handlers {
	return &Handlers{db: db, controller: controller, creds: creds, bus: b, logger: logger}
}

// Router builds the chi router over the handler set.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/companies", h.ListCompanies)
		r.Post("/companies", h.CreateCompany)

		r.Post("/sync/period", h.StartPeriodSync)
		r.Post("/sync/staged", h.StartStagedSync)

		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{jobID}", h.GetJob)
		r.Post("/jobs/{jobID}/cancel", h.CancelJob)

		r.Get("/events", h.StreamEvents)

		r.Get("/declarations", h.ListDeclarations)
		r.Get("/declarations/{declarationID}", h.GetDeclaration)
		r.Get("/history", h.ListHistory)
	})

	return r
}

// Healthz is the liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// roleFrom reads the caller's role from the X-Auth-Role header. An absent
// header is a viewer: read-only access.
func roleFrom(r *http.Request) syncjob.Role {
	role := syncjob.Role(r.Header.Get("X-Auth-Role"))
	if role == "" {
		return syncjob.RoleViewer
	}
	return role
}
