package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keygate/license-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for license use-cases.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers license HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/licenses/v1", func(r chi.Router) {
		r.Post("/verify", handler.verify)
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Post("/login", handler.adminLogin)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/licenses", handler.createLicense)
			r.Get("/licenses", handler.listLicenses)
			r.Get("/licenses/{license_id}", handler.getLicense)
			r.Post("/licenses/{license_id}/unblock", handler.unblockLicense)
		})
	})

	return r
}
