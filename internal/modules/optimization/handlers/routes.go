package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers optimization routes. runLimit wraps the run
// endpoint and may be nil.
func (h *Handler) RegisterRoutes(r chi.Router, runLimit func(http.Handler) http.Handler) {
	r.Route("/optimization", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if runLimit != nil {
				r.Use(runLimit)
			}
			r.Post("/run", h.HandleRun)
		})
		r.Get("/runs/{id}", h.HandleGetRun)
	})
}
