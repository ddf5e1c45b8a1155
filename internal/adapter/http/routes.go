package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		r.Get("/filters/presets", h.ListPresets)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Put("/trace", h.LoadTrace)
			r.Put("/video", h.SetVideo)

			// Derived views
			r.Get("/events", h.ListEvents)
			r.Get("/timeline", h.GetTimeline)
			r.Get("/timeline/near", h.MarkersNear)
			r.Get("/timeline/markers/{id}", h.GetMarker)
			r.Get("/diagram", h.GetDiagram)
			r.Get("/diagram.mmd", h.DownloadDiagram)
			r.Get("/insights", h.GetInsights)
			r.Get("/export", h.ExportTrace)

			// Overrides
			r.Get("/overrides", h.ListOverrides)
			r.Put("/overrides/{id}", h.PutOverride)
			r.Delete("/overrides/{id}", h.DeleteOverride)

			// Filters
			r.Get("/filters", h.GetFilters)
			r.Put("/filters", h.PutFilters)
			r.Get("/filters/export", h.ExportFilters)
			r.Post("/filters/import", h.ImportFilters)
		})
	})
}
