package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the API routes under /api and the
// content routes /view and /download. authEnabled controls whether Bearer
// token auth is enforced on all of them. sseHandler, if non-nil, is mounted
// at GET /api/events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/api", func(r chi.Router) {
		// Conversion.
		r.Post("/convert", h.Convert)
		r.Get("/converters", h.ListConverters)

		// Attachments upload.
		r.Post("/attachments", h.UploadAttachment)

		// Cache.
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.PurgeCache)
		r.Post("/cache/invalidate/*", h.Invalidate)

		// SSE endpoint (protected by same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	// Rendered documents and raw files. Page and stream references in
	// rendered HTML point here.
	r.Get("/view/*", h.View)
	r.Get("/download/*", h.Download)

	return r
}
