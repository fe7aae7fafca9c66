package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mediabin/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(sess *session.Session, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(sess)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Catalog.
	r.Get("/assets", h.ListAssets)
	r.Get("/assets/{id}", h.GetAsset)
	r.Patch("/assets/{id}", h.UpdateAsset)
	r.Delete("/assets/{id}", h.DeleteAsset)
	r.Get("/assets/{id}/thumbnail", h.Thumbnail)

	// Imports.
	r.Get("/imports", h.ListImports)
	r.Post("/imports", h.StartImport)
	r.Delete("/imports/current", h.CancelImport)
	r.Get("/imports/{id}", h.GetImport)

	// View projection.
	r.Get("/view", h.GetView)
	r.Get("/view/columns", h.Columns)
	r.Put("/view/filter", h.SetFilter)
	r.Put("/view/sort", h.SetSort)
	r.Put("/view/cells", h.SetCell)
	r.Post("/view/export", h.Export)

	// Project document.
	r.Get("/project", h.ProjectStatus)
	r.Post("/project/save", h.SaveProject)
	r.Post("/project/load", h.LoadProject)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
