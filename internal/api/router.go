package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ostberg/folio/internal/index"
	"github.com/ostberg/folio/internal/project"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// assetsDir is the absolute path of the committed-asset directory.
func NewRouter(svc *project.Service, tags *index.DB, authEnabled bool, token string, sseHandler http.Handler, assetsDir string) chi.Router {
	h := NewHandler(svc, tags)
	ah := NewAssetHandler(assetsDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Projects CRUD.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Put("/projects/{id}", h.UpdateProject)
	r.Delete("/projects/{id}", h.DeleteProject)

	// Thumbnail staging for edit sessions.
	r.Post("/projects/{id}/thumbnail", h.StageThumbnail)
	r.Delete("/projects/{id}/thumbnail", h.CancelEdit)

	// Tag autocomplete.
	r.Get("/tags/suggest", h.SuggestTags)

	// Committed asset files.
	r.Get("/assets/{filename}", ah.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
