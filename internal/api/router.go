package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/shelf/internal/catalog"
	"github.com/starford/shelf/internal/vfs"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// onChange, if non-nil, runs after a request changes the tree.
func NewRouter(svc *catalog.Service, fsys *vfs.FS, authEnabled bool, token string, sseHandler http.Handler, onChange func(cmd string)) chi.Router {
	h := NewHandler(svc, fsys, onChange)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Catalog records CRUD.
	r.Get("/records", h.ListRecords)
	r.Post("/records", h.CreateRecord)
	r.Get("/records/*", h.GetRecord)
	r.Put("/records/*", h.UpdateRecord)
	r.Patch("/records/*", h.MoveRecord)
	r.Delete("/records/*", h.DeleteRecord)

	// Virtual filesystem.
	r.Get("/vfs", h.GetNode)
	r.Get("/vfs/*", h.GetNode)
	r.Put("/vfs/*", h.WriteNode)

	// Shell.
	r.Post("/exec", h.Exec)
	r.Get("/complete", h.Complete)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
