package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/shelf/internal/catalog"
	"github.com/starford/shelf/internal/vfs"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *catalog.Service
	fs       *vfs.FS
	onChange func(cmd string)
}

// NewHandler creates a new Handler. onChange, if non-nil, runs after a
// request changes the tree through the shell or a VFS write.
func NewHandler(svc *catalog.Service, fsys *vfs.FS, onChange func(cmd string)) *Handler {
	return &Handler{svc: svc, fs: fsys, onChange: onChange}
}

// wildcardPath extracts the path matched by a trailing "*" route.
// Supports encoded slashes from OpenAPI clients (e.g. sf%2Fdune.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListRecords handles GET /api/records.
//
//	@Summary		List catalog records
//	@Tags			records
//	@Produce		json
//	@Success		200		{object}	RecordListResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListRecords(r.Context())
	if err != nil {
		writeError(w, err, "list records failed")
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: items, Total: len(items)})
}

// GetRecord handles GET /api/records/*.
//
//	@Summary		Get a catalog record by path
//	@Tags			records
//	@Produce		json
//	@Param			path	path		string	true	"Record path"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{path} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	rec, err := h.svc.GetRecord(r.Context(), path)
	if err != nil {
		writeError(w, err, "get record failed", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord handles POST /api/records.
//
//	@Summary		Create a catalog record and index its book
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRecordRequest	true	"Record to create"
//	@Success		201		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	rec, err := h.svc.CreateRecord(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, err, "create record failed", slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateRecord handles PUT /api/records/*.
//
//	@Summary		Replace a catalog record with optimistic concurrency
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Record path"
//	@Param			If-Match	header	string				false	"BLAKE3 checksum for optimistic concurrency"
//	@Param			body		body	UpdateRecordRequest	true	"Updated content"
//	@Success		200		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{path} [put]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	var req UpdateRecordRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	rec, err := h.svc.UpdateRecord(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		writeError(w, err, "update record failed", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// MoveRecord handles PATCH /api/records/*.
//
//	@Summary		Rename a catalog record, keeping its book id and tags
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"Record path"
//	@Param			body	body		MoveRecordRequest	true	"New path"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{path} [patch]
func (h *Handler) MoveRecord(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	var req MoveRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if path == "" || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source and destination paths are required"))
		return
	}
	rec, err := h.svc.MoveRecord(r.Context(), path, req.Path)
	if err != nil {
		writeError(w, err, "move record failed", slog.String("path", path), slog.String("to", req.Path))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/records/*.
//
//	@Summary		Delete a catalog record and its book
//	@Tags			records
//	@Param			path	path	string	true	"Record path"
//	@Success		204		"Record deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{path} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteRecord(r.Context(), path); err != nil {
		writeError(w, err, "delete record failed", slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
