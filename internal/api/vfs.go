package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/shelf/internal/shell"
	"github.com/starford/shelf/internal/vfs"
)

// GetNode handles GET /api/vfs/*.
//
//	@Summary		Read a VFS node: a directory listing, file content or link target
//	@Tags			vfs
//	@Produce		json
//	@Param			path		path		string	false	"VFS path"
//	@Param			nofollow	query		bool	false	"Describe a final symlink instead of its target"
//	@Success		200			{object}	NodeResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vfs/{path} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := "/" + wildcardPath(r)
	noFollow, _ := strconv.ParseBool(r.URL.Query().Get("nofollow"))

	n, err := h.fs.Lookup(ctx, p, h.fs.Root(), !noFollow)
	if err != nil {
		writeError(w, err, "vfs lookup failed", slog.String("path", p))
		return
	}

	resp := NodeResponse{Path: vfs.Path(n), Kind: n.Kind()}
	switch v := n.(type) {
	case vfs.Dir:
		children, err := v.Children(ctx)
		if err != nil {
			writeError(w, err, "vfs list failed", slog.String("path", p))
			return
		}
		resp.Entries = make([]shell.Entry, 0, len(children))
		for _, c := range children {
			resp.Entries = append(resp.Entries, shell.EntryOf(c))
		}
	case vfs.File:
		content, err := v.Read(ctx)
		if err != nil {
			writeError(w, err, "vfs read failed", slog.String("path", p))
			return
		}
		resp.Content = &content
		resp.Writable = v.Writable()
	case vfs.Symlink:
		resp.Target = v.Target()
	}
	writeJSON(w, http.StatusOK, resp)
}

// WriteNode handles PUT /api/vfs/*.
//
//	@Summary		Replace the content of a writable VFS file
//	@Tags			vfs
//	@Accept			json
//	@Param			path	path	string				true	"VFS path"
//	@Param			body	body	WriteFileRequest	true	"New content"
//	@Success		204		"Written"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vfs/{path} [put]
func (h *Handler) WriteNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	p := "/" + wildcardPath(r)
	var req WriteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.fs.WriteFile(r.Context(), p, h.fs.Root(), req.Content); err != nil {
		writeError(w, err, "vfs write failed", slog.String("path", p))
		return
	}
	if h.onChange != nil {
		h.onChange("write")
	}
	w.WriteHeader(http.StatusNoContent)
}

// Exec handles POST /api/exec. Each request runs in a fresh shell session
// that starts in the requested directory.
//
//	@Summary		Run a shell command line against the VFS
//	@Tags			shell
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExecRequest	true	"Command line"
//	@Success		200		{object}	ExecResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exec [post]
func (h *Handler) Exec(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Line == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("line is required"))
		return
	}

	sh, err := h.session(r, req.Cwd)
	if err != nil {
		writeError(w, err, "exec cwd failed", slog.String("cwd", req.Cwd))
		return
	}
	out, err := sh.Exec(r.Context(), req.Line)
	if err != nil {
		// A failed command is the caller's problem unless it maps to a
		// more specific status.
		writeJSON(w, statusOf(err, http.StatusBadRequest), errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, ExecResponse{Text: out.Text, Entries: out.Entries, Cwd: sh.Pwd()})
}

// Complete handles GET /api/complete.
//
//	@Summary		Complete a partial command line
//	@Tags			shell
//	@Produce		json
//	@Param			line	query		string	true	"Partial command line"
//	@Param			cwd		query		string	false	"Directory the line is typed in"
//	@Success		200		{object}	CompleteResponse
//	@Security		BearerAuth
//	@Router			/complete [get]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sh, err := h.session(r, q.Get("cwd"))
	if err != nil {
		writeError(w, err, "complete cwd failed", slog.String("cwd", q.Get("cwd")))
		return
	}
	completions := sh.Complete(r.Context(), q.Get("line"))
	if completions == nil {
		completions = []string{}
	}
	writeJSON(w, http.StatusOK, CompleteResponse{Completions: completions})
}

func (h *Handler) session(r *http.Request, cwd string) (*shell.Shell, error) {
	opts := []shell.Option{shell.WithLogger(slog.Default())}
	if h.onChange != nil {
		opts = append(opts, shell.WithChangeHook(h.onChange))
	}
	sh := shell.New(h.fs, opts...)
	if cwd != "" {
		if err := sh.Chdir(r.Context(), cwd); err != nil {
			return nil, err
		}
	}
	return sh, nil
}
