package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/shelf/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps an error to an HTTP status by its sentinel. Errors that
// match none of them get fallback.
func statusOf(err error, fallback int) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrTagHasChildren),
		errors.Is(err, apperr.ErrDuplicateTagPath):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidArgument),
		errors.Is(err, apperr.ErrNotADirectory),
		errors.Is(err, apperr.ErrIsADirectory),
		errors.Is(err, apperr.ErrReadOnlyWrite),
		errors.Is(err, apperr.ErrBrokenSymlink),
		errors.Is(err, apperr.ErrSymlinkLoop),
		errors.Is(err, apperr.ErrBadPattern):
		return http.StatusBadRequest
	}
	return fallback
}

// writeError answers with the status statusOf picks. Internal errors are
// logged and their text is not sent to the client.
func writeError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	status := statusOf(err, http.StatusInternalServerError)
	if status == http.StatusInternalServerError {
		slog.Error(msg, append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
