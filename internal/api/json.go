package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/noteintel/internal/apperr"
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

// statusOf maps an error kind to an HTTP status. Caller input is 400, a
// missing entity 404, a failing search backend 502, anything else 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrSearchIndex), errors.Is(err, apperr.ErrSearchEngine):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and writes the mapped status. Client
// errors carry their message; server errors are reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusBadRequest:
		writeJSON(w, status, errorBody(err.Error()))
	case http.StatusNotFound:
		writeJSON(w, status, errorBody("not found"))
	default:
		slog.Error("api: request failed",
			slog.String("path", r.URL.Path),
			slog.String("op", apperr.Op(err)),
			slog.String("error", err.Error()))
		writeJSON(w, status, errorBody(http.StatusText(status)))
	}
}
