package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is returned on webhook rejection or failure.
type errorResponse struct {
	Error string `json:"error"`
}

// statusResponse is returned by the webhook, test and health endpoints.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// writeJSON sends v with status. Responses describe one delivery attempt
// and must not be cached.
func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: writing response failed", "status", status, "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeStatus(w http.ResponseWriter, status int, state, msg string) {
	writeJSON(w, status, statusResponse{Status: state, Message: msg})
}
