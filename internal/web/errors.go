package web

import (
	"encoding/json"
	"net/http"

	"github.com/fieldserve/fieldserve/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure here cannot be reported
	// to the client.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= 500 {
		logging.FromContext(r.Context()).Error("request failed",
			"status", status, "path", r.URL.Path, "error", msg)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
