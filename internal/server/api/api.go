// Package api provides HTTP API handlers for controlling the cloak pipeline.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/cloak/internal/app"
	"github.com/ayusman/cloak/internal/cloak"
)

// Controller is the part of the running pipeline the API drives.
// *app.App implements it.
type Controller interface {
	Range() cloak.ColorRange
	SetRange(r cloak.ColorRange) error
	SetEnabled(enabled bool)
	Status() app.Status
	Signal(s app.Signal)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
