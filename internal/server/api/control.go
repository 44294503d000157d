package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ayusman/cloak/internal/app"
	"github.com/ayusman/cloak/internal/cloak"
	"github.com/ayusman/cloak/internal/store"
)

// ControlHandler serves the live controls: the active range, the enable
// toggle, status and the recapture and quit signals.
type ControlHandler struct {
	ctrl  Controller
	store *store.Store
}

// NewControlHandler creates a ControlHandler. When s is not nil, range
// changes are persisted so the next run starts from them.
func NewControlHandler(ctrl Controller, s *store.Store) *ControlHandler {
	return &ControlHandler{ctrl: ctrl, store: s}
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type signalResponse struct {
	Signal string `json:"signal"`
}

// Range handles GET and PUT /api/range. A PUT body may carry any subset of
// the six bounds; omitted bounds keep their current value.
func (h *ControlHandler) Range(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctrl.Range())
	case http.MethodPut:
		rng := h.ctrl.Range()
		if err := json.NewDecoder(r.Body).Decode(&rng); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := applyRange(h.ctrl, h.store, rng); err != nil {
			if errors.Is(err, cloak.ErrRangeOutOfDomain) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to apply range")
			return
		}
		writeJSON(w, http.StatusOK, rng)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// applyRange makes rng the active range and persists it when s is set.
func applyRange(ctrl Controller, s *store.Store, rng cloak.ColorRange) error {
	if err := ctrl.SetRange(rng); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	if err := s.Settings().SetActiveRange(rng); err != nil {
		// The live range already changed; only the next run misses it.
		log.Printf("Failed to persist active range: %v", err)
	}
	return nil
}

// Status handles GET /api/status.
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// Enabled handles PUT /api/enabled with a body of {"enabled": bool}.
func (h *ControlHandler) Enabled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	h.ctrl.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// Recapture handles POST /api/recapture. The capture runs asynchronously.
func (h *ControlHandler) Recapture(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, app.SignalRecapture)
}

// Quit handles POST /api/quit.
func (h *ControlHandler) Quit(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, app.SignalQuit)
}

func (h *ControlHandler) signal(w http.ResponseWriter, r *http.Request, s app.Signal) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.ctrl.Signal(s)
	writeJSON(w, http.StatusAccepted, signalResponse{Signal: s.String()})
}
