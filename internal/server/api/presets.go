package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/cloak/internal/cloak"
	"github.com/ayusman/cloak/internal/store"
)

// PresetHandler handles HTTP requests for color range presets.
type PresetHandler struct {
	store *store.Store
	ctrl  Controller
}

// NewPresetHandler creates a new PresetHandler. ctrl may be nil, in which
// case presets can be managed but not applied.
func NewPresetHandler(s *store.Store, ctrl Controller) *PresetHandler {
	return &PresetHandler{store: s, ctrl: ctrl}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *PresetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/presets, /api/presets/{id} or /api/presets/{id}/apply
	path := strings.TrimPrefix(r.URL.Path, "/api/presets")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/apply"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.apply(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		http.NotFound(w, r)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createPresetRequest struct {
	Name string `json:"name"`
	// Range defaults to the active range, saving the current tuning.
	Range *cloak.ColorRange `json:"range,omitempty"`
}

type updatePresetRequest struct {
	Name  string            `json:"name"`
	Range *cloak.ColorRange `json:"range,omitempty"`
}

type presetResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Range     cloak.ColorRange `json:"range"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

type listPresetsResponse struct {
	Presets []presetResponse `json:"presets"`
}

// toResponse converts a store.Preset to a presetResponse.
func toResponse(p *store.Preset) presetResponse {
	return presetResponse{
		ID:        p.ID,
		Name:      p.Name,
		Range:     p.Range,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// list handles GET /api/presets and returns all presets.
func (h *PresetHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.Presets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list presets")
		return
	}

	response := listPresetsResponse{
		Presets: make([]presetResponse, 0, len(presets)),
	}

	for _, p := range presets {
		response.Presets = append(response.Presets, toResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/presets/{id} and returns a single preset.
func (h *PresetHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	preset, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(preset))
}

// create handles POST /api/presets and stores a new preset.
func (h *PresetHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	var rng cloak.ColorRange
	switch {
	case req.Range != nil:
		rng = *req.Range
	case h.ctrl != nil:
		rng = h.ctrl.Range()
	default:
		writeError(w, http.StatusBadRequest, "Range is required")
		return
	}

	preset := &store.Preset{
		ID:    uuid.New().String(),
		Name:  req.Name,
		Range: rng,
	}

	if err := h.store.Presets().Create(preset); err != nil {
		h.writeStoreError(w, err, "Failed to create preset")
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(preset))
}

// update handles PUT /api/presets/{id} and updates an existing preset.
func (h *PresetHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	preset, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var req updatePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Update fields if provided
	if req.Name != "" {
		preset.Name = req.Name
	}
	if req.Range != nil {
		preset.Range = *req.Range
	}

	if err := h.store.Presets().Update(preset); err != nil {
		h.writeStoreError(w, err, "Failed to update preset")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(preset))
}

// delete handles DELETE /api/presets/{id} and removes a preset.
func (h *PresetHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Presets().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete preset")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// apply handles POST /api/presets/{id}/apply and makes the preset's range active.
func (h *PresetHandler) apply(w http.ResponseWriter, r *http.Request, id string) {
	if h.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline not available")
		return
	}

	preset, ok := h.lookup(w, id)
	if !ok {
		return
	}

	if err := applyRange(h.ctrl, h.store, preset.Range); err != nil {
		h.writeStoreError(w, err, "Failed to apply preset")
		return
	}

	writeJSON(w, http.StatusOK, preset.Range)
}

// lookup fetches a preset, writing the error response when it fails.
func (h *PresetHandler) lookup(w http.ResponseWriter, id string) (*store.Preset, bool) {
	preset, err := h.store.Presets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return nil, false
	}
	return preset, true
}

func (h *PresetHandler) writeStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, cloak.ErrRangeOutOfDomain):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDuplicateName):
		writeError(w, http.StatusConflict, "Preset name already exists")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Preset not found")
	default:
		writeError(w, http.StatusInternalServerError, message)
	}
}
