package http

import (
	"net/http"

	"github.com/Strob0t/TraceScope/internal/domain/filter"
	"github.com/Strob0t/TraceScope/internal/domain/override"
)

type overridesResponse struct {
	Generation uint64                       `json:"generation"`
	Overrides  map[string]override.Override `json:"overrides"`
}

func (h *Handlers) writeOverrides(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, overridesResponse{
		Generation: h.Session.Info().Generation,
		Overrides:  h.Session.Overrides(),
	})
}

// ListOverrides handles GET /api/v1/session/overrides
func (h *Handlers) ListOverrides(w http.ResponseWriter, _ *http.Request) {
	h.writeOverrides(w)
}

type overrideRequest struct {
	Label   *string `json:"label"`
	Removed *bool   `json:"removed"`
}

// PutOverride handles PUT /api/v1/session/overrides/{id}
//
// Either field may be omitted; omitted fields keep their current override.
// Both fields are applied as one change.
func (h *Handlers) PutOverride(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[overrideRequest](w, r, maxSettingsBytes)
	if !ok {
		return
	}
	if req.Label == nil && req.Removed == nil {
		writeError(w, http.StatusBadRequest, "label or removed is required")
		return
	}
	if _, err := h.Session.SetOverride(r.Context(), id, req.Label, req.Removed); err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	h.writeOverrides(w)
}

// DeleteOverride handles DELETE /api/v1/session/overrides/{id}
func (h *Handlers) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Session.ClearOverride(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	h.writeOverrides(w)
}

// GetFilters handles GET /api/v1/session/filters
func (h *Handlers) GetFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Filters())
}

// PutFilters handles PUT /api/v1/session/filters
func (h *Handlers) PutFilters(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[filter.Settings](w, r, maxSettingsBytes)
	if !ok {
		return
	}
	if _, err := h.Session.SetFilters(r.Context(), req); err != nil {
		writeDomainError(w, err, "invalid filter settings")
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Filters())
}

// ExportFilters handles GET /api/v1/session/filters/export
func (h *Handlers) ExportFilters(w http.ResponseWriter, _ *http.Request) {
	data, err := h.Session.ExportFilters()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeAttachment(w, "application/json", "tracescope-filters.json", data)
}

// ImportFilters handles POST /api/v1/session/filters/import
func (h *Handlers) ImportFilters(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r, maxSettingsBytes)
	if !ok {
		return
	}
	if _, err := h.Session.ImportFilters(r.Context(), data); err != nil {
		writeDomainError(w, err, "invalid filter settings")
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Filters())
}

// ListPresets handles GET /api/v1/filters/presets
//
// It returns the built-in groups; groups loaded from the preset directory are
// already part of the session settings.
func (h *Handlers) ListPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, filter.DefaultGroups())
}
