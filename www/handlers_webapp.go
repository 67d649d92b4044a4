package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Configuration sync for the web client: the editor pushes scripts,
// screens and diagnoses; devices pull them with their configuration.

func (h *Handlers) apiSaveWebConfiguration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
		Data     string `json:"data"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		h.jsonError(w, "device_id is required", http.StatusBadRequest)
		return
	}
	if err := h.db.SaveWebConfiguration(req.DeviceID, req.Data); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"success": true})
}

func (h *Handlers) apiGetWebConfiguration(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		h.jsonError(w, "device_id is required", http.StatusBadRequest)
		return
	}
	cfg, err := h.db.GetWebConfiguration(deviceID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, cfg)
}

func (h *Handlers) apiUpsertWebScript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScriptID string `json:"script_id"`
		Position int    `json:"position"`
		Data     string `json:"data"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ScriptID == "" {
		h.jsonError(w, "script_id is required", http.StatusBadRequest)
		return
	}
	if err := h.db.UpsertWebScript(req.ScriptID, req.Position, req.Data); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"success": true})
}

func (h *Handlers) apiListWebScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := h.db.ListWebScripts()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, scripts)
}

func (h *Handlers) apiGetWebScript(w http.ResponseWriter, r *http.Request) {
	s, err := h.db.GetWebScript(chi.URLParam(r, "scriptID"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s == nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, s)
}

func (h *Handlers) apiUpsertWebScreen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScreenID string `json:"screen_id"`
		ScriptID string `json:"script_id"`
		Position int    `json:"position"`
		Data     string `json:"data"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ScreenID == "" || req.ScriptID == "" {
		h.jsonError(w, "screen_id and script_id are required", http.StatusBadRequest)
		return
	}
	if err := h.db.UpsertWebScreen(req.ScreenID, req.ScriptID, req.Position, req.Data); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"success": true})
}

func (h *Handlers) apiListWebScreens(w http.ResponseWriter, r *http.Request) {
	screens, err := h.db.ListWebScreens(r.URL.Query().Get("scriptid"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, screens)
}

func (h *Handlers) apiUpsertWebDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DiagnosisID string `json:"diagnosis_id"`
		ScriptID    string `json:"script_id"`
		Position    int    `json:"position"`
		Data        string `json:"data"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DiagnosisID == "" || req.ScriptID == "" {
		h.jsonError(w, "diagnosis_id and script_id are required", http.StatusBadRequest)
		return
	}
	if err := h.db.UpsertWebDiagnosis(req.DiagnosisID, req.ScriptID, req.Position, req.Data); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"success": true})
}

func (h *Handlers) apiListWebDiagnoses(w http.ResponseWriter, r *http.Request) {
	diagnoses, err := h.db.ListWebDiagnoses(r.URL.Query().Get("scriptid"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, diagnoses)
}
