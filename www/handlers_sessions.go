package www

import (
	"net/http"
	"time"

	"clinicore/store"
)

func (h *Handlers) apiCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID       string `json:"uid"`
		ScriptID  string `json:"scriptid"`
		UniqueKey string `json:"unique_key"`
		Data      string `json:"data"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UID == "" || req.ScriptID == "" || req.UniqueKey == "" {
		h.jsonError(w, "uid, scriptid and unique_key are required", http.StatusBadRequest)
		return
	}

	exists, err := h.db.SessionExistsByUniqueKey(req.UniqueKey)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if exists {
		// Already accepted; re-uploads are a success, not a conflict.
		h.jsonOK(w, map[string]any{"success": true, "duplicate": true})
		return
	}

	s := &store.Session{
		UID:       req.UID,
		ScriptID:  req.ScriptID,
		UniqueKey: req.UniqueKey,
		Data:      req.Data,
	}
	if err := h.db.CreateSession(s); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.hub.Publish("session-update", `{"action":"created"}`)
	h.jsonOK(w, map[string]any{"success": true, "session": s})
}

func (h *Handlers) apiListSessions(w http.ResponseWriter, r *http.Request) {
	if after := r.URL.Query().Get("ingested_after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			h.jsonError(w, "ingested_after must be RFC3339", http.StatusBadRequest)
			return
		}
		sessions, err := h.db.ListSessionsIngestedAfter(t)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.jsonOK(w, sessions)
		return
	}
	if uid := r.URL.Query().Get("uid"); uid != "" {
		sessions, err := h.db.ListSessionsByUID(uid)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.jsonOK(w, sessions)
		return
	}
	sessions, err := h.db.ListSessions(r.URL.Query().Get("sort"), queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, sessions)
}

func (h *Handlers) apiGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	s, err := h.db.GetSession(id)
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, s)
}

func (h *Handlers) apiUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Data string `json:"data"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := h.db.GetSession(id); err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	if err := h.db.UpdateSession(id, req.Data); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.hub.Publish("session-update", `{"action":"updated"}`)
	h.jsonOK(w, map[string]any{"success": true})
}

func (h *Handlers) apiDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.db.DeleteSession(id); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.hub.Publish("session-update", `{"action":"deleted"}`)
	h.jsonOK(w, map[string]any{"success": true})
}

func (h *Handlers) apiSessionStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.db.CountSessions()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	latest, err := h.db.LatestSessionIngestedAt()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats := map[string]any{"total": total}
	if !latest.IsZero() {
		stats["latest_ingested_at"] = latest
	}
	if prefix := r.URL.Query().Get("uid_prefix"); prefix != "" {
		n, err := h.db.CountSessionsByUIDPrefix(prefix)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		stats["uid_prefix_total"] = n
	}
	h.jsonOK(w, stats)
}
