package www

import (
	"fmt"
	"net/http"

	"clinicore/store"
)

func (h *Handlers) apiCreateException(w http.ResponseWriter, r *http.Request) {
	var e store.AppException
	if err := decodeJSON(r, &e); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if e.Message == "" {
		h.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	if err := h.db.CreateAppException(&e); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.hub.Publish("exception", fmt.Sprintf(`{"id":%d}`, e.ID))
	h.jsonOK(w, map[string]any{"success": true, "id": e.ID})
}

func (h *Handlers) apiListExceptions(w http.ResponseWriter, r *http.Request) {
	exceptions, err := h.db.ListUnmailedExceptions(queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, exceptions)
}
