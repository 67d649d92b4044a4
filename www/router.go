// Package www is the HTTP surface: record ingestion, session CRUD,
// exception intake, web client configuration sync and the SSE stream.
package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clinicore/idem"
	"clinicore/ingest"
	"clinicore/notify"
	"clinicore/store"
)

type Handlers struct {
	db     *store.DB
	ingest *ingest.Service
	guard  *idem.Guard
	hub    *notify.Hub
}

func NewRouter(db *store.DB, svc *ingest.Service, guard *idem.Guard, hub *notify.Hub) (http.Handler, func()) {
	hub.Start()

	h := &Handlers{
		db:     db,
		ingest: svc,
		guard:  guard,
		hub:    hub,
	}

	h.ensureBootstrapKey()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Public
	r.Get("/health", h.apiHealth)
	r.Get("/events", h.sseHandler)

	// Everything else requires an API key.
	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)

		r.Post("/records", h.handleRecordSubmit)
		r.Get("/records", h.apiListRecords)
		r.Get("/records/{id}", h.apiGetRecord)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.apiCreateSession)
			r.Get("/", h.apiListSessions)
			r.Get("/stats", h.apiSessionStats)
			r.Get("/{id}", h.apiGetSession)
			r.Put("/{id}", h.apiUpdateSession)
			r.Delete("/{id}", h.apiDeleteSession)
		})

		r.Post("/exceptions", h.apiCreateException)
		r.Get("/exceptions", h.apiListExceptions)

		r.Route("/web-app", func(r chi.Router) {
			r.Post("/configuration", h.apiSaveWebConfiguration)
			r.Get("/configuration", h.apiGetWebConfiguration)
			r.Post("/scripts", h.apiUpsertWebScript)
			r.Get("/scripts", h.apiListWebScripts)
			r.Get("/scripts/{scriptID}", h.apiGetWebScript)
			r.Post("/screens", h.apiUpsertWebScreen)
			r.Get("/screens", h.apiListWebScreens)
			r.Post("/diagnoses", h.apiUpsertWebDiagnosis)
			r.Get("/diagnoses", h.apiListWebDiagnoses)
		})

		r.Post("/admin/api-keys", h.apiCreateAPIKey)
		r.Delete("/admin/api-keys/{prefix}", h.apiDeleteAPIKey)
	})

	stopFn := func() {
		hub.Stop()
		guard.Close()
	}

	return r, stopFn
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		h.jsonError(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	h.jsonOK(w, map[string]any{
		"status":      "ok",
		"subscribers": h.hub.ClientCount(),
	})
}
