package www

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clinicore/store"
)

// API keys are issued as "<prefix>.<secret>". The prefix is stored in
// clear for lookup; only a bcrypt hash of the secret is persisted.

func generateAPIKey() (plaintext, prefix, hash string, err error) {
	prefix = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	secret := uuid.NewString()
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", err
	}
	return prefix + "." + secret, prefix, string(hashed), nil
}

func (h *Handlers) checkAPIKey(key string) bool {
	prefix, secret, ok := strings.Cut(key, ".")
	if !ok || prefix == "" || secret == "" {
		return false
	}
	stored, err := h.db.GetAPIKeyByPrefix(prefix)
	if err != nil {
		log.Printf("auth: api key lookup: %v", err)
		return false
	}
	if stored == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored.KeyHash), []byte(secret)) == nil
}

func (h *Handlers) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.checkAPIKey(r.Header.Get("x-api-key")) {
			h.jsonError(w, "invalid or missing api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ensureBootstrapKey mints the first key on an empty install and prints
// it once; after that keys are managed through the admin endpoints.
func (h *Handlers) ensureBootstrapKey() {
	count, err := h.db.CountAPIKeys()
	if err != nil || count > 0 {
		return
	}
	plaintext, prefix, hash, err := generateAPIKey()
	if err != nil {
		return
	}
	if err := h.db.CreateAPIKey(prefix, hash, "bootstrap"); err != nil {
		log.Printf("auth: create bootstrap key: %v", err)
		return
	}
	log.Printf("auth: bootstrap api key (store it now, it is not shown again): %s", plaintext)
}

func (h *Handlers) apiCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	// The 8-char prefix can collide with an existing key; regenerate on
	// the unique violation instead of failing the request.
	for attempt := 0; attempt < 3; attempt++ {
		plaintext, prefix, hash, err := generateAPIKey()
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		err = h.db.CreateAPIKey(prefix, hash, req.Label)
		if err == nil {
			h.jsonOK(w, map[string]any{"success": true, "prefix": prefix, "key": plaintext})
			return
		}
		if store.IsUniqueViolation(err) {
			log.Printf("auth: api key prefix collision on %s, regenerating", prefix)
			continue
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonError(w, "could not allocate a unique key prefix", http.StatusInternalServerError)
}

func (h *Handlers) apiDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	if prefix == "" {
		h.jsonError(w, "prefix is required", http.StatusBadRequest)
		return
	}
	if err := h.db.DeleteAPIKey(prefix); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"success": true})
}
