package www

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"clinicore/config"
	"clinicore/crypt"
	"clinicore/facility"
	"clinicore/idem"
	"clinicore/ingest"
	"clinicore/notify"
	"clinicore/store"
)

const mapperJSON = `{
  "programType": "NCU",
  "mappings": {
    "script-adm": {"province": "HA", "district": "DI", "facility": "FC01"}
  }
}`

type testEnv struct {
	router http.Handler
	db     *store.DB
	apiKey string
	stop   func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Defaults().Database
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cipher, err := crypt.New("test-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	facilities, err := facility.Parse([]byte(mapperJSON))
	if err != nil {
		t.Fatalf("facilities: %v", err)
	}

	// Seed a known key so requests can authenticate deterministically.
	plaintext, prefix, hash, err := generateAPIKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := db.CreateAPIKey(prefix, hash, "test"); err != nil {
		t.Fatalf("create key: %v", err)
	}

	svc := ingest.NewService(db, cipher, facilities, "records")
	guard := idem.NewGuard(10*time.Second, time.Second)
	hub := notify.NewHub()

	router, stop := NewRouter(db, svc, guard, hub)
	t.Cleanup(stop)

	return &testEnv{router: router, db: db, apiKey: plaintext, stop: stop}
}

func (e *testEnv) request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("x-api-key", e.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func recordBody(uid string) map[string]any {
	return map[string]any{
		"scriptid":     "script-adm",
		"uid":          uid,
		"session_time": time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"data":         map[string]any{"entries": []any{}},
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("health = %d, want 200", rr.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/records", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no key = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest("GET", "/records", nil)
	req.Header.Set("x-api-key", "bogus.key")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad key = %d, want 401", rr.Code)
	}
}

func TestRecordSubmitAccepted(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(t, "POST", "/records", recordBody("uid-1"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Success  bool          `json:"success"`
		Record   *store.Record `json:"record"`
		Identity string        `json:"identity"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Record == nil || resp.Record.IdentityToken == "" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Identity != "HA-DI-FC01-2024-NCU-00001" {
		t.Errorf("identity = %q", resp.Identity)
	}
}

func TestRecordSubmitReplaysIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	headers := map[string]string{"x-idempotency-key": "retry-1"}

	first := env.request(t, "POST", "/records", recordBody("uid-1"), headers)
	if first.Code != http.StatusOK {
		t.Fatalf("first = %d: %s", first.Code, first.Body.String())
	}
	second := env.request(t, "POST", "/records", recordBody("uid-1"), headers)
	if second.Code != http.StatusOK {
		t.Fatalf("replay = %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("replay body differs from original")
	}

	records, err := env.db.ListRecords(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("stored records = %d, want 1", len(records))
	}
}

func TestRecordDuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t)

	if rr := env.request(t, "POST", "/records", recordBody("uid-1"), nil); rr.Code != http.StatusOK {
		t.Fatalf("first = %d", rr.Code)
	}
	rr := env.request(t, "POST", "/records", recordBody("uid-1"), nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", rr.Code)
	}
}

func TestRecordUnmappedScriptIsSoftFailure(t *testing.T) {
	env := newTestEnv(t)

	body := recordBody("uid-1")
	body["scriptid"] = "script-unknown"
	rr := env.request(t, "POST", "/records", body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unmapped = %d, want 200", rr.Code)
	}
	var resp struct {
		Success bool `json:"success"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Success {
		t.Error("unmapped script should report success=false")
	}
}

func TestRecordValidationRejected(t *testing.T) {
	env := newTestEnv(t)
	body := recordBody("uid-1")
	delete(body, "uid")
	rr := env.request(t, "POST", "/records", body, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing uid = %d, want 400", rr.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	create := map[string]any{
		"uid":        "uid-1",
		"scriptid":   "script-adm",
		"unique_key": "device-1-0001",
		"data":       `{"entries":[]}`,
	}
	rr := env.request(t, "POST", "/sessions", create, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Session *store.Session `json:"session"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil || created.Session == nil {
		t.Fatalf("create response: %v %s", err, rr.Body.String())
	}
	id := created.Session.ID

	// Re-upload of the same unique key is a duplicate success.
	rr = env.request(t, "POST", "/sessions", create, nil)
	var dup struct {
		Duplicate bool `json:"duplicate"`
	}
	json.Unmarshal(rr.Body.Bytes(), &dup)
	if rr.Code != http.StatusOK || !dup.Duplicate {
		t.Errorf("re-upload = %d duplicate=%v", rr.Code, dup.Duplicate)
	}

	rr = env.request(t, "GET", fmt.Sprintf("/sessions/%d", id), nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("get = %d", rr.Code)
	}

	rr = env.request(t, "PUT", fmt.Sprintf("/sessions/%d", id), map[string]any{"data": `{"v":2}`}, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("update = %d", rr.Code)
	}
	s, err := env.db.GetSession(id)
	if err != nil || s.Data != `{"v":2}` {
		t.Errorf("updated data = %q, %v", s.Data, err)
	}

	rr = env.request(t, "DELETE", fmt.Sprintf("/sessions/%d", id), nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("delete = %d", rr.Code)
	}
	if _, err := env.db.GetSession(id); err == nil {
		t.Error("session should be gone")
	}
}

func TestExceptionIntake(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(t, "POST", "/exceptions", map[string]any{
		"country":      "zw",
		"version":      "2.1.0",
		"device_model": "SM-T510",
		"message":      "null deref in screen renderer",
		"stack":        "at render (screen.js:42)",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.request(t, "GET", "/exceptions", nil, nil)
	var list []*store.AppException
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Message != "null deref in screen renderer" {
		t.Errorf("list = %+v", list)
	}
}

func TestWebAppConfigurationSync(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(t, "POST", "/web-app/configuration", map[string]any{
		"device_id": "device-1",
		"data":      `{"lang":"en"}`,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("save = %d", rr.Code)
	}

	rr = env.request(t, "GET", "/web-app/configuration?device_id=device-1", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get = %d", rr.Code)
	}
	var cfg store.WebConfiguration
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil || cfg.Data != `{"lang":"en"}` {
		t.Errorf("config = %+v, %v", cfg, err)
	}

	rr = env.request(t, "POST", "/web-app/scripts", map[string]any{
		"script_id": "script-adm", "position": 1, "data": `{"title":"Admission"}`,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("script upsert = %d", rr.Code)
	}
	rr = env.request(t, "GET", "/web-app/scripts/script-adm", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("script get = %d", rr.Code)
	}
}

func TestAPIKeyAdmin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(t, "POST", "/admin/api-keys", map[string]any{"label": "editor"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("create = %d", rr.Code)
	}
	var created struct {
		Key    string `json:"key"`
		Prefix string `json:"prefix"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil || created.Key == "" {
		t.Fatalf("create response: %v", err)
	}

	// The minted key authenticates.
	req := httptest.NewRequest("GET", "/records", nil)
	req.Header.Set("x-api-key", created.Key)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("minted key = %d, want 200", rec.Code)
	}

	rr = env.request(t, "DELETE", "/admin/api-keys/"+created.Prefix, nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("delete = %d", rr.Code)
	}
	req = httptest.NewRequest("GET", "/records", nil)
	req.Header.Set("x-api-key", created.Key)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked key = %d, want 401", rec.Code)
	}
}
