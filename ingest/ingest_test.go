package ingest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"clinicore/config"
	"clinicore/crypt"
	"clinicore/facility"
	"clinicore/store"
)

const mapperJSON = `{
  "programType": "NCU",
  "mappings": {
    "script-adm": {"province": "HA", "district": "DI", "facility": "FC01"},
    "script-multi": {"province": "HA", "district": "DI", "facility": "FC01", "isAdmission": false, "allowMultiple": true},
    "script-follow": {"province": "MA", "district": "BL", "facility": "FC02", "isAdmission": false, "allowMultiple": false}
  }
}`

func testService(t *testing.T) (*Service, *crypt.Cipher) {
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
	return NewService(db, cipher, facilities, "records"), cipher
}

func submission(scriptID, uid string, when time.Time) *Submission {
	return &Submission{
		ScriptID:    scriptID,
		UID:         uid,
		SessionTime: when,
		Data:        json.RawMessage(`{"entries":[]}`),
	}
}

func mustAccept(t *testing.T, svc *Service, sub *Submission) *Result {
	t.Helper()
	res, err := svc.Submit(sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Code != Accepted {
		t.Fatalf("code = %d (%s), want Accepted", res.Code, res.Reason)
	}
	return res
}

func TestSubmitMintsFormattedIdentity(t *testing.T) {
	svc, cipher := testService(t)
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	res := mustAccept(t, svc, submission("script-adm", "uid-1", when))
	rec := res.Record
	if rec.ID == 0 || rec.RecordToken == "" {
		t.Fatalf("record not fully assigned: %+v", rec)
	}

	if res.PlainIdentity != "HA-DI-FC01-2024-NCU-00001" {
		t.Errorf("plain identity = %q", res.PlainIdentity)
	}
	identity, err := cipher.Decrypt(rec.IdentityToken)
	if err != nil {
		t.Fatalf("decrypt identity: %v", err)
	}
	if identity != res.PlainIdentity {
		t.Errorf("stored token decrypts to %q, response carries %q", identity, res.PlainIdentity)
	}

	// The payload is sealed at rest.
	data, err := cipher.Decrypt(rec.Data)
	if err != nil {
		t.Fatalf("decrypt payload: %v", err)
	}
	if data != `{"entries":[]}` {
		t.Errorf("payload = %q", data)
	}
}

func TestSequenceAdvancesPerScriptYear(t *testing.T) {
	svc, cipher := testService(t)
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first := mustAccept(t, svc, submission("script-adm", "uid-1", when))
	second := mustAccept(t, svc, submission("script-adm", "uid-2", when))
	nextYear := mustAccept(t, svc, submission("script-adm", "uid-3", when.AddDate(1, 0, 0)))

	want := map[*Result]string{
		first:    "HA-DI-FC01-2024-NCU-00001",
		second:   "HA-DI-FC01-2024-NCU-00002",
		nextYear: "HA-DI-FC01-2025-NCU-00001",
	}
	for res, identity := range want {
		if res.PlainIdentity != identity {
			t.Errorf("plain identity = %q, want %q", res.PlainIdentity, identity)
		}
		got, err := cipher.Decrypt(res.Record.IdentityToken)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != identity {
			t.Errorf("identity = %q, want %q", got, identity)
		}
	}
}

func TestAdmissionDuplicateRejected(t *testing.T) {
	svc, _ := testService(t)
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mustAccept(t, svc, submission("script-adm", "uid-1", when))

	res, err := svc.Submit(submission("script-adm", "uid-1", when.AddDate(0, 0, 7)))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Code != RejectedDuplicate {
		t.Errorf("code = %d, want RejectedDuplicate", res.Code)
	}
}

func TestAllowMultipleSharesEarliestIdentity(t *testing.T) {
	svc, _ := testService(t)
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	first := mustAccept(t, svc, submission("script-multi", "uid-1", day1))
	second := mustAccept(t, svc, submission("script-multi", "uid-1", day2))
	if second.Record.IdentityToken != first.Record.IdentityToken {
		t.Error("later session should reuse the uid's earliest identity")
	}
	if second.PlainIdentity != first.PlainIdentity || second.PlainIdentity == "" {
		t.Errorf("reused identity should surface the same plaintext: %q vs %q", second.PlainIdentity, first.PlainIdentity)
	}
	if second.Record.RecordToken == first.Record.RecordToken {
		t.Error("record tokens must stay distinct")
	}

	// Same calendar day is still a duplicate.
	res, err := svc.Submit(submission("script-multi", "uid-1", day1.Add(4*time.Hour)))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Code != RejectedDuplicate {
		t.Errorf("same-day code = %d, want RejectedDuplicate", res.Code)
	}
}

func TestFollowUpRequiresPriorIdentity(t *testing.T) {
	svc, _ := testService(t)
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	res, err := svc.Submit(submission("script-follow", "uid-9", when))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Code != RejectedNoPriorIdentity {
		t.Fatalf("code = %d, want RejectedNoPriorIdentity", res.Code)
	}

	adm := mustAccept(t, svc, submission("script-adm", "uid-9", when))
	follow := mustAccept(t, svc, submission("script-follow", "uid-9", when.AddDate(0, 0, 3)))
	if follow.Record.IdentityToken != adm.Record.IdentityToken {
		t.Error("follow-up should attach to the existing identity")
	}
	if follow.PlainIdentity != adm.PlainIdentity || follow.PlainIdentity == "" {
		t.Errorf("follow-up should surface the attached identity: %q vs %q", follow.PlainIdentity, adm.PlainIdentity)
	}
}

func TestValidationRejections(t *testing.T) {
	svc, _ := testService(t)
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := map[string]*Submission{
		"missing scriptid": {UID: "u", SessionTime: when, Data: json.RawMessage(`{}`)},
		"missing uid":      {ScriptID: "script-adm", SessionTime: when, Data: json.RawMessage(`{}`)},
		"zero time":        {ScriptID: "script-adm", UID: "u", Data: json.RawMessage(`{}`)},
		"invalid data":     {ScriptID: "script-adm", UID: "u", SessionTime: when, Data: json.RawMessage(`{broken`)},
	}
	for name, sub := range cases {
		res, err := svc.Submit(sub)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Code != RejectedValidation {
			t.Errorf("%s: code = %d, want RejectedValidation", name, res.Code)
		}
	}
}

func TestUnmappedScriptRejected(t *testing.T) {
	svc, _ := testService(t)
	res, err := svc.Submit(submission("script-unknown", "uid-1", time.Now()))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Code != RejectedUnmappedScript {
		t.Errorf("code = %d, want RejectedUnmappedScript", res.Code)
	}
}

func TestAcceptedRecordEnqueuesOutbox(t *testing.T) {
	svc, _ := testService(t)
	rec := mustAccept(t, svc, submission("script-adm", "uid-1", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))).Record

	pending, err := svc.DB.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].RecordID != rec.ID || pending[0].Topic != "records" {
		t.Fatalf("outbox = %+v", pending)
	}
}

func TestReconstructFromStoredIdentities(t *testing.T) {
	svc, cipher := testService(t)
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		mustAccept(t, svc, submission("script-adm", fmt.Sprintf("uid-%d", i), when.AddDate(0, 0, i)))
	}

	alloc := &Allocator{DB: svc.DB, Cipher: cipher}
	next, err := alloc.reconstruct("script-adm", 2024)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if next != 4 {
		t.Errorf("reconstructed next = %d, want 4", next)
	}

	// Years with no records start over at 1.
	next, err = alloc.reconstruct("script-adm", 2030)
	if err != nil {
		t.Fatalf("reconstruct empty year: %v", err)
	}
	if next != 1 {
		t.Errorf("empty year next = %d, want 1", next)
	}
}

func TestTrailingSequence(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"HA-DI-FC01-2024-NCU-00042", 42, true},
		{"HA-DI-FC01-2024-NCU-1", 1, true},
		{"no suffix here", 0, false},
		{"trailing-dash-", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := trailingSequence(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("trailingSequence(%q) = %d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
