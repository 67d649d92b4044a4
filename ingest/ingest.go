// Package ingest accepts clinical session submissions, assigns each
// accepted record its patient identity and unique record token, and
// persists it exactly once. Duplicate handling follows the facility's
// policy regime; concurrency conflicts surface as database constraint
// violations, never as application locks.
package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"clinicore/crypt"
	"clinicore/facility"
	"clinicore/policy"
	"clinicore/store"
)

// tokenAttempts bounds record-token regeneration on collision.
const tokenAttempts = 5

// Submission is one inbound session record.
type Submission struct {
	ScriptID       string          `json:"scriptid"`
	UID            string          `json:"uid"`
	SessionTime    time.Time       `json:"session_time"`
	IdempotencyKey string          `json:"-"`
	Data           json.RawMessage `json:"data"`
}

// Code classifies the outcome of a submission.
type Code int

const (
	Accepted Code = iota
	RejectedValidation
	RejectedUnmappedScript
	RejectedDuplicate
	RejectedNoPriorIdentity
	ConflictExhausted
	Failed
)

// Result is what the transport layer renders back to the device.
// PlainIdentity carries the human-readable identity for operator
// reference; only the sealed form is ever stored.
type Result struct {
	Code          Code
	Reason        string
	Record        *store.Record
	PlainIdentity string
}

// Service wires the stores, cipher and facility map into the submission
// pipeline. Notify, when set, is called after a record is durably stored.
type Service struct {
	DB         *store.DB
	Cipher     *crypt.Cipher
	Facilities *facility.Resolver
	Seq        *Allocator
	Topic      string
	Notify     func(*store.Record)
}

// NewService builds a service with its own allocator.
func NewService(db *store.DB, cipher *crypt.Cipher, facilities *facility.Resolver, topic string) *Service {
	return &Service{
		DB:         db,
		Cipher:     cipher,
		Facilities: facilities,
		Seq:        &Allocator{DB: db, Cipher: cipher},
		Topic:      topic,
	}
}

// Submit runs one submission through validation, policy, identity
// assignment and persistence. All business rejections come back as a
// Result; the error return is reserved for store and cipher faults.
func (s *Service) Submit(sub *Submission) (*Result, error) {
	if reason := validate(sub); reason != "" {
		return &Result{Code: RejectedValidation, Reason: reason}, nil
	}

	desc, ok := s.Facilities.Resolve(sub.ScriptID)
	if !ok {
		return &Result{Code: RejectedUnmappedScript, Reason: fmt.Sprintf("no facility mapping for script %q", sub.ScriptID)}, nil
	}
	regime := policy.ForDescriptor(desc)

	if res, err := s.checkDuplicate(regime, sub); res != nil || err != nil {
		return res, err
	}

	sealed, plain, res, err := s.assignIdentity(regime, desc, sub)
	if res != nil || err != nil {
		return res, err
	}

	res, err = s.persist(sub, sealed)
	if err == nil && res.Code == Accepted {
		res.PlainIdentity = plain
	}
	return res, err
}

func validate(sub *Submission) string {
	switch {
	case sub.ScriptID == "":
		return "scriptid is required"
	case sub.UID == "":
		return "uid is required"
	case sub.SessionTime.IsZero():
		return "session_time is required"
	case len(sub.Data) == 0 || !json.Valid(sub.Data):
		return "data must be a JSON document"
	}
	return ""
}

// checkDuplicate is the advisory pre-check; the unique index on
// (uid, scriptid, day) remains the authority under concurrency.
func (s *Service) checkDuplicate(regime policy.Regime, sub *Submission) (*Result, error) {
	switch regime.Scope() {
	case policy.ScopeUIDScriptDay:
		n, err := s.DB.CountRecordsSameDay(sub.UID, sub.ScriptID, sub.SessionTime)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if n > 0 {
			return &Result{Code: RejectedDuplicate, Reason: "a session for this uid and script already exists on this day"}, nil
		}
	case policy.ScopeUIDScript:
		n, err := s.DB.CountRecordsByUIDScript(sub.UID, sub.ScriptID)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if n > 0 {
			return &Result{Code: RejectedDuplicate, Reason: "an admission for this uid and script already exists"}, nil
		}
	case policy.ScopeNone:
	}
	return nil, nil
}

// assignIdentity returns the sealed identity token plus its plaintext.
// Reused tokens are opened for the response; a token that no longer
// decrypts degrades to an empty plaintext, never a failed submission.
func (s *Service) assignIdentity(regime policy.Regime, desc facility.Descriptor, sub *Submission) (string, string, *Result, error) {
	switch regime.Sharing() {
	case policy.ShareEarliestByUID:
		token, found, err := s.DB.EarliestIdentityToken(sub.UID)
		if err != nil {
			return "", "", nil, fmt.Errorf("identity lookup: %w", err)
		}
		if found {
			return token, s.open(token), nil, nil
		}
		return s.mint(desc, sub)
	case policy.MintAlways:
		return s.mint(desc, sub)
	case policy.RequireExisting:
		token, found, err := s.DB.AnyIdentityToken(sub.UID)
		if err != nil {
			return "", "", nil, fmt.Errorf("identity lookup: %w", err)
		}
		if !found {
			return "", "", &Result{Code: RejectedNoPriorIdentity, Reason: "no prior identity exists for this uid"}, nil
		}
		return token, s.open(token), nil, nil
	}
	return "", "", nil, fmt.Errorf("unknown sharing mode %d", regime.Sharing())
}

// mint allocates the next sequence and seals the formatted identity.
func (s *Service) mint(desc facility.Descriptor, sub *Submission) (string, string, *Result, error) {
	year := sub.SessionTime.UTC().Year()
	seq, err := s.Seq.Next(sub.ScriptID, year)
	if err != nil {
		return "", "", nil, fmt.Errorf("allocate sequence: %w", err)
	}
	identity := fmt.Sprintf("%s-%s-%s-%d-%s-%05d",
		desc.Province, desc.District, desc.Facility, year, desc.ProgramType, seq)
	sealed, err := s.Cipher.Encrypt(identity)
	if err != nil {
		return "", "", nil, fmt.Errorf("seal identity: %w", err)
	}
	return sealed, identity, nil, nil
}

func (s *Service) open(token string) string {
	plain, err := s.Cipher.Decrypt(token)
	if err != nil {
		log.Printf("ingest: stored identity token does not decrypt: %v", err)
		return ""
	}
	return plain
}

// persist inserts the record, regenerating the record token on collision
// and translating a duplicate-scope constraint race into a rejection.
// The payload is sealed at rest alongside the identity.
func (s *Service) persist(sub *Submission, identity string) (*Result, error) {
	sealedData, err := s.Cipher.Encrypt(string(sub.Data))
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}
	rec := &store.Record{
		IngestedAt:     time.Now().UTC(),
		SessionTime:    sub.SessionTime.UTC(),
		ScriptID:       sub.ScriptID,
		UID:            sub.UID,
		IdempotencyKey: sub.IdempotencyKey,
		IdentityToken:  identity,
		Data:           sealedData,
	}

	for attempt := 1; attempt <= tokenAttempts; attempt++ {
		rec.RecordToken = uuid.NewString()
		err := s.DB.InsertRecord(rec)
		if err == nil {
			s.accepted(rec)
			return &Result{Code: Accepted, Record: rec}, nil
		}
		if store.IsDuplicateScopeConflict(err) {
			return &Result{Code: RejectedDuplicate, Reason: "a concurrent submission for this uid and script won"}, nil
		}
		if store.IsRecordTokenConflict(err) {
			log.Printf("ingest: record token collision on attempt %d for uid %s", attempt, sub.UID)
			continue
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return &Result{Code: ConflictExhausted, Reason: "could not allocate a unique record token"}, nil
}

// accepted enqueues the downstream publication and fires the notifier.
// Outbox failures are logged, not surfaced: the record is already durable.
func (s *Service) accepted(rec *store.Record) {
	if s.Topic != "" {
		payload, err := json.Marshal(rec)
		if err == nil {
			err = s.DB.EnqueueOutbox(s.Topic, payload, rec.ID)
		}
		if err != nil {
			log.Printf("ingest: enqueue outbox for record %d: %v", rec.ID, err)
		}
	}
	if s.Notify != nil {
		s.Notify(rec)
	}
}
