package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"clinicore/idem"
	"clinicore/ingest"
)

// handleRecordSubmit is the ingestion endpoint. Retries carrying an
// x-idempotency-key replay the first response instead of re-running the
// pipeline; followers of an in-flight submission wait for the winner.
func (h *Handlers) handleRecordSubmit(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("x-idempotency-key")

	res, cached, ticket := h.guard.Acquire(key)
	switch res {
	case idem.Replayed:
		writeOutcome(w, cached)
		return
	case idem.TimedOut:
		h.jsonError(w, "a submission with this idempotency key is still in progress", http.StatusRequestTimeout)
		return
	}

	outcome := h.processRecord(r, key)
	// Server faults are not cached; the retry should run the pipeline again.
	if outcome.Status >= http.StatusInternalServerError {
		ticket.Abandon()
	} else {
		ticket.Complete(outcome)
	}
	writeOutcome(w, outcome)
}

func (h *Handlers) processRecord(r *http.Request, key string) idem.Outcome {
	var sub ingest.Submission
	if err := decodeJSON(r, &sub); err != nil {
		return outcomeError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	sub.IdempotencyKey = key

	result, err := h.ingest.Submit(&sub)
	if err != nil {
		log.Printf("www: record submit: %v", err)
		return outcomeError(http.StatusInternalServerError, "internal error")
	}

	switch result.Code {
	case ingest.Accepted:
		body, _ := json.Marshal(map[string]any{
			"success":  true,
			"record":   result.Record,
			"identity": result.PlainIdentity,
		})
		return idem.Outcome{Status: http.StatusOK, Body: body}
	case ingest.RejectedValidation:
		return outcomeError(http.StatusBadRequest, result.Reason)
	case ingest.RejectedUnmappedScript:
		// Devices treat an unmapped script as a soft failure, not an HTTP error.
		return outcomeError(http.StatusOK, result.Reason)
	case ingest.RejectedDuplicate:
		return outcomeError(http.StatusConflict, result.Reason)
	case ingest.RejectedNoPriorIdentity:
		return outcomeError(http.StatusNotFound, result.Reason)
	case ingest.ConflictExhausted:
		return outcomeError(http.StatusConflict, result.Reason)
	default:
		return outcomeError(http.StatusInternalServerError, "internal error")
	}
}

func outcomeError(status int, msg string) idem.Outcome {
	body, _ := json.Marshal(map[string]any{"success": false, "error": msg})
	return idem.Outcome{Status: status, Body: body}
}

func writeOutcome(w http.ResponseWriter, out idem.Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(out.Status)
	w.Write(out.Body)
}

func (h *Handlers) apiListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.db.ListRecords(queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, records)
}

func (h *Handlers) apiGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	rec, err := h.db.GetRecord(id)
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, rec)
}
