package store

import "time"

type SequenceCounter struct {
	ID           int64
	ScriptID     string
	Year         int
	LastSequence int
	UpdatedAt    time.Time
}

// NextSequence atomically increments and returns the counter for
// (scriptid, year), inserting it at 1 on first use. The upsert is a single
// statement so concurrent callers are serialized by the store, never by the
// application; this is the only cross-request mutual-exclusion point.
func (db *DB) NextSequence(scriptID string, year int) (int, error) {
	var seq int
	err := db.QueryRow(db.Q(`INSERT INTO sequence_counters (scriptid, year, last_sequence, updated_at)
		VALUES (?, ?, 1, datetime('now'))
		ON CONFLICT (scriptid, year)
		DO UPDATE SET last_sequence = last_sequence + 1, updated_at = datetime('now')
		RETURNING last_sequence`), scriptID, year).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// GetSequence returns the current counter value without incrementing,
// 0 when the counter has never been used.
func (db *DB) GetSequence(scriptID string, year int) (int, error) {
	var seq int
	err := db.QueryRow(db.Q(`SELECT COALESCE(MAX(last_sequence), 0) FROM sequence_counters WHERE scriptid=? AND year=?`), scriptID, year).Scan(&seq)
	return seq, err
}
