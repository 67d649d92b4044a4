package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Record struct {
	ID             int64     `json:"id"`
	IngestedAt     time.Time `json:"ingested_at"`
	SessionTime    time.Time `json:"session_time"`
	ScriptID       string    `json:"scriptid"`
	UID            string    `json:"uid"`
	IdempotencyKey string    `json:"idempotency_key"`
	IdentityToken  string    `json:"identity_token"`
	RecordToken    string    `json:"record_token"`
	Synced         bool      `json:"synced"`
	Data           string    `json:"data"`
}

const recordSelectCols = `id, ingested_at, session_time, scriptid, uid, idempotency_key, identity_token, record_token, synced, data`

// ts formats a timestamp for binding. SQLite compares and indexes the stored
// text form, so both drivers must see the same canonical layout.
func (db *DB) ts(t time.Time) any {
	if db.driver == "sqlite" {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return t.UTC()
}

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var ingestedAt, sessionTime any
	err := row.Scan(&r.ID, &ingestedAt, &sessionTime, &r.ScriptID, &r.UID,
		&r.IdempotencyKey, &r.IdentityToken, &r.RecordToken, &r.Synced, &r.Data)
	if err != nil {
		return nil, err
	}
	r.IngestedAt = parseTime(ingestedAt)
	r.SessionTime = parseTime(sessionTime)
	return &r, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (db *DB) InsertRecord(r *Record) error {
	if db.driver == "postgres" {
		err := db.QueryRow(db.Q(`INSERT INTO records (ingested_at, session_time, scriptid, uid, idempotency_key, identity_token, record_token, synced, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			db.ts(r.IngestedAt), db.ts(r.SessionTime), r.ScriptID, r.UID,
			r.IdempotencyKey, r.IdentityToken, r.RecordToken, r.Synced, r.Data).Scan(&r.ID)
		if err != nil {
			return err
		}
		return nil
	}
	result, err := db.Exec(`INSERT INTO records (ingested_at, session_time, scriptid, uid, idempotency_key, identity_token, record_token, synced, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.ts(r.IngestedAt), db.ts(r.SessionTime), r.ScriptID, r.UID,
		r.IdempotencyKey, r.IdentityToken, r.RecordToken, r.Synced, r.Data)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert record last id: %w", err)
	}
	r.ID = id
	return nil
}

func (db *DB) GetRecord(id int64) (*Record, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM records WHERE id=?`, recordSelectCols)), id)
	return scanRecord(row)
}

func (db *DB) ListRecords(limit int) ([]*Record, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM records ORDER BY id DESC LIMIT ?`, recordSelectCols)), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// MarkRecordSynced flips the synced flag, the only mutation records receive.
func (db *DB) MarkRecordSynced(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE records SET synced=? WHERE id=?`), true, id)
	return err
}

// CountRecordsSameDay counts records for (uid, scriptid) on the calendar day
// of sessionTime. Duplicate scope for facilities that allow multiple sessions.
func (db *DB) CountRecordsSameDay(uid, scriptID string, sessionTime time.Time) (int, error) {
	var count int
	var err error
	if db.driver == "postgres" {
		err = db.QueryRow(`SELECT COUNT(*) FROM records WHERE uid=$1 AND scriptid=$2 AND date(session_time)=date($3)`,
			uid, scriptID, db.ts(sessionTime)).Scan(&count)
	} else {
		err = db.QueryRow(`SELECT COUNT(*) FROM records WHERE uid=? AND scriptid=? AND date(session_time)=date(?)`,
			uid, scriptID, db.ts(sessionTime)).Scan(&count)
	}
	return count, err
}

// CountRecordsByUIDScript counts records for (uid, scriptid) regardless of
// time. Duplicate scope for admission facilities.
func (db *DB) CountRecordsByUIDScript(uid, scriptID string) (int, error) {
	var count int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM records WHERE uid=? AND scriptid=?`), uid, scriptID).Scan(&count)
	return count, err
}

// EarliestIdentityToken returns the identity token of the uid's earliest
// record across all scripts, used when later sessions share an identity.
func (db *DB) EarliestIdentityToken(uid string) (string, bool, error) {
	var token string
	err := db.QueryRow(db.Q(`SELECT identity_token FROM records WHERE uid=? ORDER BY session_time ASC LIMIT 1`), uid).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// AnyIdentityToken returns any identity token stored for the uid.
func (db *DB) AnyIdentityToken(uid string) (string, bool, error) {
	var token string
	err := db.QueryRow(db.Q(`SELECT identity_token FROM records WHERE uid=? LIMIT 1`), uid).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// ListIdentityTokensByScriptYear returns the distinct identity tokens for a
// script within a session year. Feeds the degraded sequence reconstruction.
func (db *DB) ListIdentityTokensByScriptYear(scriptID string, year int) ([]string, error) {
	var rows *sql.Rows
	var err error
	if db.driver == "postgres" {
		rows, err = db.Query(`SELECT DISTINCT identity_token FROM records WHERE scriptid=$1 AND EXTRACT(YEAR FROM session_time)=$2`, scriptID, year)
	} else {
		rows, err = db.Query(`SELECT DISTINCT identity_token FROM records WHERE scriptid=? AND strftime('%Y', session_time)=?`, scriptID, fmt.Sprintf("%04d", year))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
