package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a raw, unprocessed session upload. Unlike records these carry
// no identity assignment; they exist for the plain CRUD surface.
type Session struct {
	ID         int64     `json:"id"`
	IngestedAt time.Time `json:"ingested_at"`
	UID        string    `json:"uid"`
	ScriptID   string    `json:"scriptid"`
	UniqueKey  string    `json:"unique_key"`
	Data       string    `json:"data"`
}

const sessionSelectCols = `id, ingested_at, uid, scriptid, unique_key, data`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	var ingestedAt any
	err := row.Scan(&s.ID, &ingestedAt, &s.UID, &s.ScriptID, &s.UniqueKey, &s.Data)
	if err != nil {
		return nil, err
	}
	s.IngestedAt = parseTime(ingestedAt)
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]*Session, error) {
	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (db *DB) CreateSession(s *Session) error {
	if s.IngestedAt.IsZero() {
		s.IngestedAt = time.Now()
	}
	if db.driver == "postgres" {
		return db.QueryRow(db.Q(`INSERT INTO sessions (ingested_at, uid, scriptid, unique_key, data) VALUES (?, ?, ?, ?, ?) RETURNING id`),
			db.ts(s.IngestedAt), s.UID, s.ScriptID, s.UniqueKey, s.Data).Scan(&s.ID)
	}
	result, err := db.Exec(`INSERT INTO sessions (ingested_at, uid, scriptid, unique_key, data) VALUES (?, ?, ?, ?, ?)`,
		db.ts(s.IngestedAt), s.UID, s.ScriptID, s.UniqueKey, s.Data)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create session last id: %w", err)
	}
	s.ID = id
	return nil
}

func (db *DB) GetSession(id int64) (*Session, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM sessions WHERE id=?`, sessionSelectCols)), id)
	return scanSession(row)
}

func (db *DB) ListSessions(sort string, limit int) ([]*Session, error) {
	order := "id"
	if sort == "desc" {
		order = "id DESC"
	}
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM sessions ORDER BY %s LIMIT ?`, sessionSelectCols, order)), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (db *DB) ListSessionsByUID(uid string) ([]*Session, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM sessions WHERE uid=? ORDER BY id`, sessionSelectCols)), uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (db *DB) UpdateSession(id int64, data string) error {
	_, err := db.Exec(db.Q(`UPDATE sessions SET ingested_at=datetime('now'), data=? WHERE id=?`), data, id)
	return err
}

func (db *DB) DeleteSession(id int64) error {
	_, err := db.Exec(db.Q(`DELETE FROM sessions WHERE id=?`), id)
	return err
}

func (db *DB) CountSessions() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

func (db *DB) CountSessionsByUIDPrefix(prefix string) (int, error) {
	var count int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM sessions WHERE uid LIKE ?`), prefix+"%").Scan(&count)
	return count, err
}

// SessionExistsByUniqueKey reports whether a session upload with the client
// key was already accepted.
func (db *DB) SessionExistsByUniqueKey(key string) (bool, error) {
	var count int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM sessions WHERE unique_key=?`), key).Scan(&count)
	return count > 0, err
}

// LatestSessionIngestedAt returns the most recent ingestion time, zero when
// the table is empty.
func (db *DB) LatestSessionIngestedAt() (time.Time, error) {
	var v any
	err := db.QueryRow(`SELECT MAX(ingested_at) FROM sessions`).Scan(&v)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(v), nil
}

func (db *DB) ListSessionsIngestedAfter(t time.Time) ([]*Session, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM sessions WHERE ingested_at > ? ORDER BY ingested_at`, sessionSelectCols)), db.ts(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}
