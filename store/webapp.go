package store

import (
	"database/sql"
	"time"
)

// Companion configuration-sync tables for the web client. Script, screen and
// diagnosis rows are pushed by the editor and served read-only to devices.

type WebConfiguration struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WebScript struct {
	ID        int64     `json:"id"`
	ScriptID  string    `json:"script_id"`
	Position  int       `json:"position"`
	Data      string    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WebScreen struct {
	ID        int64     `json:"id"`
	ScreenID  string    `json:"screen_id"`
	ScriptID  string    `json:"script_id"`
	Position  int       `json:"position"`
	Data      string    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WebDiagnosis struct {
	ID          int64     `json:"id"`
	DiagnosisID string    `json:"diagnosis_id"`
	ScriptID    string    `json:"script_id"`
	Position    int       `json:"position"`
	Data        string    `json:"data"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (db *DB) SaveWebConfiguration(deviceID, data string) error {
	_, err := db.Exec(db.Q(`INSERT INTO web_configurations (device_id, data) VALUES (?, ?)
		ON CONFLICT (device_id) DO UPDATE SET data = excluded.data, updated_at = datetime('now')`),
		deviceID, data)
	return err
}

func (db *DB) GetWebConfiguration(deviceID string) (*WebConfiguration, error) {
	var c WebConfiguration
	var createdAt, updatedAt any
	err := db.QueryRow(db.Q(`SELECT id, device_id, data, created_at, updated_at FROM web_configurations WHERE device_id=?`), deviceID).
		Scan(&c.ID, &c.DeviceID, &c.Data, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (db *DB) UpsertWebScript(scriptID string, position int, data string) error {
	_, err := db.Exec(db.Q(`INSERT INTO web_scripts (script_id, position, data) VALUES (?, ?, ?)
		ON CONFLICT (script_id) DO UPDATE SET position = excluded.position, data = excluded.data, updated_at = datetime('now')`),
		scriptID, position, data)
	return err
}

func (db *DB) ListWebScripts() ([]*WebScript, error) {
	rows, err := db.Query(`SELECT id, script_id, position, data, updated_at FROM web_scripts ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scripts []*WebScript
	for rows.Next() {
		var s WebScript
		var updatedAt any
		if err := rows.Scan(&s.ID, &s.ScriptID, &s.Position, &s.Data, &updatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = parseTime(updatedAt)
		scripts = append(scripts, &s)
	}
	return scripts, rows.Err()
}

func (db *DB) GetWebScript(scriptID string) (*WebScript, error) {
	var s WebScript
	var updatedAt any
	err := db.QueryRow(db.Q(`SELECT id, script_id, position, data, updated_at FROM web_scripts WHERE script_id=?`), scriptID).
		Scan(&s.ID, &s.ScriptID, &s.Position, &s.Data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (db *DB) UpsertWebScreen(screenID, scriptID string, position int, data string) error {
	_, err := db.Exec(db.Q(`INSERT INTO web_screens (screen_id, script_id, position, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (screen_id) DO UPDATE SET script_id = excluded.script_id, position = excluded.position, data = excluded.data, updated_at = datetime('now')`),
		screenID, scriptID, position, data)
	return err
}

func (db *DB) ListWebScreens(scriptID string) ([]*WebScreen, error) {
	rows, err := db.Query(db.Q(`SELECT id, screen_id, script_id, position, data, updated_at FROM web_screens WHERE script_id=? ORDER BY position`), scriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var screens []*WebScreen
	for rows.Next() {
		var s WebScreen
		var updatedAt any
		if err := rows.Scan(&s.ID, &s.ScreenID, &s.ScriptID, &s.Position, &s.Data, &updatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = parseTime(updatedAt)
		screens = append(screens, &s)
	}
	return screens, rows.Err()
}

func (db *DB) UpsertWebDiagnosis(diagnosisID, scriptID string, position int, data string) error {
	_, err := db.Exec(db.Q(`INSERT INTO web_diagnoses (diagnosis_id, script_id, position, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (diagnosis_id) DO UPDATE SET script_id = excluded.script_id, position = excluded.position, data = excluded.data, updated_at = datetime('now')`),
		diagnosisID, scriptID, position, data)
	return err
}

func (db *DB) ListWebDiagnoses(scriptID string) ([]*WebDiagnosis, error) {
	rows, err := db.Query(db.Q(`SELECT id, diagnosis_id, script_id, position, data, updated_at FROM web_diagnoses WHERE script_id=? ORDER BY position`), scriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var diagnoses []*WebDiagnosis
	for rows.Next() {
		var d WebDiagnosis
		var updatedAt any
		if err := rows.Scan(&d.ID, &d.DiagnosisID, &d.ScriptID, &d.Position, &d.Data, &updatedAt); err != nil {
			return nil, err
		}
		d.UpdatedAt = parseTime(updatedAt)
		diagnoses = append(diagnoses, &d)
	}
	return diagnoses, rows.Err()
}
