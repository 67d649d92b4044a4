package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AppException is a crash/error report from a field device, queued for the
// periodic mail digest.
type AppException struct {
	ID            int64     `json:"id"`
	Country       string    `json:"country"`
	Version       string    `json:"version"`
	EditorVersion string    `json:"editor_version"`
	DeviceModel   string    `json:"device_model"`
	Memory        string    `json:"memory"`
	Battery       string    `json:"battery"`
	Message       string    `json:"message"`
	Stack         string    `json:"stack"`
	Mailed        bool      `json:"mailed"`
	CreatedAt     time.Time `json:"created_at"`
}

const exceptionSelectCols = `id, country, version, editor_version, device_model, memory, battery, message, stack, mailed, created_at`

func (db *DB) CreateAppException(e *AppException) error {
	if db.driver == "postgres" {
		return db.QueryRow(db.Q(`INSERT INTO app_exceptions (country, version, editor_version, device_model, memory, battery, message, stack) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			e.Country, e.Version, e.EditorVersion, e.DeviceModel, e.Memory, e.Battery, e.Message, e.Stack).Scan(&e.ID)
	}
	result, err := db.Exec(`INSERT INTO app_exceptions (country, version, editor_version, device_model, memory, battery, message, stack) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Country, e.Version, e.EditorVersion, e.DeviceModel, e.Memory, e.Battery, e.Message, e.Stack)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create exception last id: %w", err)
	}
	e.ID = id
	return nil
}

func (db *DB) ListUnmailedExceptions(limit int) ([]*AppException, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM app_exceptions WHERE mailed=? ORDER BY id LIMIT ?`, exceptionSelectCols)), false, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExceptions(rows)
}

func scanExceptions(rows *sql.Rows) ([]*AppException, error) {
	var out []*AppException
	for rows.Next() {
		var e AppException
		var createdAt any
		if err := rows.Scan(&e.ID, &e.Country, &e.Version, &e.EditorVersion, &e.DeviceModel,
			&e.Memory, &e.Battery, &e.Message, &e.Stack, &e.Mailed, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (db *DB) MarkExceptionsMailed(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, true)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := fmt.Sprintf(`UPDATE app_exceptions SET mailed=? WHERE id IN (%s)`, strings.Join(placeholders, ","))
	_, err := db.Exec(db.Q(q), args...)
	return err
}
