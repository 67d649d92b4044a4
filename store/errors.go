package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationNames extracts a driver-neutral identifier for a unique
// constraint violation. Postgres reports the constraint name directly;
// SQLite only puts the offending column or index name in the message text.
func uniqueViolationName(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return pgErr.ConstraintName
		}
		return ""
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "constraint failed") {
		return ""
	}
	switch {
	case strings.Contains(msg, "records.record_token"):
		return "records_record_token_key"
	case strings.Contains(msg, "idx_records_uid_script_day"):
		return "idx_records_uid_script_day"
	}
	return msg
}

// IsRecordTokenConflict reports whether err is a unique violation on the
// record token column. Callers regenerate the token and retry.
func IsRecordTokenConflict(err error) bool {
	return uniqueViolationName(err) == "records_record_token_key"
}

// IsDuplicateScopeConflict reports whether err is a unique violation on the
// (uid, scriptid, day) index. Callers treat this as a duplicate submission,
// not a fault.
func IsDuplicateScopeConflict(err error) bool {
	return uniqueViolationName(err) == "idx_records_uid_script_day"
}

// IsUniqueViolation reports whether err is any unique constraint violation.
func IsUniqueViolation(err error) bool {
	return uniqueViolationName(err) != ""
}
