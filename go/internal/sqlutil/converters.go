package sqlutil

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sqlc-dev/pqtype"
)

// ToNullString maps the empty string to NULL
func ToNullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: val, Valid: true}
}

// FromNullString converts sql.NullString to Go string with default
func FromNullString(val sql.NullString, defaultVal string) string {
	if !val.Valid {
		return defaultVal
	}
	return val.String
}

// ToNullJSON marshals v into a jsonb parameter. A nil v is NULL.
func ToNullJSON(v interface{}) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal jsonb: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

// FromNullJSON unmarshals a jsonb column into dst. NULL leaves dst untouched.
func FromNullJSON(val pqtype.NullRawMessage, dst interface{}) error {
	if !val.Valid {
		return nil
	}
	if err := json.Unmarshal(val.RawMessage, dst); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}
