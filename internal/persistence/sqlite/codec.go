package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Column codecs shared by the repositories. Timestamps are stored as RFC 3339
// strings and structured fields as JSON text.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(raw), nil
}

func unmarshalJSON(raw string, v interface{}) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

// unmarshalJSONPtr decodes a nullable JSON column into a freshly allocated
// value, leaving the target nil when the column is NULL.
func unmarshalJSONPtr[T any](ns sql.NullString, target **T) error {
	if !ns.Valid || ns.String == "" {
		*target = nil
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	*target = &v
	return nil
}

func nullJSON(v interface{}, isNil bool) (sql.NullString, error) {
	if isNil {
		return sql.NullString{}, nil
	}
	raw, err := marshalJSON(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: raw, Valid: true}, nil
}
