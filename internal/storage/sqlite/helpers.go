package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Get operations when no row matches. Callers test
// with errors.Is after unwrapping.
var ErrNotFound = errors.New("record not found")

// ErrStaleExecution is returned when a write would move an execution out of
// a terminal status. The caller holds an outdated snapshot; the stored row
// already reached SUCCESS, FAILED, CANCELLED or TIMEOUT.
var ErrStaleExecution = errors.New("execution already terminal")

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0)
	return &t
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalJSONSlice(v []string) (string, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMap(data string) map[string]any {
	if data == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil
	}
	return m
}

func unmarshalStrings(data string) []string {
	if data == "" {
		return nil
	}
	var s []string
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil
	}
	return s
}
