package api

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlattenRecord converts one decoded API record into the flat
// key→string-cell shape the expression engine and the CSV store both
// consume. Scalars stringify; linked objects collapse to their "value"
// member (Pipedrive wraps org_id, person_id and friends that way);
// everything else keeps its compact JSON so nothing is lost on the way
// to the store.
func FlattenRecord(rec map[string]any) map[string]string {
	out := make(map[string]string, len(rec))
	for key, val := range rec {
		out[key] = FlattenValue(val)
	}
	return out
}

// FlattenValue renders one API cell as a string.
func FlattenValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode as float64; render integers without a
		// trailing .0
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case map[string]any:
		// Linked-entity cells look like {"name": ..., "value": 42, ...}
		if inner, ok := v["value"]; ok {
			return FlattenValue(inner)
		}
		return compactJSON(v)
	case []any:
		return compactJSON(v)
	default:
		return fmt.Sprint(v)
	}
}

// RecordID extracts a record's id as a string, or "" when absent.
func RecordID(rec map[string]any) string {
	id, ok := rec["id"]
	if !ok {
		return ""
	}
	return FlattenValue(id)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
