package store

import (
	"strconv"
	"strings"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// TypedRecord coerces one raw CSV record to its declared field types
// so filters can compare against literals without explicit int()/
// float() calls. This is the single sanctioned coercion point: int
// fields become Integer, double/monetary become Float, everything else
// stays String. Cells that fail to parse stay String — a half-converted
// column should surface as a type error in the filter, not vanish.
// Empty cells stay empty strings here; the evaluator turns them into
// Null at field fetch.
func TypedRecord(sch *schema.Schema, raw map[string]string) fieldexpr.Record {
	rec := make(fieldexpr.Record, len(raw))
	for key, cell := range raw {
		rec[key] = typedCell(sch, key, cell)
	}
	return rec
}

func typedCell(sch *schema.Schema, key, cell string) fieldexpr.Object {
	if cell == "" {
		return fieldexpr.StringValue("")
	}
	f, ok := sch.ByKey(key)
	if !ok {
		return fieldexpr.StringValue(cell)
	}

	switch f.Type {
	case "int", "user", "org", "stage", "visible_to":
		if n, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64); err == nil {
			return fieldexpr.IntValue(n)
		}
	case "double", "monetary":
		if x, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			return fieldexpr.FloatValue(x)
		}
	}
	return fieldexpr.StringValue(cell)
}
