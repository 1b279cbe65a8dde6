// Package transform applies one resolved assignment across a record
// stream: evaluate, compare old against new, write through an applier,
// and account for every record in UpdateStats. The engine computes
// values; this package owns side effects.
package transform

import (
	"fmt"
	"strings"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/evaluator"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// maxReportedErrors caps how many per-record failures keep their
// detail; the count keeps climbing.
const maxReportedErrors = 10

// Stats accounts for one update run.
type Stats struct {
	Total   int // records seen
	Matched int // records passing the filter gate
	Updated int // records written (or would-write under dry-run)
	Skipped int // records whose value already matched
	Failed  int // records whose write failed
	Errors  []RecordError
}

// RecordError is one failed write.
type RecordError struct {
	RecordID string
	Err      error
}

// Applier writes one field value to one record, against the API or
// the local store.
type Applier func(id, key, value string) error

// Update is one configured update run.
type Update struct {
	Entity string
	Schema *schema.Schema
	Assign *fieldexpr.Resolved // transform mode
	Filter *fieldexpr.Resolved // optional gate, filter mode
	DryRun bool
	Limit  int // cap on updates; <= 0 is unlimited
	Log    *ChangesLog
}

// Run streams records through the update. typed builds the engine
// record for one raw record. Evaluation errors abort the scan (writes
// already applied stay applied); apply errors are per-record and
// counted.
func (u *Update) Run(records []map[string]string, typed func(map[string]string) fieldexpr.Record, apply Applier) (Stats, error) {
	var stats Stats

	for _, raw := range records {
		stats.Total++

		rec := typed(raw)
		if u.Filter != nil {
			keep, err := u.Filter.EvalFilter(rec)
			if err != nil {
				return stats, fmt.Errorf("evaluating filter on record %s: %w", raw["id"], err)
			}
			if !keep {
				continue
			}
		}
		stats.Matched++

		key, val, err := u.Assign.EvalAssignment(rec)
		if err != nil {
			return stats, fmt.Errorf("evaluating transform on record %s: %w", raw["id"], err)
		}
		newValue := SerializeValue(val)
		oldValue := raw[key]

		field, _ := u.Schema.ByKey(key)
		if EqualValues(field, oldValue, newValue) {
			stats.Skipped++
			continue
		}

		if !u.DryRun {
			if err := apply(raw["id"], key, newValue); err != nil {
				stats.Failed++
				if len(stats.Errors) < maxReportedErrors {
					stats.Errors = append(stats.Errors, RecordError{RecordID: raw["id"], Err: err})
				}
				continue
			}
			raw[key] = newValue
		}
		stats.Updated++

		if u.Log != nil {
			u.Log.Write(Change{
				Entity:   u.Entity,
				RecordID: raw["id"],
				FieldKey: key,
				Old:      oldValue,
				New:      newValue,
				DryRun:   u.DryRun,
			})
		}

		if u.Limit > 0 && stats.Updated >= u.Limit {
			break
		}
	}
	return stats, nil
}

// SerializeValue renders an engine value as a cell string. Null
// serializes as the empty cell, matching the store's null notion.
func SerializeValue(obj fieldexpr.Object) string {
	if obj == nil || obj.Type() == evaluator.NULL_OBJ {
		return ""
	}
	return obj.Inspect()
}

// EqualValues reports whether old and new denote the same stored
// value. Enum and set fields compare through the option table, so a
// raw id, a bare label and the "label (id)" display form all count as
// equal; set members compare per element.
func EqualValues(f schema.Field, old, new string) bool {
	if old == new {
		return true
	}
	if !f.HasOptions() {
		return false
	}
	if f.Type == "set" {
		return normalizeSet(f, old) == normalizeSet(f, new)
	}
	return normalizeOption(f, old) == normalizeOption(f, new)
}

// normalizeOption reduces any option spelling to its id.
func normalizeOption(f schema.Field, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	// "label (id)" display form
	if open := strings.LastIndex(v, "("); open > 0 && strings.HasSuffix(v, ")") {
		inner := v[open+1 : len(v)-1]
		if _, ok := f.OptionLabel(inner); ok {
			return inner
		}
	}
	if _, ok := f.OptionLabel(v); ok {
		return v // already an id
	}
	if opt, ok := f.OptionByLabel(v); ok {
		return fmt.Sprint(opt.ID)
	}
	return v
}

func normalizeSet(f schema.Field, v string) string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, normalizeOption(f, p))
		}
	}
	return strings.Join(out, ",")
}
