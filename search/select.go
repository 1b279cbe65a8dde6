// Package search is the read pipeline: filter records through the
// expression engine, select display columns, and format the result as
// a table, JSON, or CSV.
package search

import (
	"fmt"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// MaxAutoColumns caps the column count when the user selects none;
// wide CRM schemas make full-width tables unreadable.
const MaxAutoColumns = 8

// defaultDisplayColumns lists the columns shown per entity when the
// user asks for none. Keys absent from the live schema are dropped.
var defaultDisplayColumns = map[string][]string{
	"persons":       {"id", "name", "org_name", "email", "phone", "owner_name"},
	"organizations": {"id", "name", "owner_name", "address", "people_count"},
	"deals":         {"id", "title", "value", "currency", "status", "stage_id", "person_name"},
	"activities":    {"id", "subject", "type", "due_date", "done", "person_name"},
	"notes":         {"id", "content", "deal_id", "person_id", "org_id"},
	"products":      {"id", "name", "code", "unit", "active_flag"},
	"files":         {"id", "file_name", "file_type", "file_size", "add_time"},
	"users":         {"id", "name", "email", "active_flag"},
}

// SelectColumns resolves the display column list for one command run.
// include and exclude entries go through the schema's fuzzy field
// matching, so "tel" or "_25" work the same as in expressions. An
// empty include falls back to the entity defaults (capped at
// MaxAutoColumns), then to the first schema fields.
func SelectColumns(sch *schema.Schema, entity string, include, exclude []string) ([]string, error) {
	var cols []string

	if len(include) > 0 {
		for _, arg := range include {
			f, err := sch.MatchField(arg)
			if err != nil {
				return nil, err
			}
			cols = append(cols, f.Key)
		}
	} else {
		for _, key := range defaultDisplayColumns[entity] {
			if _, ok := sch.ByKey(key); ok {
				cols = append(cols, key)
			}
		}
		if len(cols) == 0 {
			for _, f := range sch.Fields() {
				cols = append(cols, f.Key)
			}
		}
		if len(cols) > MaxAutoColumns {
			cols = cols[:MaxAutoColumns]
		}
	}

	if len(exclude) > 0 {
		drop := make(map[string]bool, len(exclude))
		for _, arg := range exclude {
			f, err := sch.MatchField(arg)
			if err != nil {
				return nil, err
			}
			drop[f.Key] = true
		}
		kept := cols[:0]
		for _, key := range cols {
			if !drop[key] {
				kept = append(kept, key)
			}
		}
		cols = kept
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns left to display")
	}
	return cols, nil
}

// FilterRecords evaluates an optional filter over records, keeping the
// matches. typed builds the engine record for one raw record (raw
// strings for API sources, schema-typed values for the store). A
// non-positive limit keeps everything.
func FilterRecords(filter *fieldexpr.Resolved, records []map[string]string, typed func(map[string]string) fieldexpr.Record, limit int) ([]map[string]string, error) {
	var out []map[string]string
	for _, raw := range records {
		if filter != nil {
			keep, err := filter.EvalFilter(typed(raw))
			if err != nil {
				return nil, fmt.Errorf("evaluating filter on record %s: %w", raw["id"], err)
			}
			if !keep {
				continue
			}
		}
		out = append(out, raw)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
