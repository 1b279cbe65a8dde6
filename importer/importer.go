// Package importer merges external CSV records into a datapackage
// entity, matching existing records by key fields so re-runs update
// instead of duplicating.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// Duplicate policies when an input row matches an existing record.
const (
	OnDuplicateUpdate = "update"
	OnDuplicateSkip   = "skip"
	OnDuplicateError  = "error"
)

// ValidPolicy reports whether p names a duplicate policy.
func ValidPolicy(p string) bool {
	return p == OnDuplicateUpdate || p == OnDuplicateSkip || p == OnDuplicateError
}

// Stats counts what one import run did per input row.
type Stats struct {
	Total   int // input rows seen
	Created int // rows appended as new records
	Updated int // rows merged into an existing record
	Skipped int // duplicate rows left alone
	Failed  int // rows rejected
	Errors  []RowError
}

// RowError is one rejected input row. Row is 1-based, header excluded.
type RowError struct {
	Row int
	Err error
}

// Options tunes an import run.
type Options struct {
	Keys        []string // match fields; empty means every row is new
	OnDuplicate string   // policy for matched rows; "" means update
	AutoID      bool     // assign ids past the existing maximum
}

// ReadCSV reads input rows with their header columns. Cells absent
// from a short row come back as "".
func ReadCSV(r io.Reader) ([]map[string]string, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("input has no header row")
		}
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var rows []map[string]string
	for {
		row, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("reading row %d: %w", len(rows)+2, err)
		}
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				rec[key] = row[i]
			} else {
				rec[key] = ""
			}
		}
		rows = append(rows, rec)
	}
	return rows, header, nil
}

// SplitColumns sorts input columns against the target schema: columns
// that import, read-only columns that silently drop, and columns the
// schema does not know.
func SplitColumns(columns []string, sch *schema.Schema) (valid, readOnly, unknown []string) {
	for _, col := range columns {
		f, ok := sch.ByKey(col)
		switch {
		case !ok:
			unknown = append(unknown, col)
		case f.ReadOnly():
			readOnly = append(readOnly, col)
		default:
			valid = append(valid, col)
		}
	}
	return valid, readOnly, unknown
}

// Merge folds input rows into existing records and returns the merged
// set. Rows are matched by opts.Keys; a matched row follows the
// OnDuplicate policy, an unmatched row appends. Only cells named in
// fields carry over. The existing slice and its maps are not modified.
func Merge(existing, input []map[string]string, fields []string, opts Options) (Stats, []map[string]string) {
	policy := opts.OnDuplicate
	if policy == "" {
		policy = OnDuplicateUpdate
	}

	index := make(map[string]int)
	if len(opts.Keys) > 0 {
		for i, rec := range existing {
			k := matchKey(rec, opts.Keys)
			if _, seen := index[k]; !seen {
				index[k] = i
			}
		}
	}

	nextID := 0
	if opts.AutoID {
		nextID = maxID(existing) + 1
	}

	merged := make([]map[string]string, len(existing))
	for i, rec := range existing {
		merged[i] = copyRecord(rec)
	}

	var stats Stats
	for rowNum, row := range input {
		stats.Total++

		at := -1
		if len(opts.Keys) > 0 {
			if i, ok := index[matchKey(row, opts.Keys)]; ok {
				at = i
			}
		}

		switch {
		case at >= 0 && policy == OnDuplicateSkip:
			stats.Skipped++
		case at >= 0 && policy == OnDuplicateError:
			stats.Failed++
			stats.Errors = append(stats.Errors, RowError{
				Row: rowNum + 1,
				Err: fmt.Errorf("duplicate key %s", matchKey(row, opts.Keys)),
			})
		case at >= 0:
			for _, key := range fields {
				merged[at][key] = row[key]
			}
			stats.Updated++
		default:
			rec := make(map[string]string, len(fields)+1)
			for _, key := range fields {
				rec[key] = row[key]
			}
			if opts.AutoID && rec["id"] == "" {
				rec["id"] = strconv.Itoa(nextID)
				nextID++
			}
			merged = append(merged, rec)
			stats.Created++
			// Later rows with the same key update this one.
			if len(opts.Keys) > 0 {
				index[matchKey(row, opts.Keys)] = len(merged) - 1
			}
		}
	}
	return stats, merged
}

// matchKey joins the key cells into one comparable string.
func matchKey(rec map[string]string, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = rec[k]
	}
	return strings.Join(parts, "\x00")
}

// maxID scans existing records for the largest numeric id.
func maxID(records []map[string]string) int {
	top := 0
	for _, rec := range records {
		if n, err := strconv.Atoi(rec["id"]); err == nil && n > top {
			top = n
		}
	}
	return top
}

func copyRecord(rec map[string]string) map[string]string {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
