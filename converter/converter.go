// Package converter changes a field's storage type inside the local
// store, cell by cell: parse the old text, render the new form,
// account for every cell. Date parsing accepts free-format input plus
// locale month names, normalized to ISO.
package converter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// TransformResult is one converted cell.
type TransformResult struct {
	OK    bool
	Value string
	Err   error
}

// Stats accounts for one conversion run.
type Stats struct {
	Converted int
	Skipped   int // empty cells and cells already in target form
	Failed    int
	Samples   []string // first few failures, for the report
}

const maxFailureSamples = 5

// Convert rewrites one column of records to the target type, updating
// records in place. Failed cells keep their old value. The field's
// declared type changes only when no cell failed, so a half-converted
// column never masquerades as clean.
func Convert(sch *schema.Schema, records []map[string]string, fieldKey, targetType, locale string) (Stats, error) {
	f, ok := sch.ByKey(fieldKey)
	if !ok {
		return Stats{}, fmt.Errorf("field %s not in schema", fieldKey)
	}
	if !schema.ValidType(targetType) {
		return Stats{}, fmt.Errorf("unknown field type %q", targetType)
	}

	cell := cellTransform(f, targetType, locale)

	var stats Stats
	for _, rec := range records {
		old := rec[fieldKey]
		if old == "" {
			stats.Skipped++
			continue
		}
		res := cell(old)
		switch {
		case res.Err != nil:
			stats.Failed++
			if len(stats.Samples) < maxFailureSamples {
				stats.Samples = append(stats.Samples, fmt.Sprintf("record %s: %q: %v", rec["id"], old, res.Err))
			}
		case res.Value == old:
			stats.Skipped++
		default:
			rec[fieldKey] = res.Value
			stats.Converted++
		}
	}

	if stats.Failed == 0 {
		sch.SetType(fieldKey, targetType)
	}
	return stats, nil
}

// cellTransform picks the per-cell conversion for a target type.
func cellTransform(f schema.Field, targetType, locale string) func(string) TransformResult {
	switch targetType {
	case "int":
		return toInt
	case "double", "monetary":
		return toDouble
	case "date":
		return func(s string) TransformResult { return toDate(s, locale) }
	case "enum":
		return func(s string) TransformResult { return toEnum(f, s) }
	case "set":
		return func(s string) TransformResult { return toSet(f, s) }
	default:
		// varchar, text and friends keep the text as-is
		return func(s string) TransformResult { return TransformResult{OK: true, Value: s} }
	}
}

func toInt(s string) TransformResult {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return TransformResult{OK: true, Value: strconv.FormatInt(n, 10)}
	}
	// Round float text rather than rejecting it
	if x, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return TransformResult{OK: true, Value: strconv.FormatInt(int64(math.Round(x)), 10)}
	}
	return TransformResult{Err: fmt.Errorf("not a number")}
}

func toDouble(s string) TransformResult {
	trimmed := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	x, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return TransformResult{Err: fmt.Errorf("not a number")}
	}
	return TransformResult{OK: true, Value: strconv.FormatFloat(x, 'f', -1, 64)}
}

// isoDate is the storage form for date fields.
const isoDate = "2006-01-02"

// monthNameLayouts cover written-out dates; they parse through monday
// so "3 janvier 2024" works under fr_FR.
var monthNameLayouts = []string{
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

func toDate(s, locale string) TransformResult {
	trimmed := strings.TrimSpace(s)

	if t, err := time.Parse(isoDate, trimmed); err == nil {
		return TransformResult{OK: true, Value: t.Format(isoDate)}
	}

	// Free-format numeric dates; day-first for locales that write
	// them that way
	opts := []dateparse.ParserOption{
		dateparse.PreferMonthFirst(!dayFirstLocale(locale)),
	}
	if t, err := dateparse.ParseIn(trimmed, time.UTC, opts...); err == nil {
		return TransformResult{OK: true, Value: t.Format(isoDate)}
	}

	// Locale month names ("3 janvier 2024")
	loc := mondayLocale(locale)
	for _, layout := range monthNameLayouts {
		if t, err := monday.ParseInLocation(layout, trimmed, time.UTC, loc); err == nil {
			return TransformResult{OK: true, Value: t.Format(isoDate)}
		}
	}

	return TransformResult{Err: fmt.Errorf("unrecognized date")}
}

// dayFirstLocale reports whether a locale writes day before month in
// numeric dates.
func dayFirstLocale(locale string) bool {
	switch normalizeLocale(locale) {
	case "en_US":
		return false
	default:
		return true
	}
}

// mondayLocale maps our locale strings onto monday's constants,
// defaulting to en_US.
func mondayLocale(locale string) monday.Locale {
	switch normalizeLocale(locale) {
	case "fr_FR":
		return monday.LocaleFrFR
	case "de_DE":
		return monday.LocaleDeDE
	case "es_ES":
		return monday.LocaleEsES
	case "it_IT":
		return monday.LocaleItIT
	case "nl_NL":
		return monday.LocaleNlNL
	case "pt_BR":
		return monday.LocalePtBR
	case "en_GB":
		return monday.LocaleEnGB
	default:
		return monday.LocaleEnUS
	}
}

func normalizeLocale(locale string) string {
	return strings.ReplaceAll(locale, "-", "_")
}

// toEnum maps free text onto the field's options: ids pass through,
// labels map to their id. Unknown values fail; creating options is
// the sync step's job, not a silent conversion side effect.
func toEnum(f schema.Field, s string) TransformResult {
	v := strings.TrimSpace(s)
	if _, ok := f.OptionLabel(v); ok {
		return TransformResult{OK: true, Value: v}
	}
	if opt, ok := f.OptionByLabel(v); ok {
		return TransformResult{OK: true, Value: strconv.Itoa(opt.ID)}
	}
	return TransformResult{Err: fmt.Errorf("no option with label %q", v)}
}

// toSet maps a comma-separated cell per element through the enum
// mapping.
func toSet(f schema.Field, s string) TransformResult {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		res := toEnum(f, p)
		if res.Err != nil {
			return res
		}
		out = append(out, res.Value)
	}
	return TransformResult{OK: true, Value: strings.Join(out, ",")}
}
