package converter

import (
	"sort"
	"strings"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// OptionCount reports usage of one option (or would-be option) across
// the scanned records.
type OptionCount struct {
	Label string
	ID    int  // 0 when no option carries this label yet
	Known bool // an option with this label exists
	Count int
}

// OptionUsage tallies the distinct values of an enum/set field across
// records. Cells holding ids resolve to their label; set cells count
// per element. The second return lists labels with no matching
// option, the candidates for a sync.
func OptionUsage(f schema.Field, records []map[string]string) ([]OptionCount, []string) {
	counts := make(map[string]*OptionCount)

	bump := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		label := raw
		id := 0
		known := false
		if l, ok := f.OptionLabel(raw); ok {
			label = l
			known = true
		}
		if opt, ok := f.OptionByLabel(label); ok {
			id = opt.ID
			known = true
		}
		key := strings.ToLower(label)
		if c, ok := counts[key]; ok {
			c.Count++
			return
		}
		counts[key] = &OptionCount{Label: label, ID: id, Known: known, Count: 1}
	}

	for _, rec := range records {
		cell := rec[f.Key]
		if f.Type == "set" {
			for _, part := range strings.Split(cell, ",") {
				bump(part)
			}
		} else {
			bump(cell)
		}
	}

	out := make([]OptionCount, 0, len(counts))
	var missing []string
	for _, c := range counts {
		out = append(out, *c)
		if !c.Known {
			missing = append(missing, c.Label)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	sort.Strings(missing)
	return out, missing
}

// AddMissingOptions appends options for the given labels to the field
// inside the schema, assigning local negative ids so they never
// collide with API-assigned ones. Returns the updated option list.
func AddMissingOptions(sch *schema.Schema, key string, labels []string) []schema.Option {
	f, ok := sch.ByKey(key)
	if !ok {
		return nil
	}
	options := f.Options
	nextLocal := -1
	for _, opt := range options {
		if opt.ID <= nextLocal {
			nextLocal = opt.ID - 1
		}
	}
	for _, label := range labels {
		if _, exists := f.OptionByLabel(label); exists {
			continue
		}
		options = append(options, schema.Option{ID: nextLocal, Label: label})
		nextLocal--
	}
	sch.SetOptions(key, options)
	return options
}
