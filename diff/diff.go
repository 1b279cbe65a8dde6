// Package diff compares two datapackages: field definitions by key,
// records by a matching key field. It reports what changed without
// deciding which side is right.
package diff

import (
	"sort"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/transform"
)

// Change kinds for fields and records.
const (
	Added          = "added"
	Removed        = "removed"
	Modified       = "modified"
	TypeChanged    = "type_changed"
	NameChanged    = "name_changed"
	OptionsChanged = "options_changed"
)

// FieldChange is one difference in a field definition.
type FieldChange struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Old  string `json:"old,omitempty"`
	New  string `json:"new,omitempty"`
}

// CellChange is one changed cell in a modified record.
type CellChange struct {
	Key string `json:"key"`
	Old string `json:"old"`
	New string `json:"new"`
}

// RecordChange is one difference in a record, matched by key field.
type RecordChange struct {
	ID    string       `json:"id"`
	Kind  string       `json:"kind"`
	Cells []CellChange `json:"changes,omitempty"`
}

// EntityDiff is the complete diff for one entity.
type EntityDiff struct {
	Entity  string         `json:"entity"`
	Fields  []FieldChange  `json:"field_diffs,omitempty"`
	Records []RecordChange `json:"record_diffs,omitempty"`
}

// Empty reports whether the two sides matched.
func (d EntityDiff) Empty() bool {
	return len(d.Fields) == 0 && len(d.Records) == 0
}

// Stats accumulates over the entities of one diff run.
type Stats struct {
	Entities        int `json:"entities_compared"`
	EntitiesChanged int `json:"entities_with_differences"`
	FieldsAdded     int `json:"fields_added"`
	FieldsRemoved   int `json:"fields_removed"`
	FieldsChanged   int `json:"fields_changed"`
	RecordsAdded    int `json:"records_added"`
	RecordsRemoved  int `json:"records_removed"`
	RecordsModified int `json:"records_modified"`
}

// Add folds one entity diff into the stats.
func (s *Stats) Add(d EntityDiff) {
	s.Entities++
	if !d.Empty() {
		s.EntitiesChanged++
	}
	for _, fc := range d.Fields {
		switch fc.Kind {
		case Added:
			s.FieldsAdded++
		case Removed:
			s.FieldsRemoved++
		default:
			s.FieldsChanged++
		}
	}
	for _, rc := range d.Records {
		switch rc.Kind {
		case Added:
			s.RecordsAdded++
		case Removed:
			s.RecordsRemoved++
		default:
			s.RecordsModified++
		}
	}
}

// Options tunes an entity comparison.
type Options struct {
	KeyField        string // record matching key; "" means "id"
	SchemaOnly      bool   // compare field definitions only
	DataOnly        bool   // compare records only
	IncludeComputed bool   // also compare server-computed cells
}

// Entity compares one entity across two datapackages. oldSch/oldRecs
// are the before side, newSch/newRecs the after side.
func Entity(name string, oldSch, newSch *schema.Schema, oldRecs, newRecs []map[string]string, opts Options) EntityDiff {
	d := EntityDiff{Entity: name}
	if !opts.DataOnly {
		d.Fields = Fields(oldSch, newSch)
	}
	if !opts.SchemaOnly {
		exclude := map[string]bool{}
		if !opts.IncludeComputed {
			exclude = computedKeys(oldSch, newSch)
		}
		keyField := opts.KeyField
		if keyField == "" {
			keyField = "id"
		}
		d.Records = Records(oldRecs, newRecs, keyField, newSch, exclude)
	}
	return d
}

// Fields compares two field schemas by key. Fields in both compare on
// type, display name and option list; a field can report several
// changes at once.
func Fields(oldSch, newSch *schema.Schema) []FieldChange {
	var changes []FieldChange

	for _, f := range oldSch.Fields() {
		if _, ok := newSch.ByKey(f.Key); !ok {
			changes = append(changes, FieldChange{
				Key: f.Key, Name: f.Name, Kind: Removed,
			})
		}
	}
	for _, f := range newSch.Fields() {
		old, ok := oldSch.ByKey(f.Key)
		if !ok {
			changes = append(changes, FieldChange{
				Key: f.Key, Name: f.Name, Kind: Added,
			})
			continue
		}
		if old.Type != f.Type {
			changes = append(changes, FieldChange{
				Key: f.Key, Name: f.Name, Kind: TypeChanged,
				Old: old.Type, New: f.Type,
			})
		}
		if old.Name != f.Name {
			changes = append(changes, FieldChange{
				Key: f.Key, Name: f.Name, Kind: NameChanged,
				Old: old.Name, New: f.Name,
			})
		}
		if !sameOptions(old.Options, f.Options) {
			changes = append(changes, FieldChange{
				Key: f.Key, Name: f.Name, Kind: OptionsChanged,
				Old: renderOptions(old.Options), New: renderOptions(f.Options),
			})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Key != changes[j].Key {
			return changes[i].Key < changes[j].Key
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes
}

// Records compares two record sets matched by keyField. Records whose
// key cell is empty never match and are skipped. Cell values compare
// with empty equivalent to absent; option fields compare through the
// schema's option table so a raw id and its label count as equal.
func Records(oldRecs, newRecs []map[string]string, keyField string, sch *schema.Schema, exclude map[string]bool) []RecordChange {
	oldByKey := indexByKey(oldRecs, keyField)
	newByKey := indexByKey(newRecs, keyField)

	var changes []RecordChange
	for _, id := range sortedKeys(oldByKey) {
		if _, ok := newByKey[id]; !ok {
			changes = append(changes, RecordChange{ID: id, Kind: Removed})
		}
	}
	for _, id := range sortedKeys(newByKey) {
		old, ok := oldByKey[id]
		if !ok {
			changes = append(changes, RecordChange{ID: id, Kind: Added})
			continue
		}
		cells := changedCells(old, newByKey[id], sch, exclude)
		if len(cells) > 0 {
			changes = append(changes, RecordChange{ID: id, Kind: Modified, Cells: cells})
		}
	}
	return changes
}

// changedCells compares every key present on either side.
func changedCells(old, new map[string]string, sch *schema.Schema, exclude map[string]bool) []CellChange {
	keys := make(map[string]bool, len(old)+len(new))
	for k := range old {
		keys[k] = true
	}
	for k := range new {
		keys[k] = true
	}

	var cells []CellChange
	for _, k := range sortedKeys(keys) {
		if exclude[k] {
			continue
		}
		ov, nv := old[k], new[k]
		if cellEqual(sch, k, ov, nv) {
			continue
		}
		cells = append(cells, CellChange{Key: k, Old: ov, New: nv})
	}
	return cells
}

// cellEqual treats empty as absent, and folds option spellings for
// enum and set fields.
func cellEqual(sch *schema.Schema, key, old, new string) bool {
	if old == new {
		return true
	}
	if old == "" || new == "" {
		return false
	}
	if sch != nil {
		if f, ok := sch.ByKey(key); ok && f.HasOptions() {
			return transform.EqualValues(f, old, new)
		}
	}
	return false
}

// computedKeys collects server-computed field keys from both schemas,
// always excluding them even when only one side declares the field.
func computedKeys(schemas ...*schema.Schema) map[string]bool {
	keys := make(map[string]bool)
	for _, s := range schemas {
		if s == nil {
			continue
		}
		for _, f := range s.Fields() {
			if f.ReadOnly() {
				keys[f.Key] = true
			}
		}
	}
	// The matching key has to stay comparable.
	delete(keys, "id")
	return keys
}

func indexByKey(records []map[string]string, keyField string) map[string]map[string]string {
	byKey := make(map[string]map[string]string, len(records))
	for _, rec := range records {
		k := rec[keyField]
		if k == "" {
			continue
		}
		if _, seen := byKey[k]; !seen {
			byKey[k] = rec
		}
	}
	return byKey
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sameOptions compares option lists as sets of (id, label) pairs.
func sameOptions(a, b []schema.Option) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[schema.Option]bool, len(a))
	for _, opt := range a {
		seen[opt] = true
	}
	for _, opt := range b {
		if !seen[opt] {
			return false
		}
	}
	return true
}

// renderOptions flattens an option list for change reporting.
func renderOptions(opts []schema.Option) string {
	out := ""
	for i, opt := range opts {
		if i > 0 {
			out += ", "
		}
		out += opt.Label
	}
	return out
}
