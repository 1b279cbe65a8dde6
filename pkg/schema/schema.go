package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Option is one admissible value of an enum or set field.
type Option struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Field describes one Pipedrive field: a stable key (often a 40-char
// hash for custom fields, possibly digit-led), a human display name,
// and a field type. Custom mirrors the API's edit_flag.
type Field struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Type    string   `json:"field_type"`
	Custom  bool     `json:"edit_flag,omitempty"`
	Options []Option `json:"options,omitempty"`
}

// HasOptions reports whether the field carries an option list.
func (f Field) HasOptions() bool {
	return f.Type == "enum" || f.Type == "set"
}

// ReadOnly reports whether the field is computed by Pipedrive and must
// not be written back.
func (f Field) ReadOnly() bool {
	return readOnlyKeys[f.Key]
}

// OptionLabel looks up an option label by its numeric id rendered as a
// string, the form option values take in CSV cells and API payloads.
func (f Field) OptionLabel(id string) (string, bool) {
	for _, opt := range f.Options {
		if fmt.Sprint(opt.ID) == id {
			return opt.Label, true
		}
	}
	return "", false
}

// OptionByLabel finds an option by case-insensitive label match.
func (f Field) OptionByLabel(label string) (Option, bool) {
	for _, opt := range f.Options {
		if strings.EqualFold(opt.Label, label) {
			return opt, true
		}
	}
	return Option{}, false
}

// Schema holds the fields of one entity in declaration order. Order
// matters: ambiguous-match errors list candidates in schema order, and
// saved datapackages round-trip the field order they were loaded with.
type Schema struct {
	fields []Field
	byKey  map[string]int
}

// New builds a schema from fields, preserving order. The first field
// wins when a key appears twice.
func New(fields []Field) *Schema {
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		byKey:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		s.Add(f)
	}
	return s
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// ByKey returns the field with the exact key.
func (s *Schema) ByKey(key string) (Field, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Keys returns all field keys in declaration order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

// Add appends a field. Fields with an already-present key are ignored.
func (s *Schema) Add(f Field) {
	if _, ok := s.byKey[f.Key]; ok {
		return
	}
	s.byKey[f.Key] = len(s.fields)
	s.fields = append(s.fields, f)
}

// Remove deletes the field with the given key.
func (s *Schema) Remove(key string) bool {
	i, ok := s.byKey[key]
	if !ok {
		return false
	}
	s.fields = append(s.fields[:i], s.fields[i+1:]...)
	s.reindex()
	return true
}

// Rename changes a field's display name.
func (s *Schema) Rename(key, newName string) bool {
	i, ok := s.byKey[key]
	if !ok {
		return false
	}
	s.fields[i].Name = newName
	return true
}

// SetType changes a field's type. The caller converts the stored
// values; the schema only records the declaration.
func (s *Schema) SetType(key, newType string) bool {
	i, ok := s.byKey[key]
	if !ok {
		return false
	}
	s.fields[i].Type = newType
	return true
}

// SetOptions replaces a field's option list.
func (s *Schema) SetOptions(key string, options []Option) bool {
	i, ok := s.byKey[key]
	if !ok {
		return false
	}
	s.fields[i].Options = options
	return true
}

func (s *Schema) reindex() {
	s.byKey = make(map[string]int, len(s.fields))
	for i, f := range s.fields {
		s.byKey[f.Key] = i
	}
}

// FormatOptionValue renders an enum/set cell as "label (id)". Set
// values arrive comma-separated; each id resolves independently and
// unknown ids pass through unchanged. Non-option fields return the raw
// value as-is.
func (s *Schema) FormatOptionValue(key, raw string) string {
	f, ok := s.ByKey(key)
	if !ok || !f.HasOptions() || raw == "" {
		return raw
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if label, ok := f.OptionLabel(p); ok {
			out = append(out, fmt.Sprintf("%s (%s)", label, p))
		} else {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// localKeyPrefix marks fields created locally and not yet synced to
// Pipedrive.
const localKeyPrefix = "_new_"

// NewLocalFieldKey generates a key for a locally created field.
func NewLocalFieldKey() string {
	sum := sha256.Sum256([]byte(fmt.Sprint(time.Now().UnixNano())))
	return localKeyPrefix + hex.EncodeToString(sum[:])[:7]
}

// IsLocalField reports whether a key names a locally created field.
func IsLocalField(key string) bool {
	return strings.HasPrefix(key, localKeyPrefix)
}

// FieldTypes lists the Pipedrive field types accepted for local schema
// edits and type conversion targets.
var FieldTypes = []string{
	"varchar", "varchar_auto", "text",
	"int", "double", "monetary",
	"date", "daterange", "time", "timerange",
	"enum", "set",
	"phone", "email",
	"user", "org", "people",
	"stage", "status", "address", "visible_to",
}

// ValidType reports whether t is a known field type.
func ValidType(t string) bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// readOnlyKeys are field keys Pipedrive computes server-side; updates
// and restores skip them.
var readOnlyKeys = map[string]bool{
	"id":                         true,
	"add_time":                   true,
	"update_time":                true,
	"creator_user_id":            true,
	"first_char":                 true,
	"company_id":                 true,
	"active_flag":                true,
	"cc_email":                   true,
	"org_name":                   true,
	"owner_name":                 true,
	"person_name":                true,
	"next_activity_date":         true,
	"next_activity_time":         true,
	"next_activity_id":           true,
	"last_activity_id":           true,
	"last_activity_date":         true,
	"activities_count":           true,
	"done_activities_count":      true,
	"undone_activities_count":    true,
	"files_count":                true,
	"notes_count":                true,
	"followers_count":            true,
	"email_messages_count":       true,
	"picture_id":                 true,
	"last_incoming_mail_time":    true,
	"last_outgoing_mail_time":    true,
	"open_deals_count":           true,
	"related_open_deals_count":   true,
	"closed_deals_count":         true,
	"related_closed_deals_count": true,
	"won_deals_count":            true,
	"related_won_deals_count":    true,
	"lost_deals_count":           true,
	"related_lost_deals_count":   true,
}
