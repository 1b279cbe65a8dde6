package schema

import (
	"strings"
	"testing"
)

func testFields() []Field {
	return []Field{
		{Key: "id", Name: "ID", Type: "int"},
		{Key: "name", Name: "Name", Type: "varchar"},
		{Key: "tel", Name: "Telephone", Type: "phone"},
		{Key: "status", Name: "Status", Type: "enum", Custom: true, Options: []Option{
			{ID: 37, Label: "M."},
			{ID: 38, Label: "Mme"},
		}},
		{Key: "tags", Name: "Tags", Type: "set", Custom: true, Options: []Option{
			{ID: 1, Label: "VIP"},
			{ID: 2, Label: "Premium"},
		}},
		{Key: "add_time", Name: "Created", Type: "date"},
	}
}

func TestSchemaOrderAndLookup(t *testing.T) {
	s := New(testFields())

	if s.Len() != 6 {
		t.Fatalf("expected 6 fields, got %d", s.Len())
	}

	keys := s.Keys()
	want := []string{"id", "name", "tel", "status", "tags", "add_time"}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], k)
		}
	}

	f, ok := s.ByKey("status")
	if !ok || f.Name != "Status" {
		t.Errorf("ByKey(status) = %+v, %v", f, ok)
	}
	if _, ok := s.ByKey("missing"); ok {
		t.Error("ByKey(missing) should not find a field")
	}
}

func TestSchemaAddIgnoresDuplicateKeys(t *testing.T) {
	s := New(testFields())
	s.Add(Field{Key: "name", Name: "Shadow", Type: "varchar"})

	if s.Len() != 6 {
		t.Fatalf("duplicate key changed length: %d", s.Len())
	}
	f, _ := s.ByKey("name")
	if f.Name != "Name" {
		t.Errorf("first field should win, got %q", f.Name)
	}
}

func TestSchemaRemoveReindexes(t *testing.T) {
	s := New(testFields())
	if !s.Remove("tel") {
		t.Fatal("Remove(tel) = false")
	}
	if s.Remove("tel") {
		t.Error("second Remove(tel) should report false")
	}

	f, ok := s.ByKey("status")
	if !ok || f.Key != "status" {
		t.Fatalf("lookup after removal broken: %+v, %v", f, ok)
	}
	if s.Len() != 5 {
		t.Errorf("expected 5 fields, got %d", s.Len())
	}
}

func TestSchemaRenameAndSetType(t *testing.T) {
	s := New(testFields())

	if !s.Rename("tel", "Tel. saisi") {
		t.Fatal("Rename failed")
	}
	f, _ := s.ByKey("tel")
	if f.Name != "Tel. saisi" {
		t.Errorf("Name = %q after rename", f.Name)
	}

	if !s.SetType("tel", "varchar") {
		t.Fatal("SetType failed")
	}
	f, _ = s.ByKey("tel")
	if f.Type != "varchar" {
		t.Errorf("Type = %q after SetType", f.Type)
	}

	if s.Rename("missing", "x") || s.SetType("missing", "varchar") {
		t.Error("edits on missing keys should report false")
	}
}

func TestFormatOptionValue(t *testing.T) {
	s := New(testFields())

	tests := []struct {
		key, raw, want string
	}{
		{"status", "37", "M. (37)"},
		{"status", "99", "99"},
		{"status", "", ""},
		{"tags", "1,2", "VIP (1), Premium (2)"},
		{"tags", "2, 1", "Premium (2), VIP (1)"},
		{"tags", "1,99", "VIP (1), 99"},
		{"name", "Acme", "Acme"},
	}

	for _, tt := range tests {
		if got := s.FormatOptionValue(tt.key, tt.raw); got != tt.want {
			t.Errorf("FormatOptionValue(%q, %q) = %q, want %q", tt.key, tt.raw, got, tt.want)
		}
	}
}

func TestOptionByLabel(t *testing.T) {
	s := New(testFields())
	f, _ := s.ByKey("status")

	opt, ok := f.OptionByLabel("mme")
	if !ok || opt.ID != 38 {
		t.Errorf("OptionByLabel(mme) = %+v, %v", opt, ok)
	}
	if _, ok := f.OptionByLabel("Dr"); ok {
		t.Error("OptionByLabel(Dr) should not match")
	}
}

func TestLocalFieldKeys(t *testing.T) {
	key := NewLocalFieldKey()
	if !strings.HasPrefix(key, "_new_") || len(key) != len("_new_")+7 {
		t.Errorf("unexpected local key %q", key)
	}
	if !IsLocalField(key) {
		t.Errorf("IsLocalField(%q) = false", key)
	}
	if IsLocalField("25da23b938affcb7fd65d6e0870e1d29f50e2b0e") {
		t.Error("hash keys are not local fields")
	}
}

func TestReadOnlyFields(t *testing.T) {
	s := New(testFields())

	f, _ := s.ByKey("add_time")
	if !f.ReadOnly() {
		t.Error("add_time should be read-only")
	}
	f, _ = s.ByKey("name")
	if f.ReadOnly() {
		t.Error("name should be writable")
	}
}

func TestValidType(t *testing.T) {
	for _, ft := range []string{"varchar", "monetary", "visible_to"} {
		if !ValidType(ft) {
			t.Errorf("ValidType(%q) = false", ft)
		}
	}
	if ValidType("string") {
		t.Error("string is not a Pipedrive field type")
	}
}
