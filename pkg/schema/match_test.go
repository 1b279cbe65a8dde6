package schema

import (
	"strings"
	"testing"
)

func matchSchema() *Schema {
	return New([]Field{
		{Key: "id", Name: "ID", Type: "int"},
		{Key: "name", Name: "Name", Type: "varchar"},
		{Key: "tel", Name: "Telephone", Type: "phone"},
		{Key: "25da23b938affcb7fd65d6e0870e1d29f50e2b0e", Name: "Tel saisi", Type: "varchar"},
		{Key: "25ffb938affcb7fd65d6e0870e1d29f50e2b0e11", Name: "Tel fixe", Type: "varchar"},
		{Key: "b85f2dfc6aa3e0870e1d29f50e2b0e25da23b938", Name: "Région", Type: "varchar"},
		{Key: "won_time", Name: "Won time", Type: "date"},
	})
}

func TestMatchFieldsStages(t *testing.T) {
	s := matchSchema()

	tests := []struct {
		identifier string
		wantKeys   []string
	}{
		// exact key beats key prefix
		{"tel", []string{"tel"}},
		// unique key prefix
		{"won", []string{"won_time"}},
		{"b85", []string{"b85f2dfc6aa3e0870e1d29f50e2b0e25da23b938"}},
		// key prefix collects every hit
		{"25", []string{"25da23b938affcb7fd65d6e0870e1d29f50e2b0e", "25ffb938affcb7fd65d6e0870e1d29f50e2b0e11"}},
		// underscore escape for digit-led keys
		{"_25da", []string{"25da23b938affcb7fd65d6e0870e1d29f50e2b0e"}},
		{"_25", []string{"25da23b938affcb7fd65d6e0870e1d29f50e2b0e", "25ffb938affcb7fd65d6e0870e1d29f50e2b0e11"}},
		// exact name, case-insensitive, underscores read as spaces
		{"tel_saisi", []string{"25da23b938affcb7fd65d6e0870e1d29f50e2b0e"}},
		{"TEL_FIXE", []string{"25ffb938affcb7fd65d6e0870e1d29f50e2b0e11"}},
		// name prefix
		{"tel_s", []string{"25da23b938affcb7fd65d6e0870e1d29f50e2b0e"}},
		{"région", []string{"b85f2dfc6aa3e0870e1d29f50e2b0e25da23b938"}},
		// no match
		{"zzz", nil},
		{"", nil},
	}

	for _, tt := range tests {
		matches := s.MatchFields(tt.identifier)
		if len(matches) != len(tt.wantKeys) {
			t.Errorf("MatchFields(%q) returned %d fields, want %d", tt.identifier, len(matches), len(tt.wantKeys))
			continue
		}
		for i, want := range tt.wantKeys {
			if matches[i].Key != want {
				t.Errorf("MatchFields(%q)[%d] = %q, want %q", tt.identifier, i, matches[i].Key, want)
			}
		}
	}
}

func TestMatchFieldErrors(t *testing.T) {
	s := matchSchema()

	if _, err := s.MatchField("won"); err != nil {
		t.Errorf("unique prefix should resolve: %v", err)
	}

	_, err := s.MatchField("25")
	if err == nil || !strings.Contains(err.Error(), "ambiguous field") {
		t.Errorf("expected ambiguity error, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "25da23b938affcb7fd65d6e0870e1d29f50e2b0e") {
		t.Errorf("ambiguity error should list candidate keys, got %v", err)
	}

	_, err = s.MatchField("zzz")
	if err == nil || !strings.Contains(err.Error(), "no field matches") {
		t.Errorf("expected no-match error, got %v", err)
	}
}

func TestMatchEntity(t *testing.T) {
	e, err := MatchEntity("per")
	if err != nil || e.Name != "persons" {
		t.Errorf("MatchEntity(per) = %v, %v", e, err)
	}

	e, err = MatchEntity("DEALS")
	if err != nil || e.Name != "deals" {
		t.Errorf("exact names match case-insensitively: %v, %v", e, err)
	}

	if _, err = MatchEntity("p"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("p matches persons and products, got %v", err)
	}

	if _, err = MatchEntity("x"); err == nil || !strings.Contains(err.Error(), "no entity matches") {
		t.Errorf("expected no-match error, got %v", err)
	}
}

func TestMatchEntitiesDeduplicates(t *testing.T) {
	entities, err := MatchEntities([]string{"per", "persons", "org"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 2 || entities[0].Name != "persons" || entities[1].Name != "organizations" {
		t.Errorf("unexpected result: %+v", entities)
	}
}
