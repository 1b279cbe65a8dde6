package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

func testSchema() *schema.Schema {
	return schema.New([]schema.Field{
		{Key: "id", Name: "ID", Type: "int"},
		{Key: "name", Name: "Name", Type: "varchar"},
		{Key: "phone", Name: "Phone", Type: "phone"},
		{Key: "statut", Name: "Statut", Type: "enum",
			Options: []schema.Option{{ID: 10, Label: "Actif"}, {ID: 11, Label: "Parti"}}},
	})
}

func resolve(t *testing.T, text string, mode fieldexpr.Mode, sch *schema.Schema) *fieldexpr.Resolved {
	t.Helper()
	expr, err := fieldexpr.Resolve(text, mode, sch, fieldexpr.DefaultLimits)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", text, err)
	}
	return expr
}

func stringRecord(raw map[string]string) fieldexpr.Record {
	return fieldexpr.StringRecord(raw)
}

func TestRunUpdatesAndSkips(t *testing.T) {
	sch := testSchema()
	u := &Update{
		Entity: "persons",
		Schema: sch,
		Assign: resolve(t, "name = upper(name)", fieldexpr.Transform, sch),
	}

	records := []map[string]string{
		{"id": "1", "name": "ada"},
		{"id": "2", "name": "BOB"}, // already upper, skip
		{"id": "3", "name": "cy"},
	}

	var applied []string
	stats, err := u.Run(records, stringRecord, func(id, key, value string) error {
		applied = append(applied, id+":"+key+"="+value)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Total != 3 || stats.Matched != 3 || stats.Updated != 2 || stats.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(applied) != 2 || applied[0] != "1:name=ADA" {
		t.Errorf("unexpected applies: %v", applied)
	}
	// Applied values land back in the raw record
	if records[0]["name"] != "ADA" {
		t.Errorf("record not updated in place: %v", records[0])
	}
}

func TestRunFilterGate(t *testing.T) {
	sch := testSchema()
	u := &Update{
		Entity: "persons",
		Schema: sch,
		Assign: resolve(t, "name = upper(name)", fieldexpr.Transform, sch),
		Filter: resolve(t, `startswith(name, 'a')`, fieldexpr.Filter, sch),
	}

	records := []map[string]string{
		{"id": "1", "name": "ada"},
		{"id": "2", "name": "bob"},
	}
	stats, err := u.Run(records, stringRecord, func(id, key, value string) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Matched != 1 || stats.Updated != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRunDryRunNeverApplies(t *testing.T) {
	sch := testSchema()
	u := &Update{
		Entity: "persons",
		Schema: sch,
		Assign: resolve(t, "name = upper(name)", fieldexpr.Transform, sch),
		DryRun: true,
	}

	records := []map[string]string{{"id": "1", "name": "ada"}}
	stats, err := u.Run(records, stringRecord, func(id, key, value string) error {
		t.Fatal("applier called under dry-run")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 {
		t.Errorf("dry-run should count would-updates: %+v", stats)
	}
	if records[0]["name"] != "ada" {
		t.Errorf("dry-run mutated the record: %v", records[0])
	}
}

func TestRunLimit(t *testing.T) {
	sch := testSchema()
	u := &Update{
		Entity: "persons",
		Schema: sch,
		Assign: resolve(t, "name = upper(name)", fieldexpr.Transform, sch),
		Limit:  1,
	}
	records := []map[string]string{
		{"id": "1", "name": "ada"},
		{"id": "2", "name": "bob"},
	}
	stats, err := u.Run(records, stringRecord, func(id, key, value string) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 || stats.Total != 1 {
		t.Errorf("limit not honored: %+v", stats)
	}
}

func TestRunApplyErrorsAreCounted(t *testing.T) {
	sch := testSchema()
	u := &Update{
		Entity: "persons",
		Schema: sch,
		Assign: resolve(t, "name = upper(name)", fieldexpr.Transform, sch),
	}
	records := []map[string]string{
		{"id": "1", "name": "ada"},
		{"id": "2", "name": "bob"},
	}
	stats, err := u.Run(records, stringRecord, func(id, key, value string) error {
		if id == "1" {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 || stats.Updated != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.Errors) != 1 || stats.Errors[0].RecordID != "1" {
		t.Errorf("unexpected errors: %v", stats.Errors)
	}
}

func TestRunEvalErrorAborts(t *testing.T) {
	sch := testSchema()
	u := &Update{
		Entity: "persons",
		Schema: sch,
		// int() on a non-numeric name fails at evaluation time
		Assign: resolve(t, "name = str(int(name) + 1)", fieldexpr.Transform, sch),
	}
	records := []map[string]string{{"id": "1", "name": "ada"}}
	_, err := u.Run(records, stringRecord, func(id, key, value string) error { return nil })
	if err == nil {
		t.Fatal("expected evaluation error to abort the run")
	}
}

func TestEqualValuesOptionForms(t *testing.T) {
	f := schema.Field{Key: "statut", Type: "enum",
		Options: []schema.Option{{ID: 10, Label: "Actif"}, {ID: 11, Label: "Parti"}}}

	tests := []struct {
		old, new string
		want     bool
	}{
		{"10", "10", true},
		{"10", "Actif", true},
		{"10", "Actif (10)", true},
		{"Actif (10)", "Actif", true},
		{"10", "11", false},
		{"10", "Parti", false},
	}
	for _, tt := range tests {
		if got := EqualValues(f, tt.old, tt.new); got != tt.want {
			t.Errorf("EqualValues(%q, %q) = %v, want %v", tt.old, tt.new, got, tt.want)
		}
	}
}

func TestEqualValuesSet(t *testing.T) {
	f := schema.Field{Key: "tags", Type: "set",
		Options: []schema.Option{{ID: 1, Label: "VIP"}, {ID: 2, Label: "Churn"}}}

	if !EqualValues(f, "1,2", "VIP, Churn") {
		t.Error("set labels should equal their ids")
	}
	if EqualValues(f, "1,2", "2,1") {
		t.Error("set member order is significant in stored cells")
	}
}

func TestChangesLogJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewChangesLog(&buf, "json")
	log.Write(Change{Entity: "persons", RecordID: "7", FieldKey: "name", Old: "a", New: "b"})

	var entry Change
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if entry.RecordID != "7" || entry.New != "b" || entry.Timestamp == "" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestChangesLogText(t *testing.T) {
	var buf bytes.Buffer
	log := NewChangesLog(&buf, "text")
	log.Write(Change{Entity: "persons", RecordID: "7", FieldKey: "name", Old: "a", New: "b", DryRun: true})

	line := buf.String()
	for _, want := range []string{"persons", "7", "name", `"a"`, `"b"`, "dry-run"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q: %s", want, line)
		}
	}
}
