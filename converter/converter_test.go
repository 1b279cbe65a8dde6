package converter

import (
	"strings"
	"testing"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

func testSchema() *schema.Schema {
	return schema.New([]schema.Field{
		{Key: "id", Name: "ID", Type: "int"},
		{Key: "amount", Name: "Amount", Type: "varchar"},
		{Key: "birthday", Name: "Birthday", Type: "varchar"},
		{Key: "statut", Name: "Statut", Type: "varchar",
			Options: []schema.Option{{ID: 10, Label: "Actif"}, {ID: 11, Label: "Parti"}}},
	})
}

func TestConvertToInt(t *testing.T) {
	sch := testSchema()
	records := []map[string]string{
		{"id": "1", "amount": "42"},
		{"id": "2", "amount": "3.6"},
		{"id": "3", "amount": ""},
		{"id": "4", "amount": "oops"},
	}

	stats, err := Convert(sch, records, "amount", "int", "en_US")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	// "42" is already in target form (skipped), "3.6" rounds, "" skips,
	// "oops" fails
	if stats.Converted != 1 || stats.Skipped != 2 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if records[1]["amount"] != "4" {
		t.Errorf("3.6 should round to 4, got %q", records[1]["amount"])
	}
	if records[3]["amount"] != "oops" {
		t.Errorf("failed cell should keep its value, got %q", records[3]["amount"])
	}

	// A failed cell must keep the declared type unchanged
	f, _ := sch.ByKey("amount")
	if f.Type != "varchar" {
		t.Errorf("type changed despite failures: %s", f.Type)
	}
}

func TestConvertTypeChangesWhenClean(t *testing.T) {
	sch := testSchema()
	records := []map[string]string{{"id": "1", "amount": "7.5"}}

	stats, err := Convert(sch, records, "amount", "double", "en_US")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 0 {
		t.Fatalf("unexpected failures: %+v", stats)
	}
	f, _ := sch.ByKey("amount")
	if f.Type != "double" {
		t.Errorf("clean conversion should change the declared type, got %s", f.Type)
	}
}

func TestConvertDoubleAcceptsComma(t *testing.T) {
	sch := testSchema()
	records := []map[string]string{{"id": "1", "amount": "12,5"}}
	if _, err := Convert(sch, records, "amount", "double", "fr_FR"); err != nil {
		t.Fatal(err)
	}
	if records[0]["amount"] != "12.5" {
		t.Errorf("comma decimal not normalized: %q", records[0]["amount"])
	}
}

func TestConvertDates(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		locale string
		want   string
	}{
		{"iso passthrough", "2024-03-05", "en_US", "2024-03-05"},
		{"us numeric", "3/5/2024", "en_US", "2024-03-05"},
		{"french numeric is day first", "05/03/2024", "fr_FR", "2024-03-05"},
		{"english month name", "5 March 2024", "en_US", "2024-03-05"},
		{"french month name", "5 mars 2024", "fr_FR", "2024-03-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := toDate(tt.in, tt.locale)
			if res.Err != nil {
				t.Fatalf("toDate(%q, %s): %v", tt.in, tt.locale, res.Err)
			}
			if res.Value != tt.want {
				t.Errorf("toDate(%q, %s) = %q, want %q", tt.in, tt.locale, res.Value, tt.want)
			}
		})
	}
}

func TestConvertDateRejectsGarbage(t *testing.T) {
	if res := toDate("not a date", "en_US"); res.Err == nil {
		t.Errorf("expected failure, got %q", res.Value)
	}
}

func TestConvertEnum(t *testing.T) {
	sch := testSchema()
	records := []map[string]string{
		{"id": "1", "statut": "Actif"},
		{"id": "2", "statut": "10"},
		{"id": "3", "statut": "Inconnu"},
	}

	stats, err := Convert(sch, records, "statut", "enum", "en_US")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Converted != 1 || stats.Skipped != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if records[0]["statut"] != "10" {
		t.Errorf("label should map to id, got %q", records[0]["statut"])
	}
	if len(stats.Samples) != 1 || !strings.Contains(stats.Samples[0], "Inconnu") {
		t.Errorf("expected failure sample naming the value: %v", stats.Samples)
	}
}

func TestConvertSet(t *testing.T) {
	f := schema.Field{Key: "tags", Type: "set",
		Options: []schema.Option{{ID: 1, Label: "VIP"}, {ID: 2, Label: "Churn"}}}

	res := toSet(f, "VIP, Churn")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Value != "1,2" {
		t.Errorf("got %q, want 1,2", res.Value)
	}

	if res := toSet(f, "VIP, Nope"); res.Err == nil {
		t.Error("unknown member should fail the whole cell")
	}
}

func TestOptionUsage(t *testing.T) {
	f := schema.Field{Key: "statut", Type: "enum",
		Options: []schema.Option{{ID: 10, Label: "Actif"}}}
	records := []map[string]string{
		{"statut": "Actif"},
		{"statut": "10"},
		{"statut": "Parti"},
		{"statut": "parti"},
		{"statut": ""},
	}

	usage, missing := OptionUsage(f, records)
	if len(usage) != 2 {
		t.Fatalf("expected 2 distinct values, got %v", usage)
	}
	// "Actif" counts id and label spellings together
	if usage[0].Label != "Actif" || usage[0].Count != 2 || !usage[0].Known {
		t.Errorf("unexpected top usage: %+v", usage[0])
	}
	if len(missing) != 1 || missing[0] != "Parti" {
		t.Errorf("expected Parti as missing option, got %v", missing)
	}
}

func TestAddMissingOptions(t *testing.T) {
	sch := testSchema()
	options := AddMissingOptions(sch, "statut", []string{"Suspendu"})
	if len(options) != 3 {
		t.Fatalf("expected 3 options, got %v", options)
	}
	added := options[2]
	if added.Label != "Suspendu" || added.ID >= 0 {
		t.Errorf("local options need negative ids: %+v", added)
	}
}
