package importer

import (
	"strings"
	"testing"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

func personsSchema() *schema.Schema {
	return schema.New([]schema.Field{
		{Key: "id", Name: "ID", Type: "int"},
		{Key: "name", Name: "Name", Type: "varchar"},
		{Key: "email", Name: "Email", Type: "email"},
		{Key: "update_time", Name: "Update time", Type: "date"},
	})
}

func TestReadCSV(t *testing.T) {
	input := "name,email\nAda,ada@x.com\nBob,\nCleo\n"
	rows, columns, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(columns) != 2 || columns[0] != "name" || columns[1] != "email" {
		t.Errorf("columns: %v", columns)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %v", rows)
	}
	if rows[0]["email"] != "ada@x.com" {
		t.Errorf("row 0: %v", rows[0])
	}
	// Short rows pad with empty cells.
	if rows[2]["name"] != "Cleo" || rows[2]["email"] != "" {
		t.Errorf("short row: %v", rows[2])
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	if _, _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for input without a header")
	}
}

func TestSplitColumns(t *testing.T) {
	valid, readOnly, unknown := SplitColumns(
		[]string{"name", "update_time", "email", "nope"}, personsSchema())

	if len(valid) != 2 || valid[0] != "name" || valid[1] != "email" {
		t.Errorf("valid: %v", valid)
	}
	if len(readOnly) != 1 || readOnly[0] != "update_time" {
		t.Errorf("readOnly: %v", readOnly)
	}
	if len(unknown) != 1 || unknown[0] != "nope" {
		t.Errorf("unknown: %v", unknown)
	}
}

func TestMergeCreatesAndUpdates(t *testing.T) {
	existing := []map[string]string{
		{"id": "1", "name": "Ada", "email": "ada@x.com"},
		{"id": "2", "name": "Bob", "email": "bob@x.com"},
	}
	input := []map[string]string{
		{"name": "Bob", "email": "robert@x.com"},
		{"name": "Cleo", "email": "cleo@x.com"},
	}

	stats, merged := Merge(existing, input, []string{"name", "email"}, Options{
		Keys: []string{"name"},
	})

	if stats.Created != 1 || stats.Updated != 1 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Errorf("stats: %+v", stats)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged records, got %v", merged)
	}
	if merged[1]["email"] != "robert@x.com" {
		t.Errorf("update not applied: %v", merged[1])
	}
	// The matched record keeps cells the input does not carry.
	if merged[1]["id"] != "2" {
		t.Errorf("existing cells lost: %v", merged[1])
	}
	if merged[2]["name"] != "Cleo" {
		t.Errorf("created record: %v", merged[2])
	}
	// Input is merged into a copy; the originals stay intact.
	if existing[1]["email"] != "bob@x.com" {
		t.Errorf("existing records modified: %v", existing[1])
	}
}

func TestMergeSkipPolicy(t *testing.T) {
	existing := []map[string]string{{"id": "1", "name": "Ada", "email": "ada@x.com"}}
	input := []map[string]string{{"name": "Ada", "email": "new@x.com"}}

	stats, merged := Merge(existing, input, []string{"name", "email"}, Options{
		Keys:        []string{"name"},
		OnDuplicate: OnDuplicateSkip,
	})

	if stats.Skipped != 1 || stats.Updated != 0 {
		t.Errorf("stats: %+v", stats)
	}
	if merged[0]["email"] != "ada@x.com" {
		t.Errorf("skipped row still applied: %v", merged[0])
	}
}

func TestMergeErrorPolicy(t *testing.T) {
	existing := []map[string]string{{"id": "1", "name": "Ada"}}
	input := []map[string]string{
		{"name": "Ada"},
		{"name": "Bob"},
	}

	stats, merged := Merge(existing, input, []string{"name"}, Options{
		Keys:        []string{"name"},
		OnDuplicate: OnDuplicateError,
	})

	if stats.Failed != 1 || stats.Created != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if len(stats.Errors) != 1 || stats.Errors[0].Row != 1 {
		t.Errorf("errors: %+v", stats.Errors)
	}
	if len(merged) != 2 {
		t.Errorf("merged: %v", merged)
	}
}

func TestMergeAutoID(t *testing.T) {
	existing := []map[string]string{{"id": "41", "name": "Ada"}}
	input := []map[string]string{
		{"name": "Bob"},
		{"name": "Cleo"},
	}

	_, merged := Merge(existing, input, []string{"name"}, Options{AutoID: true})

	if merged[1]["id"] != "42" || merged[2]["id"] != "43" {
		t.Errorf("auto ids: %v %v", merged[1], merged[2])
	}
}

func TestMergeNoKeysAppendsAll(t *testing.T) {
	existing := []map[string]string{{"id": "1", "name": "Ada"}}
	input := []map[string]string{{"name": "Ada"}}

	stats, merged := Merge(existing, input, []string{"name"}, Options{})

	if stats.Created != 1 || len(merged) != 2 {
		t.Errorf("without keys every row is new: %+v %v", stats, merged)
	}
}

func TestMergeRepeatedInputKey(t *testing.T) {
	input := []map[string]string{
		{"name": "Ada", "email": "first@x.com"},
		{"name": "Ada", "email": "second@x.com"},
	}

	stats, merged := Merge(nil, input, []string{"name", "email"}, Options{
		Keys: []string{"name"},
	})

	// The second row matches the record the first one created.
	if stats.Created != 1 || stats.Updated != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if len(merged) != 1 || merged[0]["email"] != "second@x.com" {
		t.Errorf("merged: %v", merged)
	}
}

func TestMergeDropsUnlistedColumns(t *testing.T) {
	input := []map[string]string{{"name": "Ada", "nope": "x"}}

	_, merged := Merge(nil, input, []string{"name"}, Options{})

	if _, ok := merged[0]["nope"]; ok {
		t.Errorf("unlisted column carried over: %v", merged[0])
	}
}
