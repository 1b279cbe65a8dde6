package backup

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lmzr/pipedrive-cli/api"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/store"
)

func TestArchiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "datapackage.json"), []byte(`{"name":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "persons.csv"), []byte("id,name\n1,Ada\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(t.TempDir(), ArchiveName(time.Now()))
	if err := Archive(src, archive); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	dst := t.TempDir()
	if err := Unarchive(archive, dst); err != nil {
		t.Fatalf("Unarchive: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "persons.csv"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "id,name\n1,Ada\n" {
		t.Errorf("content changed in round trip: %q", data)
	}
}

func TestArchiveNameStamp(t *testing.T) {
	name := ArchiveName(time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC))
	if name != "backup-20260829-103000.tar.zst" {
		t.Errorf("unexpected archive name: %s", name)
	}
}

func TestSyntheticSchema(t *testing.T) {
	records := []map[string]string{
		{"id": "1", "content": "note", "deal_id": "5"},
		{"id": "2", "extra": "x"},
	}
	sch := SyntheticSchema(records)
	keys := sch.Keys()
	if keys[0] != "id" {
		t.Errorf("id should lead, got %v", keys)
	}
	if len(keys) != 4 {
		t.Errorf("expected union of columns, got %v", keys)
	}
}

func TestRestorePayloadRemapsForeignKeys(t *testing.T) {
	sch := schema.New([]schema.Field{
		{Key: "id", Name: "ID", Type: "int"},
		{Key: "name", Name: "Name", Type: "varchar"},
		{Key: "org_id", Name: "Organization", Type: "org"},
		{Key: "add_time", Name: "Added", Type: "date"},
	})
	idMap := map[string]map[string]string{
		"organizations": {"7": "70"},
	}

	payload := restorePayload(sch, map[string]string{
		"id":       "1",
		"name":     "Ada",
		"org_id":   "7",
		"add_time": "2020-01-01", // read-only, must drop
	}, idMap)

	if payload["org_id"] != "70" {
		t.Errorf("org_id not remapped: %v", payload)
	}
	if _, ok := payload["id"]; ok {
		t.Error("id must not restore")
	}
	if _, ok := payload["add_time"]; ok {
		t.Error("read-only field must not restore")
	}
	if payload["name"] != "Ada" {
		t.Errorf("plain field lost: %v", payload)
	}
}

func TestRestorePayloadDropsUnmappableReference(t *testing.T) {
	sch := schema.New([]schema.Field{
		{Key: "org_id", Name: "Organization", Type: "org"},
	})
	payload := restorePayload(sch, map[string]string{"org_id": "999"},
		map[string]map[string]string{"organizations": {}})
	if _, ok := payload["org_id"]; ok {
		t.Error("reference to an unrestored record must drop")
	}
}

func TestRunBackupAgainstTestServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/personFields":
			fmt.Fprint(w, `{"success":true,"data":[
				{"id":1,"key":"id","name":"ID","field_type":"int"},
				{"id":2,"key":"name","name":"Name","field_type":"varchar"}
			],"additional_data":{"pagination":{"more_items_in_collection":false}}}`)
		case "/v1/persons":
			fmt.Fprint(w, `{"success":true,"data":[{"id":1,"name":"Ada"}],
				"additional_data":{"pagination":{"more_items_in_collection":false}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			fmt.Fprint(w, `{"success":true,"data":[],"additional_data":{"pagination":{"more_items_in_collection":false}}}`)
		}
	}))
	defer srv.Close()

	persons, _ := schema.EntityByName("persons")
	client := api.New(srv.URL, "tok", nil)
	dir := t.TempDir()

	counts, err := Run(context.Background(), client, dir, []schema.Entity{persons})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(counts) != 1 || counts[0].Records != 1 || counts[0].Fields != 2 {
		t.Errorf("unexpected counts: %+v", counts)
	}

	st, err := store.Load(dir)
	if err != nil {
		t.Fatalf("loading written datapackage: %v", err)
	}
	records, err := st.Records("persons")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0]["name"] != "Ada" {
		t.Errorf("backup content wrong: %v", records)
	}
}
