package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/store"
)

func testSchema() *schema.Schema {
	return schema.New([]schema.Field{
		{Key: "id", Name: "ID", Type: "int"},
		{Key: "name", Name: "Name", Type: "varchar"},
		{Key: "25da94437d", Name: "Prix", Type: "double", Custom: true},
	})
}

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL("persons", testSchema())
	want := `CREATE TABLE "persons" ("id" INTEGER PRIMARY KEY, "name" TEXT, "25da94437d" REAL)`
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestInsertSQLPlaceholders(t *testing.T) {
	keys := []string{"id", "name"}

	got := InsertSQL("sqlite", "persons", keys)
	if got != `INSERT INTO "persons" ("id", "name") VALUES (?, ?)` {
		t.Errorf("sqlite: %q", got)
	}

	got = InsertSQL("postgres", "persons", keys)
	if got != `INSERT INTO "persons" ("id", "name") VALUES ($1, $2)` {
		t.Errorf("postgres: %q", got)
	}
}

func TestOpenRejectsUnknownDSN(t *testing.T) {
	if _, _, err := Open("oracle://x"); err == nil {
		t.Fatal("expected error for unknown DSN scheme")
	}
}

func TestRunSQLite(t *testing.T) {
	st, err := store.Create(t.TempDir(), "test")
	if err != nil {
		t.Fatal(err)
	}
	st.SetResource("persons", testSchema())
	err = st.WriteRecords("persons", []map[string]string{
		{"id": "1", "name": "Ada", "25da94437d": "9.5"},
		{"id": "2", "name": "Bob", "25da94437d": ""},
	})
	if err != nil {
		t.Fatal(err)
	}

	db, dialect, err := Open("sqlite:" + filepath.Join(t.TempDir(), "out.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	stats, err := Run(context.Background(), db, dialect, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stats) != 1 || stats[0].Rows != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	var name string
	if err := db.QueryRow(`SELECT "name" FROM "persons" WHERE "id" = 1`).Scan(&name); err != nil {
		t.Fatalf("query back: %v", err)
	}
	if name != "Ada" {
		t.Errorf("got %q", name)
	}

	// Empty double cell loads as NULL, not zero
	var price any
	if err := db.QueryRow(`SELECT "25da94437d" FROM "persons" WHERE "id" = 2`).Scan(&price); err != nil {
		t.Fatal(err)
	}
	if price != nil {
		t.Errorf("empty cell should be NULL, got %v", price)
	}
}
