// Package backup snapshots every entity from the API into a local
// datapackage, optionally archives the snapshot, and restores one
// back through the API with ID remapping.
package backup

import (
	"context"
	"fmt"
	"sort"

	"github.com/lmzr/pipedrive-cli/api"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/store"
)

// EntityCount is one entity's backup outcome.
type EntityCount struct {
	Entity  string
	Fields  int
	Records int
}

// Run fetches the given entities (all when nil) into a datapackage at
// dir, creating or overwriting it.
func Run(ctx context.Context, client *api.Client, dir string, entities []schema.Entity) ([]EntityCount, error) {
	if len(entities) == 0 {
		entities = schema.Entities
	}

	st, err := store.Create(dir, "pipedrive-backup")
	if err != nil {
		return nil, err
	}

	var counts []EntityCount
	for _, e := range entities {
		sch, err := client.Fields(ctx, e)
		if err != nil {
			return counts, fmt.Errorf("fetching %s fields: %w", e.Name, err)
		}

		var records []map[string]string
		err = client.ListRecords(ctx, e, func(rec map[string]any) error {
			records = append(records, api.FlattenRecord(rec))
			return nil
		})
		if err != nil {
			return counts, fmt.Errorf("fetching %s records: %w", e.Name, err)
		}

		// Entities without a fields endpoint get a synthetic schema
		// from record columns
		if sch.Len() == 0 {
			sch = SyntheticSchema(records)
		}

		st.SetResource(e.Name, sch)
		if err := st.WriteRecords(e.Name, records); err != nil {
			return counts, fmt.Errorf("writing %s records: %w", e.Name, err)
		}
		counts = append(counts, EntityCount{Entity: e.Name, Fields: sch.Len(), Records: len(records)})
	}

	return counts, st.Save()
}

// SyntheticSchema derives a schema from record columns: id first,
// the rest sorted for a stable column order.
func SyntheticSchema(records []map[string]string) *schema.Schema {
	seen := make(map[string]bool)
	for _, rec := range records {
		for key := range rec {
			seen[key] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		if key != "id" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if seen["id"] {
		keys = append([]string{"id"}, keys...)
	}

	fields := make([]schema.Field, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, schema.Field{Key: key, Name: key, Type: "varchar"})
	}
	return schema.New(fields)
}
