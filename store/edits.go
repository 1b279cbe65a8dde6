package store

import (
	"fmt"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// Local-only schema edits. These change the datapackage, never the
// API; locally created fields get _new_-prefixed keys until a sync
// assigns them real ones.

// AddField appends a field to an entity's schema with a generated
// local key, rewrites the CSV to grow the column, and saves the
// descriptor.
func (s *Store) AddField(entity, name, fieldType string) (schema.Field, error) {
	res, ok := s.byName[entity]
	if !ok {
		return schema.Field{}, fmt.Errorf("entity %s not in datapackage", entity)
	}
	if !schema.ValidType(fieldType) {
		return schema.Field{}, fmt.Errorf("unknown field type %q", fieldType)
	}

	records, err := s.Records(entity)
	if err != nil {
		return schema.Field{}, err
	}

	f := schema.Field{
		Key:    schema.NewLocalFieldKey(),
		Name:   name,
		Type:   fieldType,
		Custom: true,
	}
	res.Schema.Add(f)

	if err := s.WriteRecords(entity, records); err != nil {
		return schema.Field{}, err
	}
	return f, s.Save()
}

// RemoveField drops a field and its CSV column.
func (s *Store) RemoveField(entity, key string) error {
	res, ok := s.byName[entity]
	if !ok {
		return fmt.Errorf("entity %s not in datapackage", entity)
	}

	records, err := s.Records(entity)
	if err != nil {
		return err
	}
	if !res.Schema.Remove(key) {
		return fmt.Errorf("field %s not in %s schema", key, entity)
	}
	for _, rec := range records {
		delete(rec, key)
	}

	if err := s.WriteRecords(entity, records); err != nil {
		return err
	}
	return s.Save()
}

// RenameField changes a field's display name. Keys never change.
func (s *Store) RenameField(entity, key, newName string) error {
	res, ok := s.byName[entity]
	if !ok {
		return fmt.Errorf("entity %s not in datapackage", entity)
	}
	if !res.Schema.Rename(key, newName) {
		return fmt.Errorf("field %s not in %s schema", key, entity)
	}
	return s.Save()
}

// CopyStats reports a field-copy outcome.
type CopyStats struct {
	Copied  int
	Skipped int
	Failed  int
}

// CopyField copies values from one field to another across all
// records. Non-empty targets are skipped unless overwrite is set;
// empty sources are skipped always.
func (s *Store) CopyField(entity, fromKey, toKey string, overwrite bool) (CopyStats, error) {
	res, ok := s.byName[entity]
	if !ok {
		return CopyStats{}, fmt.Errorf("entity %s not in datapackage", entity)
	}
	if _, ok := res.Schema.ByKey(fromKey); !ok {
		return CopyStats{}, fmt.Errorf("field %s not in %s schema", fromKey, entity)
	}
	if _, ok := res.Schema.ByKey(toKey); !ok {
		return CopyStats{}, fmt.Errorf("field %s not in %s schema", toKey, entity)
	}

	records, err := s.Records(entity)
	if err != nil {
		return CopyStats{}, err
	}

	var stats CopyStats
	for _, rec := range records {
		src := rec[fromKey]
		if src == "" {
			stats.Skipped++
			continue
		}
		if rec[toKey] != "" && !overwrite {
			stats.Skipped++
			continue
		}
		rec[toKey] = src
		stats.Copied++
	}

	if err := s.WriteRecords(entity, records); err != nil {
		return stats, err
	}
	return stats, nil
}
