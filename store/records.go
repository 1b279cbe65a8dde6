package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Records reads an entity's CSV into ordered records. The header row
// carries field keys; cells absent from a row come back as "".
func (s *Store) Records(entity string) ([]map[string]string, error) {
	res, ok := s.byName[entity]
	if !ok {
		return nil, fmt.Errorf("entity %s not in datapackage", entity)
	}

	f, err := os.Open(filepath.Join(s.Dir, res.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s records: %w", entity, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows written before a schema edit may be short

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", entity, err)
	}

	var records []map[string]string
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading %s row %d: %w", entity, len(records)+2, err)
		}
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				rec[key] = row[i]
			} else {
				rec[key] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteRecords rewrites an entity's CSV atomically, with a header of
// the schema's keys in schema order. Cells missing from a record write
// as "".
func (s *Store) WriteRecords(entity string, records []map[string]string) error {
	res, ok := s.byName[entity]
	if !ok {
		return fmt.Errorf("entity %s not in datapackage", entity)
	}

	keys := res.Schema.Keys()

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(keys); err != nil {
		return err
	}
	row := make([]string, len(keys))
	for _, rec := range records {
		for i, key := range keys {
			row[i] = rec[key]
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return atomicWrite(filepath.Join(s.Dir, res.Path), []byte(sb.String()))
}
