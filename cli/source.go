package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/lmzr/pipedrive-cli/api"
	"github.com/lmzr/pipedrive-cli/backup"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/store"
)

// SchemaHolder is anything a field expression can resolve against.
type SchemaHolder interface {
	FieldSchema() *schema.Schema
}

// source is a record source for one entity, either the live API or
// the local datapackage store. The schema is always available before
// the first record is read; records load lazily so bad expressions
// fail before any fetch.
type source struct {
	app    *App
	entity schema.Entity
	local  bool

	sch     *schema.Schema
	st      *store.Store
	records []map[string]string
	loaded  bool
}

func (s *source) FieldSchema() *schema.Schema { return s.sch }

// openSource resolves an entity argument and prepares its schema.
// Entities without a fields endpoint get a schema synthesized from a
// full record fetch, so resolution still has keys to match against.
func (a *App) openSource(ctx context.Context, entityArg string, local bool) (*source, error) {
	entity, err := schema.MatchEntity(entityArg)
	if err != nil {
		return nil, err
	}

	s := &source{app: a, entity: entity, local: local}

	if local {
		st, err := a.openStore()
		if err != nil {
			return nil, err
		}
		res, ok := st.Resource(entity.Name)
		if !ok {
			return nil, fmt.Errorf("entity %s is not in the local store (run 'pipedrive backup %s')", entity.Name, entity.Name)
		}
		s.st = st
		s.sch = res.Schema
		return s, nil
	}

	client, err := a.client()
	if err != nil {
		return nil, err
	}
	if entity.HasFields() {
		sch, err := client.Fields(ctx, entity)
		if err != nil {
			return nil, err
		}
		s.sch = sch
		return s, nil
	}

	// No fields endpoint: one record pass builds both schema and data.
	records, err := fetchAll(ctx, client, entity)
	if err != nil {
		return nil, err
	}
	s.records = records
	s.loaded = true
	s.sch = backup.SyntheticSchema(records)
	return s, nil
}

// Records materializes the record set.
func (s *source) Records(ctx context.Context) ([]map[string]string, error) {
	if s.loaded {
		return s.records, nil
	}
	if s.local {
		records, err := s.st.Records(s.entity.Name)
		if err != nil {
			return nil, err
		}
		s.records, s.loaded = records, true
		return records, nil
	}
	client, err := s.app.client()
	if err != nil {
		return nil, err
	}
	records, err := fetchAll(ctx, client, s.entity)
	if err != nil {
		return nil, err
	}
	s.records, s.loaded = records, true
	return records, nil
}

// Typed returns the record view expressions evaluate against. Local
// store records carry schema types; API records stay string-typed.
func (s *source) Typed(raw map[string]string) fieldexpr.Record {
	if s.local {
		return store.TypedRecord(s.sch, raw)
	}
	return fieldexpr.StringRecord(raw)
}

// Applier returns the write path for updates: UpdateRecord calls for
// the API, a buffered rewrite for the local store. The returned flush
// persists local writes and is a no-op for the API.
func (s *source) Applier(ctx context.Context) (apply func(id, key, value string) error, flush func() error, err error) {
	if s.local {
		records, err := s.Records(ctx)
		if err != nil {
			return nil, nil, err
		}
		byID := make(map[string]map[string]string, len(records))
		for _, rec := range records {
			byID[rec["id"]] = rec
		}
		apply = func(id, key, value string) error {
			rec, ok := byID[id]
			if !ok {
				return fmt.Errorf("record %s not found", id)
			}
			rec[key] = value
			return nil
		}
		flush = func() error {
			if err := s.st.WriteRecords(s.entity.Name, records); err != nil {
				return err
			}
			return s.st.Save()
		}
		return apply, flush, nil
	}

	if s.entity.ReadOnly {
		return nil, nil, fmt.Errorf("entity %s is read-only in the API (use --local)", s.entity.Name)
	}
	client, err := s.app.client()
	if err != nil {
		return nil, nil, err
	}
	apply = func(id, key, value string) error {
		return client.UpdateRecord(ctx, s.entity, id, map[string]any{key: value})
	}
	flush = func() error { return nil }
	return apply, flush, nil
}

// fetchAll drains the paginated record listing into flat records.
func fetchAll(ctx context.Context, client *api.Client, entity schema.Entity) ([]map[string]string, error) {
	var records []map[string]string
	err := client.ListRecords(ctx, entity, func(rec map[string]any) error {
		records = append(records, api.FlattenRecord(rec))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// sourceLabel names the source in confirmations and summaries.
func (s *source) sourceLabel() string {
	if s.local {
		return "local store"
	}
	return "API"
}

// describe renders "entity (source)" for messages.
func (s *source) describe() string {
	return fmt.Sprintf("%s (%s)", s.entity.Name, s.sourceLabel())
}

// splitList parses a comma-separated flag value.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
