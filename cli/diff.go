package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lmzr/pipedrive-cli/diff"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/store"
)

const diffUsage = `Usage: pipedrive diff <old-dir> <new-dir> [options]

Compare two local datapackages: field definitions by key, records by
a matching key field. Nothing is modified.

Options:
  -e LIST             Entities to compare (comma separated, prefixes ok);
                      default: every entity present in both
  -k FIELD            Record matching key (default id)
  --schema-only       Compare field definitions only
  --data-only         Compare records only
  --include-computed  Also compare server-computed cells
  -l N                Record changes to show per entity (0 = all)
  -f FORMAT           Output format: table, json
  -q                  Quiet: changes only, no summary
  -c PATH             Config file

Examples:
  pipedrive diff ./backup-jan ./backup-feb
  pipedrive diff ./before ./after -e persons -k email --data-only
`

func diffCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "diff")
	entityList := fs.String("e", "", "entities to compare")
	keyField := fs.String("k", "", "record matching key")
	schemaOnly := fs.Bool("schema-only", false, "compare field definitions only")
	dataOnly := fs.Bool("data-only", false, "compare records only")
	includeComputed := fs.Bool("include-computed", false, "compare computed cells")
	limit := fs.Int("l", 0, "record changes shown per entity")
	format := fs.String("f", "", "output format")
	quiet := fs.Bool("q", false, "quiet")
	fs.Usage = func() { fmt.Fprint(app.Stderr, diffUsage) }

	pos, rest := takePositionals(args, 2)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 2 {
		fs.Usage()
		return fmt.Errorf("diff needs two datapackage directories")
	}
	if *schemaOnly && *dataOnly {
		return fmt.Errorf("--schema-only and --data-only exclude each other")
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}
	if *format == "" {
		*format = app.Config.Output.Format
	}
	if app.Config.Output.Quiet {
		*quiet = true
	}

	oldStore, err := store.Load(pos[0])
	if err != nil {
		return err
	}
	newStore, err := store.Load(pos[1])
	if err != nil {
		return err
	}

	entities, err := diffEntities(oldStore, newStore, splitList(*entityList))
	if err != nil {
		return err
	}

	opts := diff.Options{
		KeyField:        *keyField,
		SchemaOnly:      *schemaOnly,
		DataOnly:        *dataOnly,
		IncludeComputed: *includeComputed,
	}

	var diffs []diff.EntityDiff
	var stats diff.Stats
	for _, name := range entities {
		oldRes, _ := oldStore.Resource(name)
		newRes, _ := newStore.Resource(name)

		var oldRecs, newRecs []map[string]string
		if !*schemaOnly {
			if oldRecs, err = oldStore.Records(name); err != nil {
				return err
			}
			if newRecs, err = newStore.Records(name); err != nil {
				return err
			}
		}

		d := diff.Entity(name, oldRes.Schema, newRes.Schema, oldRecs, newRecs, opts)
		diffs = append(diffs, d)
		stats.Add(d)
	}

	if *format == "json" {
		return writeDiffJSON(app, diffs, stats)
	}
	printDiffs(app, diffs, stats, *limit, *quiet)
	return nil
}

// diffEntities picks the entities to compare: the requested ones,
// which must exist on both sides, or every common entity.
func diffEntities(oldStore, newStore *store.Store, requested []string) ([]string, error) {
	if len(requested) > 0 {
		entities, err := schema.MatchEntities(requested)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entities))
		for _, e := range entities {
			if _, ok := oldStore.Resource(e.Name); !ok {
				return nil, fmt.Errorf("entity %s is not in %s", e.Name, oldStore.Dir)
			}
			if _, ok := newStore.Resource(e.Name); !ok {
				return nil, fmt.Errorf("entity %s is not in %s", e.Name, newStore.Dir)
			}
			names = append(names, e.Name)
		}
		return names, nil
	}

	var names []string
	for _, res := range oldStore.Resources() {
		if _, ok := newStore.Resource(res.Name); ok {
			names = append(names, res.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("the two datapackages share no entities")
	}
	return names, nil
}

func printDiffs(app *App, diffs []diff.EntityDiff, stats diff.Stats, limit int, quiet bool) {
	if stats.EntitiesChanged == 0 {
		if !quiet {
			fmt.Fprintf(app.Stdout, "no differences (%d entities compared)\n", stats.Entities)
		}
		return
	}

	for _, d := range diffs {
		if d.Empty() {
			continue
		}
		if !quiet {
			fmt.Fprintf(app.Stdout, "\n=== %s ===\n", d.Entity)
		}
		printFieldChanges(app, d.Fields)
		printRecordChanges(app, d.Records, limit, quiet)
	}

	if !quiet {
		fmt.Fprintf(app.Stdout, "\n%d entities compared, %d with differences\n",
			stats.Entities, stats.EntitiesChanged)
		if stats.FieldsAdded+stats.FieldsRemoved+stats.FieldsChanged > 0 {
			fmt.Fprintf(app.Stdout, "schema: %d added, %d removed, %d changed\n",
				stats.FieldsAdded, stats.FieldsRemoved, stats.FieldsChanged)
		}
		if stats.RecordsAdded+stats.RecordsRemoved+stats.RecordsModified > 0 {
			fmt.Fprintf(app.Stdout, "records: %d added, %d removed, %d modified\n",
				stats.RecordsAdded, stats.RecordsRemoved, stats.RecordsModified)
		}
	}
}

func printFieldChanges(app *App, changes []diff.FieldChange) {
	for _, fc := range changes {
		switch fc.Kind {
		case diff.Added:
			fmt.Fprintf(app.Stdout, "  + field added: %s (%s)\n", fc.Key, fc.Name)
		case diff.Removed:
			fmt.Fprintf(app.Stdout, "  - field removed: %s (%s)\n", fc.Key, fc.Name)
		case diff.TypeChanged:
			fmt.Fprintf(app.Stdout, "  ~ type changed: %s: %s -> %s\n", fc.Key, fc.Old, fc.New)
		case diff.NameChanged:
			fmt.Fprintf(app.Stdout, "  ~ name changed: %s: %q -> %q\n", fc.Key, fc.Old, fc.New)
		case diff.OptionsChanged:
			fmt.Fprintf(app.Stdout, "  ~ options changed: %s: [%s] -> [%s]\n", fc.Key, fc.Old, fc.New)
		}
	}
}

func printRecordChanges(app *App, changes []diff.RecordChange, limit int, quiet bool) {
	shown := 0
	for _, rc := range changes {
		if limit > 0 && shown >= limit {
			break
		}
		switch rc.Kind {
		case diff.Added:
			fmt.Fprintf(app.Stdout, "  + record added: %s\n", rc.ID)
		case diff.Removed:
			fmt.Fprintf(app.Stdout, "  - record removed: %s\n", rc.ID)
		default:
			fmt.Fprintf(app.Stdout, "  ~ record modified: %s\n", rc.ID)
			for _, c := range rc.Cells {
				fmt.Fprintf(app.Stdout, "      %s: %q -> %q\n", c.Key, c.Old, c.New)
			}
		}
		shown++
	}
	if !quiet && limit > 0 && len(changes) > limit {
		fmt.Fprintf(app.Stdout, "  ... and %d more record changes\n", len(changes)-limit)
	}
}

func writeDiffJSON(app *App, diffs []diff.EntityDiff, stats diff.Stats) error {
	out := struct {
		Stats    diff.Stats        `json:"stats"`
		Entities []diff.EntityDiff `json:"entities"`
	}{Stats: stats, Entities: diffs}
	enc := json.NewEncoder(app.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
