package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/importer"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

const importUsage = `Usage: pipedrive import <entity> <file.csv> [options]

Merge CSV rows into an entity of the local store. Columns are matched
by field key; read-only and unknown columns are skipped with a
warning. With -k, rows matching an existing record by the key fields
update it instead of creating a duplicate.

Options:
  -k FIELDS           Match key fields (comma separated)
  --on-duplicate P    Policy for matched rows: update, skip, error
                      (default update)
  --auto-id           Assign ids past the existing maximum to new rows
  -n                  Dry run: report what would change, write nothing
  -y                  Skip the confirmation prompt
  -q                  Quiet: summary only
  -c PATH             Config file

Examples:
  pipedrive import persons ./new-people.csv -k email
  pipedrive import deals ./deals.csv -k title --on-duplicate skip --auto-id
`

func importCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "import")
	keyList := fs.String("k", "", "match key fields")
	onDuplicate := fs.String("on-duplicate", importer.OnDuplicateUpdate, "duplicate policy")
	autoID := fs.Bool("auto-id", false, "assign ids to new rows")
	dryRun := fs.Bool("n", false, "dry run")
	yes := fs.Bool("y", false, "skip confirmation")
	quiet := fs.Bool("q", false, "quiet")
	fs.Usage = func() { fmt.Fprint(app.Stderr, importUsage) }

	pos, rest := takePositionals(args, 2)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 2 {
		fs.Usage()
		return fmt.Errorf("import needs an entity argument and an input file")
	}
	if !importer.ValidPolicy(*onDuplicate) {
		return fmt.Errorf("unknown --on-duplicate policy %q (update, skip or error)", *onDuplicate)
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}
	if app.Config.Output.Quiet {
		*quiet = true
	}

	entity, err := schema.MatchEntity(pos[0])
	if err != nil {
		return err
	}
	st, err := app.openStore()
	if err != nil {
		return err
	}
	res, ok := st.Resource(entity.Name)
	if !ok {
		return fmt.Errorf("entity %s is not in the local store (run 'pipedrive backup %s')", entity.Name, entity.Name)
	}

	f, err := os.Open(pos[1])
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	rows, columns, err := importer.ReadCSV(f)
	if err != nil {
		return err
	}

	valid, readOnly, unknown := importer.SplitColumns(columns, res.Schema)
	if len(valid) == 0 {
		return fmt.Errorf("no input column matches a writable %s field", entity.Name)
	}
	if len(readOnly) > 0 {
		fmt.Fprintf(app.Stderr, "warning: skipping read-only columns: %s\n", strings.Join(readOnly, ", "))
	}
	if len(unknown) > 0 {
		fmt.Fprintf(app.Stderr, "warning: skipping unknown columns: %s\n", strings.Join(unknown, ", "))
	}

	keys := splitList(*keyList)
	for _, key := range keys {
		if _, ok := res.Schema.ByKey(key); !ok {
			return fmt.Errorf("match key %s is not a %s field", key, entity.Name)
		}
	}

	if !*quiet {
		fmt.Fprintf(app.Stdout, "importing %d rows into %s (local store)\n", len(rows), entity.Name)
	}
	if !*dryRun {
		if !app.confirm(fmt.Sprintf("Import into %s (local store)?", entity.Name), *yes) {
			fmt.Fprintln(app.Stdout, "aborted")
			return nil
		}
	}

	existing, err := st.Records(entity.Name)
	if err != nil {
		return err
	}
	stats, merged := importer.Merge(existing, rows, valid, importer.Options{
		Keys:        keys,
		OnDuplicate: *onDuplicate,
		AutoID:      *autoID,
	})

	var runErr error
	if !*dryRun {
		runErr = st.WriteRecords(entity.Name, merged)
		if runErr == nil {
			runErr = st.Save()
		}
	}

	printImportStats(app, stats, *dryRun)

	app.appendHistory(audit.Run{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   "import",
		Entity:    entity.Name,
		Updated:   stats.Created + stats.Updated,
		Skipped:   stats.Skipped,
		Failed:    stats.Failed,
		DryRun:    *dryRun,
	})
	return runErr
}

func printImportStats(app *App, stats importer.Stats, dryRun bool) {
	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(app.Stdout, "%d rows: %d created, %d updated, %d skipped, %d failed%s\n",
		stats.Total, stats.Created, stats.Updated, stats.Skipped, stats.Failed, mode)
	for _, re := range stats.Errors {
		fmt.Fprintf(app.Stderr, "row %d: %v\n", re.Row, re.Err)
	}
}
