package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/search"
)

const deleteUsage = `Usage: pipedrive delete <entity> -s <filter> [options]

Delete the records a filter matches. The resolved filter echoes back
before anything is deleted; confirm or pass -y. A filter is required:
there is no delete-everything form.

Options:
  -s EXPR     Filter selecting the records to delete (required)
  -n          Dry run: report what would be deleted, delete nothing
  -l N        Stop after N deletions
  -y          Skip the confirmation prompt
  -q          Quiet: summary only
  --local     Delete from the local store instead of the API
  -c PATH     Config file

Examples:
  pipedrive delete persons -s "isnull(email) and isnull(phone)" -n
  pipedrive delete deals -s "status == 'lost' and value == 0" --local
`

func deleteCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "delete")
	filterText := fs.String("s", "", "filter expression")
	dryRun := fs.Bool("n", false, "dry run")
	limit := fs.Int("l", 0, "deletion limit")
	yes := fs.Bool("y", false, "skip confirmation")
	quiet := fs.Bool("q", false, "quiet")
	local := fs.Bool("local", false, "use local store")
	fs.Usage = func() { fmt.Fprint(app.Stderr, deleteUsage) }

	pos, rest := takePositionals(args, 1)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 1 || *filterText == "" {
		fs.Usage()
		return fmt.Errorf("delete needs an entity argument and a -s filter")
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}
	if app.Config.Output.Quiet {
		*quiet = true
	}

	src, err := app.openSource(ctx, pos[0], *local)
	if err != nil {
		return err
	}
	if !*local && src.entity.ReadOnly {
		return fmt.Errorf("entity %s is read-only in the API (use --local)", src.entity.Name)
	}

	filter, err := app.resolveExpr(*filterText, fieldexpr.Filter, src)
	if err != nil {
		return err
	}
	if !*quiet {
		fmt.Fprintf(app.Stdout, "delete where: %s\n", filter.NameForm)
	}

	records, err := src.Records(ctx)
	if err != nil {
		return err
	}
	matched, err := search.FilterRecords(filter, records, src.Typed, *limit)
	if err != nil {
		return err
	}

	if len(matched) == 0 {
		if !*quiet {
			fmt.Fprintf(app.Stdout, "0 of %d records match, nothing to delete\n", len(records))
		}
		return nil
	}
	if *dryRun {
		fmt.Fprintf(app.Stdout, "%d of %d records would be deleted (dry run)\n", len(matched), len(records))
		return nil
	}
	if !app.confirm(fmt.Sprintf("Delete %d records from %s?", len(matched), src.describe()), *yes) {
		fmt.Fprintln(app.Stdout, "aborted")
		return nil
	}

	deleted, failed, runErr := deleteRecords(ctx, app, src, matched)

	if !*quiet || failed > 0 {
		fmt.Fprintf(app.Stdout, "%d deleted, %d failed\n", deleted, failed)
	}
	app.appendHistory(audit.Run{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   "delete",
		Entity:    src.entity.Name,
		Filter:    filter.KeyForm,
		Updated:   deleted,
		Failed:    failed,
	})
	return runErr
}

// deleteRecords removes matched records: per-record API calls, or one
// rewrite of the entity's CSV for the local store.
func deleteRecords(ctx context.Context, app *App, src *source, matched []map[string]string) (deleted, failed int, err error) {
	if src.local {
		doomed := make(map[string]bool, len(matched))
		for _, rec := range matched {
			doomed[rec["id"]] = true
		}
		records, err := src.Records(ctx)
		if err != nil {
			return 0, 0, err
		}
		kept := records[:0]
		for _, rec := range records {
			if doomed[rec["id"]] {
				deleted++
				continue
			}
			kept = append(kept, rec)
		}
		if err := src.st.WriteRecords(src.entity.Name, kept); err != nil {
			return 0, 0, err
		}
		return deleted, 0, src.st.Save()
	}

	client, err := app.client()
	if err != nil {
		return 0, 0, err
	}
	for _, rec := range matched {
		if err := client.DeleteRecord(ctx, src.entity, rec["id"]); err != nil {
			failed++
			fmt.Fprintf(app.Stderr, "record %s: %v\n", rec["id"], err)
			continue
		}
		deleted++
	}
	return deleted, failed, nil
}
