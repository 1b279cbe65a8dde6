package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/backup"
)

const restoreUsage = `Usage: pipedrive restore [options]

Create every record of the local store in the API, in dependency
order (organizations before persons before deals), remapping
references from old IDs to the newly created ones. Users are matched
by email rather than created. Intended for an empty target account;
records are created, never merged.

Options:
  --from PATH   Unpack a .tar.zst archive into the store directory
                first, then restore from it
  -y            Skip the confirmation prompt
  -c PATH       Config file
`

func restoreCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "restore")
	fromArchive := fs.String("from", "", "archive to unpack first")
	yes := fs.Bool("y", false, "skip confirmation")
	fs.Usage = func() { fmt.Fprint(app.Stderr, restoreUsage) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}

	if *fromArchive != "" {
		if err := backup.Unarchive(*fromArchive, app.Config.Store.Dir); err != nil {
			return err
		}
	}

	st, err := app.openStore()
	if err != nil {
		return err
	}
	client, err := app.client()
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Stdout, "restore %s -> %s\n", app.Config.Store.Dir, app.Config.API.BaseURL)
	if !app.confirm("This creates records in the target account. Proceed?", *yes) {
		fmt.Fprintln(app.Stdout, "aborted")
		return nil
	}

	stats, err := backup.Restore(ctx, client, st)
	created, failed := 0, 0
	for _, s := range stats {
		fmt.Fprintf(app.Stdout, "%-15s %6d created %4d failed\n", s.Entity, s.Created, s.Failed)
		for _, msg := range s.Errors {
			fmt.Fprintf(app.Stderr, "  %s\n", msg)
		}
		created += s.Created
		failed += s.Failed
	}

	app.appendHistory(audit.Run{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   "restore",
		Updated:   created,
		Failed:    failed,
	})
	return err
}
