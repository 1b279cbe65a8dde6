package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lmzr/pipedrive-cli/audit"
)

const copyUsage = `Usage: pipedrive copy <entity> <from> <to> [options]

Copy each record's value from one field to another in the local
store. Cells where the destination already has a value are skipped
unless --overwrite; cells are skipped when the source is empty.

Options:
  --overwrite   Replace non-empty destination values
  -y            Skip the confirmation prompt
  -c PATH       Config file

Examples:
  pipedrive copy persons phone 'backup phone'
  pipedrive copy deals 'old stage' stage --overwrite
`

func copyCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "copy")
	overwrite := fs.Bool("overwrite", false, "replace non-empty destinations")
	yes := fs.Bool("y", false, "skip confirmation")
	fs.Usage = func() { fmt.Fprint(app.Stderr, copyUsage) }

	pos, rest := takePositionals(args, 3)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 3 {
		fs.Usage()
		return fmt.Errorf("copy needs entity, source field and destination field arguments")
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}

	src, err := app.openSource(ctx, pos[0], true)
	if err != nil {
		return err
	}
	from, err := src.sch.MatchField(pos[1])
	if err != nil {
		return err
	}
	to, err := src.sch.MatchField(pos[2])
	if err != nil {
		return err
	}
	if from.Key == to.Key {
		return fmt.Errorf("source and destination are the same field (%s)", from.Key)
	}

	fmt.Fprintf(app.Stdout, "copy: %s (%s) -> %s (%s)\n", from.Name, from.Key, to.Name, to.Key)
	if !app.confirm("Copy?", *yes) {
		fmt.Fprintln(app.Stdout, "aborted")
		return nil
	}

	stats, err := src.st.CopyField(src.entity.Name, from.Key, to.Key, *overwrite)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "%d copied, %d skipped, %d failed\n", stats.Copied, stats.Skipped, stats.Failed)

	app.appendHistory(audit.Run{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Command:    "copy",
		Entity:     src.entity.Name,
		Expression: fmt.Sprintf("%s -> %s", from.Key, to.Key),
		Updated:    stats.Copied,
		Skipped:    stats.Skipped,
		Failed:     stats.Failed,
	})
	return nil
}
