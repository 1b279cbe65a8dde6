package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/search"
)

const historyUsage = `Usage: pipedrive history [id] [options]

Show past mutating runs (update, convert, copy, backup, restore),
newest first. With an id argument, show that run in full, including
the key-form expressions it ran with.

Options:
  -l N        Show the last N runs (default 20)
  -c PATH     Config file
`

func historyCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "history")
	limit := fs.Int("l", 20, "how many runs to show")
	fs.Usage = func() { fmt.Fprint(app.Stderr, historyUsage) }

	pos, rest := takePositionals(args, 1)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}

	log, err := audit.Open(app.Config.History)
	if err != nil {
		return err
	}
	defer log.Close()

	if len(pos) == 1 {
		id, err := strconv.ParseInt(pos[0], 10, 64)
		if err != nil {
			return fmt.Errorf("history id must be a number, got %q", pos[0])
		}
		run, err := log.Get(id)
		if err != nil {
			return err
		}
		printRun(app, run)
		return nil
	}

	runs, err := log.Recent(*limit)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID), r.Timestamp, r.Command, r.Entity,
			r.Expression, fmt.Sprintf("%d/%d/%d", r.Updated, r.Skipped, r.Failed),
			dryRunMark(r.DryRun),
		})
	}
	return search.WriteTable(app.Stdout,
		[]string{"id", "when", "command", "entity", "expression", "upd/skip/fail", ""}, rows)
}

func printRun(app *App, r audit.Run) {
	fmt.Fprintf(app.Stdout, "run %d  %s\n", r.ID, r.Timestamp)
	fmt.Fprintf(app.Stdout, "  command:    %s %s%s\n", r.Command, r.Entity, dryRunSuffix(r.DryRun))
	if r.Expression != "" {
		fmt.Fprintf(app.Stdout, "  expression: %s\n", r.Expression)
	}
	if r.Filter != "" {
		fmt.Fprintf(app.Stdout, "  filter:     %s\n", r.Filter)
	}
	fmt.Fprintf(app.Stdout, "  updated %d, skipped %d, failed %d\n", r.Updated, r.Skipped, r.Failed)
}

func dryRunMark(dry bool) string {
	if dry {
		return "dry-run"
	}
	return ""
}

func dryRunSuffix(dry bool) string {
	if dry {
		return " (dry-run)"
	}
	return ""
}
