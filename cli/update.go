package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/transform"
)

const updateUsage = `Usage: pipedrive update <entity> -t 'field = expr' [options]

Apply a field transform to every record, optionally gated by a filter.
The resolved expression echoes back (display names and raw keys)
before anything is written; confirm or pass -y.

Options:
  -t EXPR     Assignment to apply, e.g. 'phone = strip(phone)'
  -s EXPR     Only transform records where this filter is true
  -n          Dry run: report what would change, write nothing
  -l N        Stop after N records are updated
  -y          Skip the confirmation prompt
  -q          Quiet: summary only
  --local     Write the local store instead of the API
  -c PATH     Config file

Examples:
  pipedrive update persons -t 'name = trim(name)' -s 'name != trim(name)'
  pipedrive update deals -t 'currency = "EUR"' -s 'isnull(currency)' -n
`

func updateCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "update")
	assignText := fs.String("t", "", "assignment expression")
	filterText := fs.String("s", "", "filter expression")
	dryRun := fs.Bool("n", false, "dry run")
	limit := fs.Int("l", 0, "update limit")
	yes := fs.Bool("y", false, "skip confirmation")
	quiet := fs.Bool("q", false, "quiet")
	local := fs.Bool("local", false, "use local store")
	fs.Usage = func() { fmt.Fprint(app.Stderr, updateUsage) }

	pos, rest := takePositionals(args, 1)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 1 || *assignText == "" {
		fs.Usage()
		return fmt.Errorf("update needs an entity argument and a -t expression")
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

	assign, err := app.resolveExpr(*assignText, fieldexpr.Transform, src)
	if err != nil {
		return err
	}
	var filter *fieldexpr.Resolved
	if *filterText != "" {
		filter, err = app.resolveExpr(*filterText, fieldexpr.Filter, src)
		if err != nil {
			return err
		}
	}

	if target, ok := src.sch.ByKey(assign.TargetKey()); ok && target.ReadOnly() {
		return fmt.Errorf("field %s (%s) is read-only", target.Name, target.Key)
	}

	if !*quiet {
		fmt.Fprintf(app.Stdout, "transform: %s\n", assign.NameForm)
		fmt.Fprintf(app.Stdout, "     keys: %s\n", assign.KeyForm)
		if filter != nil {
			fmt.Fprintf(app.Stdout, "    where: %s\n", filter.NameForm)
		}
	}
	if !*dryRun {
		if !app.confirm(fmt.Sprintf("Update %s?", src.describe()), *yes) {
			fmt.Fprintln(app.Stdout, "aborted")
			return nil
		}
	}

	records, err := src.Records(ctx)
	if err != nil {
		return err
	}
	apply, flush, err := src.Applier(ctx)
	if err != nil {
		return err
	}

	var changes *transform.ChangesLog
	if app.Config.ChangesLog.Path != "" {
		log, closeLog, err := transform.OpenChangesLog(app.Config.ChangesLog.Path, app.Config.ChangesLog.Format)
		if err != nil {
			return err
		}
		defer closeLog()
		changes = log
	}

	u := &transform.Update{
		Entity: src.entity.Name,
		Schema: src.sch,
		Assign: assign,
		Filter: filter,
		DryRun: *dryRun,
		Limit:  *limit,
		Log:    changes,
	}
	stats, runErr := u.Run(records, src.Typed, transform.Applier(apply))
	if runErr == nil && !*dryRun {
		runErr = flush()
	}

	printUpdateStats(app, stats, *dryRun)

	app.appendHistory(audit.Run{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Command:    "update",
		Entity:     src.entity.Name,
		Expression: assign.KeyForm,
		Filter:     keyFormOrEmpty(filter),
		Updated:    stats.Updated,
		Skipped:    stats.Skipped,
		Failed:     stats.Failed,
		DryRun:     *dryRun,
	})
	return runErr
}

func printUpdateStats(app *App, stats transform.Stats, dryRun bool) {
	verb := "updated"
	if dryRun {
		verb = "would update"
	}
	fmt.Fprintf(app.Stdout, "%d scanned, %d matched, %d %s, %d skipped, %d failed\n",
		stats.Total, stats.Matched, stats.Updated, verb, stats.Skipped, stats.Failed)
	for _, re := range stats.Errors {
		fmt.Fprintf(app.Stderr, "record %s: %v\n", re.RecordID, re.Err)
	}
}

func keyFormOrEmpty(expr *fieldexpr.Resolved) string {
	if expr == nil {
		return ""
	}
	return expr.KeyForm
}
