package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/converter"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

const convertUsage = `Usage: pipedrive convert <entity> <field> <type> [options]

Convert a field's storage type in the local store: parse every cell
into the target type and, when every cell parses, switch the field's
declared type. Failed cells keep their old value and the type stays,
so a half-converted column never looks clean.

Types: varchar, int, double, date, enum, set

Date parsing tries ISO and common formats first, then month names in
the configured locale (config: locale, e.g. fr_FR for 'janvier').
Enum and set conversion maps cell values onto option labels.

Options:
  -n          Dry run: report what would convert, write nothing
  -y          Skip the confirmation prompt
  -c PATH     Config file

Examples:
  pipedrive convert persons 'contract date' date
  pipedrive convert deals 'lead source' enum -n
`

func convertCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "convert")
	dryRun := fs.Bool("n", false, "dry run")
	yes := fs.Bool("y", false, "skip confirmation")
	fs.Usage = func() { fmt.Fprint(app.Stderr, convertUsage) }

	pos, rest := takePositionals(args, 3)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 3 {
		fs.Usage()
		return fmt.Errorf("convert needs entity, field and target type arguments")
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}

	targetType := pos[2]
	if !schema.ValidType(targetType) {
		return fmt.Errorf("unknown target type %q (one of: varchar, int, double, date, enum, set)", targetType)
	}

	src, err := app.openSource(ctx, pos[0], true)
	if err != nil {
		return err
	}
	f, err := src.sch.MatchField(pos[1])
	if err != nil {
		return err
	}
	if f.Type == targetType {
		return fmt.Errorf("field %s (%s) already has type %s", f.Name, f.Key, targetType)
	}

	fmt.Fprintf(app.Stdout, "convert: %s (%s) %s -> %s\n", f.Name, f.Key, f.Type, targetType)
	if !*dryRun {
		if !app.confirm("Convert?", *yes) {
			fmt.Fprintln(app.Stdout, "aborted")
			return nil
		}
	}

	records, err := src.Records(ctx)
	if err != nil {
		return err
	}

	// Dry runs convert a throwaway copy so the store never changes.
	target := records
	sch := src.sch
	if *dryRun {
		target = copyRecords(records)
		sch = schema.New(src.sch.Fields())
	}

	stats, err := converter.Convert(sch, target, f.Key, targetType, app.Config.Locale)
	if err != nil {
		return err
	}

	if !*dryRun && stats.Failed == 0 {
		if err := src.st.WriteRecords(src.entity.Name, records); err != nil {
			return err
		}
		if err := src.st.Save(); err != nil {
			return err
		}
	}

	verb := "converted"
	if *dryRun {
		verb = "would convert"
	}
	fmt.Fprintf(app.Stdout, "%d %s, %d skipped, %d failed\n", stats.Converted, verb, stats.Skipped, stats.Failed)
	for _, sample := range stats.Samples {
		fmt.Fprintf(app.Stderr, "  %s\n", sample)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(app.Stdout, "type unchanged: %d cells did not parse as %s\n", stats.Failed, targetType)
	}

	app.appendHistory(audit.Run{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Command:    "convert",
		Entity:     src.entity.Name,
		Expression: fmt.Sprintf("%s -> %s", f.Key, targetType),
		Updated:    stats.Converted,
		Skipped:    stats.Skipped,
		Failed:     stats.Failed,
		DryRun:     *dryRun,
	})
	return nil
}

func copyRecords(records []map[string]string) []map[string]string {
	out := make([]map[string]string, len(records))
	for i, rec := range records {
		cp := make(map[string]string, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}
