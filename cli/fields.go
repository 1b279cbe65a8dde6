package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/lmzr/pipedrive-cli/converter"
	"github.com/lmzr/pipedrive-cli/search"
)

const fieldsUsage = `Usage: pipedrive fields <entity> [prefix] [options]

List an entity's field schema: keys, display names, types, and option
labels. A prefix argument narrows the list the same way identifiers
resolve in expressions.

Options:
  --usage FIELD   Show how often each option of FIELD is used, and
                  which values match no option
  --sync FIELD    Add options for values of FIELD that match none
                  (writes to the API, or to the store with --local)
  -y              Skip the confirmation prompt for --sync
  --local         Read the local store instead of the API
  -c PATH         Config file

Examples:
  pipedrive fields persons
  pipedrive fields deals stage
  pipedrive fields persons --usage 'lead source' --local
`

func fieldsCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "fields")
	usageField := fs.String("usage", "", "show option usage for a field")
	syncField := fs.String("sync", "", "add missing options for a field")
	yes := fs.Bool("y", false, "skip confirmation")
	local := fs.Bool("local", false, "use local store")
	fs.Usage = func() { fmt.Fprint(app.Stderr, fieldsUsage) }

	pos, rest := takePositionals(args, 2)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) < 1 {
		fs.Usage()
		return fmt.Errorf("fields needs an entity argument")
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}

	src, err := app.openSource(ctx, pos[0], *local)
	if err != nil {
		return err
	}

	switch {
	case *usageField != "":
		return fieldOptionUsage(ctx, app, src, *usageField)
	case *syncField != "":
		return fieldOptionSync(ctx, app, src, *syncField, *yes)
	}
	prefix := ""
	if len(pos) == 2 {
		prefix = pos[1]
	}
	return listFields(app, src, prefix)
}

func listFields(app *App, src *source, prefix string) error {
	fields := src.sch.Fields()
	if prefix != "" {
		fields = src.sch.MatchFields(prefix)
		if len(fields) == 0 {
			return fmt.Errorf("no %s field matches %q", src.entity.Name, prefix)
		}
	}

	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		extra := ""
		if f.HasOptions() {
			labels := make([]string, 0, len(f.Options))
			for _, o := range f.Options {
				labels = append(labels, o.Label)
			}
			extra = strings.Join(labels, ", ")
		}
		if f.ReadOnly() {
			if extra != "" {
				extra += " "
			}
			extra += "(read-only)"
		}
		rows = append(rows, []string{f.Key, f.Name, f.Type, extra})
	}
	return search.WriteTable(app.Stdout, []string{"key", "name", "type", ""}, rows)
}

func fieldOptionUsage(ctx context.Context, app *App, src *source, fieldArg string) error {
	f, err := src.sch.MatchField(fieldArg)
	if err != nil {
		return err
	}
	records, err := src.Records(ctx)
	if err != nil {
		return err
	}

	counts, missing := converter.OptionUsage(f, records)
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		known := ""
		if !c.Known {
			known = "NO MATCHING OPTION"
		}
		rows = append(rows, []string{c.Label, fmt.Sprintf("%d", c.ID), fmt.Sprintf("%d", c.Count), known})
	}
	if err := search.WriteTable(app.Stdout, []string{"option", "id", "count", ""}, rows); err != nil {
		return err
	}
	if len(missing) > 0 {
		fmt.Fprintf(app.Stdout, "\n%d values match no option (run 'pipedrive fields %s --sync %q' to add them)\n",
			len(missing), src.entity.Name, fieldArg)
	}
	return nil
}

func fieldOptionSync(ctx context.Context, app *App, src *source, fieldArg string, yes bool) error {
	f, err := src.sch.MatchField(fieldArg)
	if err != nil {
		return err
	}
	if !f.HasOptions() {
		return fmt.Errorf("field %s (%s) has no options to sync", f.Name, f.Key)
	}
	records, err := src.Records(ctx)
	if err != nil {
		return err
	}
	_, missing := converter.OptionUsage(f, records)
	if len(missing) == 0 {
		fmt.Fprintf(app.Stdout, "all values of %s match an option, nothing to add\n", f.Name)
		return nil
	}

	fmt.Fprintf(app.Stdout, "%d options to add to %s: %s\n", len(missing), f.Name, strings.Join(missing, ", "))
	if !app.confirm("Add them?", yes) {
		fmt.Fprintln(app.Stdout, "aborted")
		return nil
	}

	added := converter.AddMissingOptions(src.sch, f.Key, missing)
	if src.local {
		if err := src.st.Save(); err != nil {
			return err
		}
		fmt.Fprintf(app.Stdout, "added %d options to the local store\n", len(added))
		return nil
	}

	// The options endpoint needs the field's numeric id, which the
	// regular schema fetch drops.
	client, err := app.client()
	if err != nil {
		return err
	}
	_, ids, err := client.FieldsWithIDs(ctx, src.entity)
	if err != nil {
		return err
	}
	fieldID, ok := ids[f.Key]
	if !ok {
		return fmt.Errorf("field %s has no API id (is it a local field?)", f.Key)
	}
	full, _ := src.sch.ByKey(f.Key)
	if err := client.UpdateFieldOptions(ctx, src.entity, fieldID, full.Options); err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "added %d options via the API\n", len(added))
	return nil
}
