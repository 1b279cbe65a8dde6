package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lmzr/pipedrive-cli/duplicates"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/search"
)

const dedupeUsage = `Usage: pipedrive dedupe <entity> -s <key expr> [options]

Group records sharing a dedup key and report the groups, largest
first. The key is any expression: a field, or a normalization like
'lower(trim(email))'. Nothing is merged or deleted.

Options:
  -s EXPR          Dedup key expression (required)
  -o FIELDS        Comma-separated fields to show per record
  --include-null   Also report the group of records with a null key
  --min N          Only report groups of at least N records (default 2)
  -f FORMAT        Output format: table, json
  -q               Quiet: no key echo
  --local          Read the local store instead of the API
  -c PATH          Config file

Examples:
  pipedrive dedupe persons -s 'lower(email)'
  pipedrive dedupe org -s 'lower(strip(name))' --min 3
`

func dedupeCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "dedupe")
	keyText := fs.String("s", "", "dedup key expression")
	include := fs.String("o", "", "fields to show")
	includeNull := fs.Bool("include-null", false, "report null-key group")
	minSize := fs.Int("min", 2, "minimum group size")
	format := fs.String("f", "", "output format")
	quiet := fs.Bool("q", false, "quiet")
	local := fs.Bool("local", false, "use local store")
	fs.Usage = func() { fmt.Fprint(app.Stderr, dedupeUsage) }

	pos, rest := takePositionals(args, 1)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 1 || *keyText == "" {
		fs.Usage()
		return fmt.Errorf("dedupe needs an entity argument and a -s key expression")
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}
	if *format == "" {
		*format = app.Config.Output.Format
	}

	src, err := app.openSource(ctx, pos[0], *local)
	if err != nil {
		return err
	}
	key, err := app.resolveExpr(*keyText, fieldexpr.Filter, src)
	if err != nil {
		return err
	}
	if !*quiet && *format != "json" {
		fmt.Fprintf(app.Stdout, "dedup key: %s\n", key.NameForm)
	}

	cols, err := search.SelectColumns(src.sch, src.entity.Name, splitList(*include), nil)
	if err != nil {
		return err
	}

	records, err := src.Records(ctx)
	if err != nil {
		return err
	}
	groups, err := duplicates.Find(key, records, src.Typed, duplicates.Options{
		IncludeNull: *includeNull,
		MinSize:     *minSize,
	})
	if err != nil {
		return err
	}

	if *format == "json" {
		return writeGroupsJSON(app, groups)
	}

	dupes := 0
	for _, g := range groups {
		fmt.Fprintf(app.Stdout, "\n%s  (%d records)\n", g.Key, len(g.Records))
		headers := search.Headers(src.sch, cols, false)
		rows := search.Rows(src.sch, cols, g.Records, true)
		if err := search.WriteTable(app.Stdout, headers, rows); err != nil {
			return err
		}
		dupes += len(g.Records)
	}
	if !*quiet {
		fmt.Fprintf(app.Stdout, "\n%d groups, %d records involved\n", len(groups), dupes)
	}
	return nil
}

func writeGroupsJSON(app *App, groups []duplicates.Group) error {
	type jsonGroup struct {
		Key     string   `json:"key"`
		Records []string `json:"record_ids"`
	}
	out := make([]jsonGroup, 0, len(groups))
	for _, g := range groups {
		jg := jsonGroup{Key: g.Key}
		for _, rec := range g.Records {
			jg.Records = append(jg.Records, rec["id"])
		}
		out = append(out, jg)
	}
	enc := json.NewEncoder(app.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
