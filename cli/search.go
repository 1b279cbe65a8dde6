package cli

import (
	"context"
	"fmt"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/search"
)

const searchUsage = `Usage: pipedrive search <entity> [options]

Filter, select and format records.

Options:
  -s EXPR     Filter expression; records where it is true are kept
  -o FIELDS   Comma-separated fields to show (fuzzy names or keys)
  -x FIELDS   Comma-separated fields to hide from the default set
  -k          Show field keys instead of display names in headers
  -f FORMAT   Output format: table, json, csv (default from config)
  -l N        Stop after N matching records
  -n          Print only the match count
  -q          Quiet: no filter echo, just results
  --local     Read the local store instead of the API
  -c PATH     Config file

Examples:
  pipedrive search persons -s 'notnull(email) and open_deals_count > 0'
  pipedrive search org -o 'name,people count' -f csv
`

func searchCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "search")
	filterText := fs.String("s", "", "filter expression")
	include := fs.String("o", "", "fields to show")
	exclude := fs.String("x", "", "fields to hide")
	useKeys := fs.Bool("k", false, "show keys, not names")
	format := fs.String("f", "", "output format")
	limit := fs.Int("l", 0, "result limit")
	countOnly := fs.Bool("n", false, "count only")
	quiet := fs.Bool("q", false, "quiet")
	local := fs.Bool("local", false, "use local store")
	fs.Usage = func() { fmt.Fprint(app.Stderr, searchUsage) }

	pos, rest := takePositionals(args, 1)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 1 || fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("search needs exactly one entity argument")
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

	src, err := app.openSource(ctx, pos[0], *local)
	if err != nil {
		return err
	}

	var filter *fieldexpr.Resolved
	if *filterText != "" {
		filter, err = app.resolveExpr(*filterText, fieldexpr.Filter, src)
		if err != nil {
			return err
		}
		if !*quiet {
			fmt.Fprintf(app.Stdout, "filter: %s\n", filter.NameForm)
		}
	}

	cols, err := search.SelectColumns(src.sch, src.entity.Name, splitList(*include), splitList(*exclude))
	if err != nil {
		return err
	}

	records, err := src.Records(ctx)
	if err != nil {
		return err
	}
	matched, err := search.FilterRecords(filter, records, src.Typed, *limit)
	if err != nil {
		return err
	}

	if *countOnly {
		fmt.Fprintf(app.Stdout, "%d\n", len(matched))
		return nil
	}

	switch *format {
	case "json":
		err = search.WriteJSON(app.Stdout, src.sch, cols, *useKeys, matched)
	case "csv":
		err = search.WriteCSV(app.Stdout, src.sch, cols, *useKeys, matched)
	default:
		headers := search.Headers(src.sch, cols, *useKeys)
		rows := search.Rows(src.sch, cols, matched, true)
		err = search.WriteTable(app.Stdout, headers, rows)
		if err == nil && !*quiet {
			fmt.Fprintf(app.Stdout, "%d of %d %s\n", len(matched), len(records), src.describe())
		}
	}
	return err
}
