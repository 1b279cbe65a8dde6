package cli

import (
	"context"
	"fmt"

	"github.com/lmzr/pipedrive-cli/repl"
)

const replUsage = `Usage: pipedrive repl <entity> [options]

Interactive expression console: type an expression, see how it
resolves (display names and raw keys) and what it evaluates to
against a sample record. :help inside the session lists commands.

With --local the session watches the store on disk and picks up
schema or data changes between prompts.

Options:
  --local     Use the local store's schema and sample record
  -c PATH     Config file
`

func replCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "repl")
	local := fs.Bool("local", false, "use local store")
	fs.Usage = func() { fmt.Fprint(app.Stderr, replUsage) }

	pos, rest := takePositionals(args, 1)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if len(pos) != 1 {
		fs.Usage()
		return fmt.Errorf("repl needs exactly one entity argument")
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}

	src, err := app.openSource(ctx, pos[0], *local)
	if err != nil {
		return err
	}

	// Sample record for evaluation; an empty schema-shaped record when
	// the source has no data.
	sample := map[string]string{}
	records, err := src.Records(ctx)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		sample = records[0]
	}

	session := &repl.Session{
		Entity: src.entity.Name,
		Schema: src.sch,
		Sample: sample,
		Limits: app.limits(),
	}

	if *local {
		reload, closeWatch, ok := repl.WatchStore(app.Config.Store.Dir, src.entity.Name)
		if ok {
			session.Reload = reload
			defer closeWatch()
		}
	}

	session.Start(app.Stdout)
	return nil
}
