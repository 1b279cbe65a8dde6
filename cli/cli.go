// Package cli is the command layer: argument parsing, confirmation
// prompts, and the wiring between the expression engine and its data
// sources. Engine and pipeline packages stay I/O-free; process
// concerns live here.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/lmzr/pipedrive-cli/api"
	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/config"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/store"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

// App carries the per-invocation state every command shares.
type App struct {
	Config *config.Config
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run dispatches one command invocation.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) == 0 {
		printUsage(stdout)
		return nil
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	case "version", "-V", "--version":
		fmt.Fprintf(stdout, "pipedrive-cli version %s\n", Version)
		return nil
	}

	app := &App{Stdin: stdin, Stdout: stdout, Stderr: stderr}

	run, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q (run 'pipedrive help')", command)
	}
	return run(ctx, app, rest, getenv)
}

// commands maps command names onto their implementations. Each parses
// its own flags; the -c config flag repeats per command so it works in
// any position.
var commands = map[string]func(context.Context, *App, []string, func(string) string) error{
	"search":  searchCommand,
	"update":  updateCommand,
	"delete":  deleteCommand,
	"dedupe":  dedupeCommand,
	"fields":  fieldsCommand,
	"convert": convertCommand,
	"copy":    copyCommand,
	"backup":  backupCommand,
	"restore": restoreCommand,
	"export":  exportCommand,
	"import":  importCommand,
	"diff":    diffCommand,
	"repl":    replCommand,
	"history": historyCommand,
}

// takePositionals splits the leading non-flag arguments off, so
// commands accept 'search persons --local' with the entity in front.
// flag.Parse alone would stop at the first positional.
func takePositionals(args []string, max int) (pos, rest []string) {
	for len(args) > 0 && max != 0 && !strings.HasPrefix(args[0], "-") {
		pos = append(pos, args[0])
		args = args[1:]
		max--
	}
	return pos, args
}

// newFlagSet builds a command FlagSet with the global -c flag wired.
func newFlagSet(app *App, name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.Stderr)
	configPath := fs.String("c", "", "Path to config file")
	return fs, configPath
}

// loadConfig finishes App setup once flags are parsed.
func (a *App) loadConfig(configPath string, getenv func(string) string) error {
	cfg, err := config.Load(configPath, getenv)
	if err != nil {
		return err
	}
	a.Config = cfg
	return nil
}

// client builds the API client, failing early when no token is
// configured.
func (a *App) client() (*api.Client, error) {
	if a.Config.API.Token == "" {
		return nil, errors.New("no API token (set api.token in pipedrive.yaml or PIPEDRIVE_API_TOKEN)")
	}
	limiter := api.NewRateLimiter(a.Config.API.RateLimit.Requests, a.Config.API.RateLimit.Window)
	return api.New(a.Config.API.BaseURL, a.Config.API.Token, limiter), nil
}

// openStore loads the configured datapackage.
func (a *App) openStore() (*store.Store, error) {
	st, err := store.Load(a.Config.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("no local store at %s (run 'pipedrive backup' first): %w", a.Config.Store.Dir, err)
	}
	return st, nil
}

// limits returns the engine safety limits from config.
func (a *App) limits() fieldexpr.Limits {
	return fieldexpr.Limits{
		MaxLength: a.Config.Engine.MaxLength,
		MaxDepth:  a.Config.Engine.MaxDepth,
	}
}

// resolveExpr compiles an expression, rendering engine errors with
// their caret annotation.
func (a *App) resolveExpr(text string, mode fieldexpr.Mode, sch SchemaHolder) (*fieldexpr.Resolved, error) {
	expr, err := fieldexpr.Resolve(text, mode, sch.FieldSchema(), a.limits())
	if err != nil {
		return nil, errors.New(err.Annotate(text))
	}
	return expr, nil
}

// confirm asks the user to proceed; yes short-circuits for -y flags
// and scripts.
func (a *App) confirm(prompt string, yes bool) bool {
	if yes {
		return true
	}
	fmt.Fprintf(a.Stdout, "%s [y/N] ", prompt)
	var answer string
	fmt.Fscanln(a.Stdin, &answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}

// appendHistory records a mutating run, best-effort: history failures
// warn and never fail the command they describe.
func (a *App) appendHistory(run audit.Run) {
	log, err := audit.Open(a.Config.History)
	if err != nil {
		fmt.Fprintf(a.Stderr, "warning: history not recorded: %v\n", err)
		return
	}
	defer log.Close()
	if err := log.Append(run); err != nil {
		fmt.Fprintf(a.Stderr, "warning: history not recorded: %v\n", err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `pipedrive - Pipedrive CRM data tool version %s

Usage:
  pipedrive <command> [options]

Commands:
  search   <entity>                     filter, select and format records
  update   <entity> -t 'field = expr'   apply a transform to records
  delete   <entity> -s <filter>         delete the records a filter matches
  dedupe   <entity> -s <key expr>       group records by a dedup key
  fields   <entity> [prefix]            list and inspect field schemas
  convert  <entity> <field> <type>      convert a field's storage type (local store)
  copy     <entity> <from> <to>         copy values between fields (local store)
  backup   [entity...]                  snapshot entities into the local store
  restore                               push the local store back to the API
  export   <dsn>                        mirror the local store into a SQL database
  import   <entity> <file.csv>          merge CSV rows into the local store
  diff     <old-dir> <new-dir>          compare two local datapackages
  repl     <entity>                     interactive expression console
  history                               show past mutating runs
  help                                  show this help
  version                               show version

Most commands take --local to read the local store instead of the API,
and -c PATH to name a config file (default: ./pipedrive.yaml).

Examples:
  pipedrive search persons -s 'notnull(email) and open_deals_count > 0'
  pipedrive update persons -t 'phone = strip(phone)' -s 'notnull(phone)' -n
  pipedrive dedupe persons -s 'lower(email)'
  pipedrive backup && pipedrive export sqlite:crm.db

`, Version)
}
