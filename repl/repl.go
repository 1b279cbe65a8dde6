// Package repl is an interactive expression console bound to one
// entity schema and a sample record: type an expression, see what it
// resolves to and what it evaluates to, before running it for real.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/evaluator"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

const prompt = ">> "

// Session is one REPL bound to a schema and a mutable sample record.
type Session struct {
	Entity string
	Schema *schema.Schema
	Sample map[string]string
	Limits fieldexpr.Limits

	mode fieldexpr.Mode
	last *fieldexpr.Resolved

	// Reload is polled between lines; when set and it reports a
	// change, the session swaps in the new schema and sample.
	// Wired to an fsnotify watcher by the caller.
	Reload func() (*schema.Schema, map[string]string, bool)
}

// Start runs the session until exit or EOF.
func (s *Session) Start(out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	historyFile := filepath.Join(os.TempDir(), ".pipedrive_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	s.mode = fieldexpr.Filter

	fmt.Fprintf(out, "pipedrive expression console — %s (%d fields)\n", s.Entity, s.Schema.Len())
	fmt.Fprintln(out, "Type an expression, :help for commands, 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "")

	for {
		if s.Reload != nil {
			if sch, sample, changed := s.Reload(); changed {
				s.Schema, s.Sample = sch, sample
				fmt.Fprintf(out, "(schema reloaded: %d fields)\n", sch.Len())
			}
		}

		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			fmt.Fprintln(out, "")
			return
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			return
		case strings.HasPrefix(input, ":"):
			line.AppendHistory(input)
			if s.command(out, input) {
				return
			}
			continue
		}

		line.AppendHistory(input)
		s.eval(out, input)
	}
}

// eval resolves and evaluates one expression against the sample.
func (s *Session) eval(out io.Writer, input string) {
	expr, err := fieldexpr.Resolve(input, s.mode, s.Schema, s.Limits)
	if err != nil {
		fmt.Fprintln(out, err.Annotate(input))
		return
	}
	s.last = expr

	fmt.Fprintf(out, "   names: %s\n", expr.NameForm)
	fmt.Fprintf(out, "   keys:  %s\n", expr.KeyForm)

	rec := fieldexpr.StringRecord(s.Sample)
	if s.mode == fieldexpr.Transform {
		key, val, eerr := expr.EvalAssignment(rec)
		if eerr != nil {
			fmt.Fprintln(out, eerr.Annotate(input))
			return
		}
		fmt.Fprintf(out, "=> %s = %s\n", key, val.Inspect())
		return
	}
	val, eerr := expr.Evaluate(rec)
	if eerr != nil {
		fmt.Fprintln(out, eerr.Annotate(input))
		return
	}
	fmt.Fprintf(out, "=> %s\n", val.Inspect())
}

// command handles one :colon command; returns true to exit.
func (s *Session) command(out io.Writer, input string) bool {
	parts := strings.Fields(input)
	switch parts[0] {
	case ":q", ":quit", ":exit":
		return true
	case ":help":
		fmt.Fprint(out, `Commands:
  :mode filter|transform   switch grammar
  :fields [prefix]         list schema fields
  :set <field> <value>     edit the sample record
  :sample                  show the sample record
  :render                  show both forms of the last expression
  :q                       quit
`)
	case ":mode":
		if len(parts) != 2 {
			fmt.Fprintf(out, "mode: %s\n", s.modeName())
			break
		}
		switch parts[1] {
		case "filter":
			s.mode = fieldexpr.Filter
		case "transform":
			s.mode = fieldexpr.Transform
		default:
			fmt.Fprintln(out, "usage: :mode filter|transform")
		}
	case ":fields":
		prefix := ""
		if len(parts) > 1 {
			prefix = strings.ToLower(parts[1])
		}
		for _, f := range s.Schema.Fields() {
			if prefix != "" && !strings.HasPrefix(strings.ToLower(f.Key), prefix) &&
				!strings.HasPrefix(strings.ToLower(f.Name), prefix) {
				continue
			}
			fmt.Fprintf(out, "  %-44s %-12s %s\n", f.Key, f.Type, f.Name)
		}
	case ":set":
		if len(parts) < 3 {
			fmt.Fprintln(out, "usage: :set <field> <value>")
			break
		}
		f, err := s.Schema.MatchField(parts[1])
		if err != nil {
			fmt.Fprintln(out, err)
			break
		}
		s.Sample[f.Key] = strings.Join(parts[2:], " ")
		fmt.Fprintf(out, "%s = %q\n", f.Key, s.Sample[f.Key])
	case ":sample":
		keys := make([]string, 0, len(s.Sample))
		for key := range s.Sample {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(out, "  %s = %q\n", key, s.Sample[key])
		}
	case ":render":
		if s.last == nil {
			fmt.Fprintln(out, "no expression yet")
			break
		}
		fmt.Fprintf(out, "   names: %s\n", s.last.NameForm)
		fmt.Fprintf(out, "   keys:  %s\n", s.last.KeyForm)
	default:
		fmt.Fprintf(out, "unknown command %s (:help for help)\n", parts[0])
	}
	return false
}

func (s *Session) modeName() string {
	if s.mode == fieldexpr.Transform {
		return "transform"
	}
	return "filter"
}

// complete offers field names, field keys and function names for the
// trailing word.
func (s *Session) complete(line string) []string {
	start := strings.LastIndexAny(line, " (,")
	head, word := line[:start+1], line[start+1:]
	if word == "" {
		return nil
	}

	lower := strings.ToLower(word)
	var words []string
	for _, f := range s.Schema.Fields() {
		words = append(words, f.Key)
		// Display names complete in identifier spelling
		words = append(words, strings.ReplaceAll(strings.ToLower(f.Name), " ", "_"))
	}
	words = append(words, evaluator.BuiltinNames()...)
	words = append(words, "and", "or", "not", "true", "false", "null")

	var out []string
	seen := make(map[string]bool)
	for _, w := range words {
		if strings.HasPrefix(strings.ToLower(w), lower) && !seen[w] {
			seen[w] = true
			out = append(out, head+w)
		}
	}
	sort.Strings(out)
	return out
}
