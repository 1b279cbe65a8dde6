// Package resolver binds the raw identifiers of a parsed expression to
// schema fields. Parsing never consults the schema; resolution is the
// single step that does, and it replaces every ast.Identifier and
// field() lookup with an ast.FieldRef before evaluation.
package resolver

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/ast"
	perrors "github.com/lmzr/pipedrive-cli/pkg/fieldexpr/errors"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/evaluator"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/parser"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// Binding records one identifier occurrence bound to a schema field,
// in source order. The CLI shows these when confirming an expression.
type Binding struct {
	Identifier string `json:"identifier"`
	Key        string `json:"key"`
	Name       string `json:"name"`
	Offset     int    `json:"offset"`
}

// Resolver resolves identifiers against one schema snapshot. Folded
// lookup tables are built once, so a Resolver must be created after
// the schema is final for the command.
type Resolver struct {
	schema *schema.Schema
	mode   parser.Mode

	fields      []schema.Field
	foldedKeys  []string
	foldedNames []string
	names       []string
	pool        []string // names then keys, for suggestions

	bindings []Binding
}

// New builds a Resolver for one schema and expression mode.
func New(s *schema.Schema, mode parser.Mode) *Resolver {
	fields := s.Fields()
	r := &Resolver{
		schema:      s,
		mode:        mode,
		fields:      fields,
		foldedKeys:  make([]string, len(fields)),
		foldedNames: make([]string, len(fields)),
		names:       make([]string, len(fields)),
		pool:        make([]string, 0, 2*len(fields)),
	}
	for i, f := range fields {
		r.foldedKeys[i] = fold(f.Key)
		r.foldedNames[i] = fold(f.Name)
		r.names[i] = f.Name
	}
	r.pool = append(r.pool, r.names...)
	r.pool = append(r.pool, s.Keys()...)
	return r
}

// Resolve walks expr, replacing identifiers and field() lookups with
// field references and validating every call against the catalog. The
// returned expression shares nodes with the input. On failure the
// input must be discarded: it may be partially rewritten.
func (r *Resolver) Resolve(expr ast.Expression) (ast.Expression, []Binding, *perrors.ExprError) {
	r.bindings = r.bindings[:0]
	resolved, err := r.resolveExpr(expr)
	if err != nil {
		return nil, nil, err
	}
	bindings := make([]Binding, len(r.bindings))
	copy(bindings, r.bindings)
	return resolved, bindings, nil
}

func (r *Resolver) resolveExpr(node ast.Expression) (ast.Expression, *perrors.ExprError) {
	switch n := node.(type) {
	case *ast.Identifier:
		return r.resolveIdentifier(n)

	case *ast.PrefixExpression:
		right, err := r.resolveExpr(n.Right)
		if err != nil {
			return nil, err
		}
		n.Right = right
		return n, nil

	case *ast.InfixExpression:
		left, err := r.resolveExpr(n.Left)
		if err != nil {
			return nil, err
		}
		n.Left = left
		right, err := r.resolveExpr(n.Right)
		if err != nil {
			return nil, err
		}
		n.Right = right
		return n, nil

	case *ast.CallExpression:
		return r.resolveCall(n)

	case *ast.Assignment:
		target, err := r.resolveExpr(n.Target)
		if err != nil {
			return nil, err
		}
		if _, ok := target.(*ast.FieldRef); !ok {
			return nil, perrors.NewWithOffset("PARSE-0008", n.Target.Offset(), map[string]any{
				"Got": n.Target.String(),
			})
		}
		n.Target = target
		value, err := r.resolveExpr(n.Value)
		if err != nil {
			return nil, err
		}
		n.Value = value
		return n, nil

	default:
		// Literals and already-resolved field references.
		return node, nil
	}
}

// resolveIdentifier applies the staged matching rules. Digit-led
// identifiers only ever match keys; everything else tries keys first,
// then display names.
func (r *Resolver) resolveIdentifier(ident *ast.Identifier) (ast.Expression, *perrors.ExprError) {
	text := ident.Value

	// A leading underscore before a digit is the explicit escape for
	// digit-led keys: _25 means the key fragment 25.
	if len(text) > 1 && text[0] == '_' && isASCIIDigit(text[1]) {
		return r.bindKeyFragment(ident, text[1:])
	}

	// Digit-led identifiers that look like a hash fragment (25da23)
	// match keys directly. Other digit-led forms match nothing: pure
	// digits never reach the resolver, the lexer reads them as numbers.
	if isASCIIDigit(text[0]) {
		if strings.ContainsAny(strings.ToLower(text), "abcdef") {
			return r.bindKeyFragment(ident, text)
		}
		return nil, perrors.NewUnresolvedField(text, ident.Offset(), r.pool)
	}

	return r.bindOrdinary(ident)
}

// bindKeyFragment matches fragment against field keys only: an exact
// key wins outright, otherwise the prefix must be unique.
func (r *Resolver) bindKeyFragment(ident *ast.Identifier, fragment string) (ast.Expression, *perrors.ExprError) {
	folded := fold(fragment)
	var hits []int
	for i, key := range r.foldedKeys {
		if key == folded {
			return r.bind(ident, r.fields[i]), nil
		}
		if strings.HasPrefix(key, folded) {
			hits = append(hits, i)
		}
	}
	return r.finish(ident, hits)
}

// bindOrdinary runs the four-stage lookup: exact key, unique key
// prefix, exact name, unique name prefix. A stage with several hits
// fails as ambiguous; a stage with none falls through to the next.
func (r *Resolver) bindOrdinary(ident *ast.Identifier) (ast.Expression, *perrors.ExprError) {
	text := ident.Value

	if f, ok := r.schema.ByKey(text); ok {
		return r.bind(ident, f), nil
	}

	folded := fold(text)
	// Underscores stand in for spaces when matching display names:
	// won_time matches the name "Won time".
	spaced := strings.ReplaceAll(folded, "_", " ")

	var hits []int
	for i, key := range r.foldedKeys {
		if strings.HasPrefix(key, folded) {
			hits = append(hits, i)
		}
	}
	if len(hits) > 0 {
		return r.finish(ident, hits)
	}

	for i, name := range r.foldedNames {
		if name == spaced {
			hits = append(hits, i)
		}
	}
	if len(hits) > 0 {
		return r.finish(ident, hits)
	}

	for i, name := range r.foldedNames {
		if strings.HasPrefix(name, spaced) {
			hits = append(hits, i)
		}
	}
	return r.finish(ident, hits)
}

func (r *Resolver) finish(ident *ast.Identifier, hits []int) (ast.Expression, *perrors.ExprError) {
	switch len(hits) {
	case 1:
		return r.bind(ident, r.fields[hits[0]]), nil
	case 0:
		return nil, perrors.NewUnresolvedField(ident.Value, ident.Offset(), r.pool)
	default:
		keys := make([]string, len(hits))
		for i, idx := range hits {
			keys[i] = r.fields[idx].Key
		}
		return nil, perrors.NewAmbiguousField(ident.Value, ident.Offset(), keys)
	}
}

func (r *Resolver) bind(ident *ast.Identifier, f schema.Field) ast.Expression {
	r.bindings = append(r.bindings, Binding{
		Identifier: ident.Value,
		Key:        f.Key,
		Name:       f.Name,
		Offset:     ident.Offset(),
	})
	return &ast.FieldRef{Token: ident.Token, Key: f.Key, Name: f.Name}
}

// resolveCall validates a call against the catalog and resolves its
// arguments. field() is not a runtime function: it is rewritten here
// into a FieldRef and never reaches the evaluator.
func (r *Resolver) resolveCall(call *ast.CallExpression) (ast.Expression, *perrors.ExprError) {
	if call.Function == "field" {
		return r.resolveFieldLookup(call)
	}

	builtin, ok := evaluator.Builtins[call.Function]
	if !ok {
		return nil, perrors.NewUnknownFunction(call.Function, call.Offset(), evaluator.BuiltinNames())
	}
	if !builtin.AllowedIn(r.mode == parser.ModeFilter) {
		allowed := parser.ModeTransform
		if builtin.Filter {
			allowed = parser.ModeFilter
		}
		return nil, perrors.NewWithOffset("MODE-0002", call.Offset(), map[string]any{
			"Function": call.Function,
			"Mode":     allowed.String(),
		})
	}
	if err := arityError(builtin, len(call.Arguments), call.Offset()); err != nil {
		return nil, err
	}

	for i, arg := range call.Arguments {
		resolved, err := r.resolveExpr(arg)
		if err != nil {
			return nil, err
		}
		call.Arguments[i] = resolved
	}
	return call, nil
}

// resolveFieldLookup handles field("exact display name"): an exact,
// case-insensitive, unnormalized name match for names that cannot be
// written as bare identifiers.
func (r *Resolver) resolveFieldLookup(call *ast.CallExpression) (ast.Expression, *perrors.ExprError) {
	if len(call.Arguments) != 1 {
		return nil, perrors.NewWithOffset("FIELD-0003", call.Offset(), nil)
	}
	lit, ok := call.Arguments[0].(*ast.StringLiteral)
	if !ok {
		return nil, perrors.NewWithOffset("FIELD-0003", call.Arguments[0].Offset(), nil)
	}

	folded := fold(lit.Value)
	var hits []int
	for i, name := range r.foldedNames {
		if name == folded {
			hits = append(hits, i)
		}
	}

	switch len(hits) {
	case 1:
		f := r.fields[hits[0]]
		r.bindings = append(r.bindings, Binding{
			Identifier: lit.Value,
			Key:        f.Key,
			Name:       f.Name,
			Offset:     call.Offset(),
		})
		return &ast.FieldRef{Token: call.Token, Key: f.Key, Name: f.Name}, nil
	case 0:
		err := perrors.NewWithOffset("FIELD-0004", call.Offset(), map[string]any{"Name": lit.Value})
		if suggestion := perrors.FindClosestMatch(lit.Value, r.names); suggestion != "" {
			err.Hints = append(err.Hints, "did you mean '"+suggestion+"'?")
		}
		return nil, err
	default:
		keys := make([]string, len(hits))
		for i, idx := range hits {
			keys[i] = r.fields[idx].Key
		}
		return nil, perrors.NewAmbiguousField(lit.Value, call.Offset(), keys)
	}
}

func arityError(b *evaluator.Builtin, got, offset int) *perrors.ExprError {
	if b.MaxArgs < 0 {
		if got < b.MinArgs {
			return perrors.NewWithOffset("ARITY-0002", offset, map[string]any{
				"Function": b.Name, "Expected": b.MinArgs, "Got": got,
			})
		}
		return nil
	}
	if got < b.MinArgs || got > b.MaxArgs {
		expected := strconv.Itoa(b.MinArgs)
		if b.MaxArgs != b.MinArgs {
			expected += " to " + strconv.Itoa(b.MaxArgs)
		}
		return perrors.NewWithOffset("ARITY-0001", offset, map[string]any{
			"Function": b.Name, "Expected": expected, "Got": got,
		})
	}
	return nil
}

// fold normalizes and case-folds text for comparison. Names typed by
// the user and names stored in the schema may differ in Unicode
// normalization, so both sides go through NFC before folding.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
