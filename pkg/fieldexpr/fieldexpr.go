// Package fieldexpr is the expression engine behind filters,
// transforms, duplicate keys and field selection. It ties the lexer,
// parser, resolver, evaluator and renderer together behind a small
// compile-once, evaluate-many API:
//
//	expr, err := fieldexpr.Resolve("tel == null", fieldexpr.Filter, sch, fieldexpr.DefaultLimits)
//	...
//	keep, err := expr.EvalFilter(record)
//
// A Resolved expression is immutable and carries no per-record state,
// so one value may serve a whole record stream, including from
// parallel goroutines.
package fieldexpr

import (
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/ast"
	perrors "github.com/lmzr/pipedrive-cli/pkg/fieldexpr/errors"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/evaluator"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/lexer"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/parser"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/render"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/resolver"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// Mode selects the expression grammar.
type Mode = parser.Mode

const (
	// Filter accepts boolean expressions: comparisons, logic and the
	// filter-mode function catalog.
	Filter = parser.ModeFilter
	// Transform accepts one field = expression assignment with
	// arithmetic and the full catalog.
	Transform = parser.ModeTransform
)

// Aliases so callers build records and read bindings without
// importing the inner packages.
type (
	Record  = evaluator.Record
	Object  = evaluator.Object
	Binding = resolver.Binding
)

// Limits bound the cost of handling untrusted expression text.
type Limits struct {
	MaxLength int // bytes of source text, checked before lexing
	MaxDepth  int // nesting depth, checked during parsing
}

// DefaultLimits are generous for hand-written expressions while still
// rejecting pathological input.
var DefaultLimits = Limits{MaxLength: 1000, MaxDepth: parser.DefaultMaxDepth}

// Resolved is a compiled expression bound to one schema snapshot.
type Resolved struct {
	Mode     Mode
	NameForm string    // display names, shown back to the user
	KeyForm  string    // raw keys, re-parseable, stable for logs
	Bindings []Binding // identifier occurrences in source order

	tree ast.Expression
}

// Resolve parses text in the given mode and binds every identifier
// against s. It never touches record data.
func Resolve(text string, mode Mode, s *schema.Schema, limits Limits) (*Resolved, *perrors.ExprError) {
	if limits.MaxLength <= 0 {
		limits.MaxLength = DefaultLimits.MaxLength
	}
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = DefaultLimits.MaxDepth
	}
	if len(text) > limits.MaxLength {
		return nil, perrors.New("LIMIT-0001", map[string]any{
			"Length": len(text),
			"Limit":  limits.MaxLength,
		})
	}

	p := parser.NewWithDepthLimit(lexer.New(text), mode, limits.MaxDepth)
	expr := p.Parse()
	if expr == nil {
		return nil, p.FirstError()
	}

	tree, bindings, err := resolver.New(s, mode).Resolve(expr)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Mode:     mode,
		NameForm: render.NameForm(tree),
		KeyForm:  render.KeyForm(tree),
		Bindings: bindings,
		tree:     tree,
	}, nil
}

// StringRecord wraps a map of raw string cells, the shape API sources
// produce, as an evaluation record.
func StringRecord(cells map[string]string) Record {
	return evaluator.StringRecord(cells)
}

// Value constructors for callers building schema-typed records.

func StringValue(s string) Object { return &evaluator.String{Value: s} }

func IntValue(n int64) Object { return &evaluator.Integer{Value: n} }

func FloatValue(f float64) Object { return &evaluator.Float{Value: f} }

func BoolValue(b bool) Object {
	if b {
		return evaluator.TRUE
	}
	return evaluator.FALSE
}

func NullValue() Object { return evaluator.NULL }

// Evaluate runs the expression against one record.
func (r *Resolved) Evaluate(rec Record) (Object, *perrors.ExprError) {
	result := evaluator.Eval(r.tree, rec)
	if errObj, ok := result.(*evaluator.Error); ok {
		return nil, errObj.Err
	}
	return result, nil
}

// EvalFilter evaluates a filter to its verdict. Any non-boolean result
// is an error: a filter that produces a string is a written mistake,
// not a truthy value.
func (r *Resolved) EvalFilter(rec Record) (bool, *perrors.ExprError) {
	result, err := r.Evaluate(rec)
	if err != nil {
		return false, err
	}
	b, ok := result.(*evaluator.Boolean)
	if !ok {
		return false, perrors.New("EVAL-0004", map[string]any{
			"Got": evaluator.KindName(result),
		})
	}
	return b.Value, nil
}

// EvalAssignment applies a transform to one record and returns the
// target field key with the computed value. The record itself is not
// modified.
func (r *Resolved) EvalAssignment(rec Record) (string, Object, *perrors.ExprError) {
	assign, ok := r.tree.(*ast.Assignment)
	if !ok {
		return "", nil, perrors.New("PARSE-0007", nil)
	}
	key, val := evaluator.EvalAssignment(assign, rec)
	if errObj, ok := val.(*evaluator.Error); ok {
		return "", nil, errObj.Err
	}
	return key, val, nil
}

// TargetKey returns the field key a transform writes to, or "" for
// filter expressions.
func (r *Resolved) TargetKey() string {
	if assign, ok := r.tree.(*ast.Assignment); ok {
		if target, ok := assign.Target.(*ast.FieldRef); ok {
			return target.Key
		}
	}
	return ""
}
