// Package render reconstructs canonical expression text from a
// resolved AST. Two forms exist: the name form shows display names and
// is what the CLI prints back to the user before running a command;
// the key form shows raw keys and re-parses to the same expression,
// which makes it stable for audit logs and saved filters.
package render

import (
	"strings"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/ast"
)

// Operator precedence, low to high. Mirrors the parser so the output
// carries only the parentheses the structure needs.
var infixPrecedence = map[string]int{
	"or":  1,
	"and": 2,
	"==":  4, "!=": 4,
	"<": 4, ">": 4, "<=": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

const (
	lowest     = 0
	notPrec    = 3
	negatePrec = 7
)

// NameForm renders expr with every field reference shown by display
// name, double-quoted when the name cannot stand as a bare identifier.
func NameForm(expr ast.Expression) string {
	var r renderer
	r.walk(expr, lowest)
	return r.buf.String()
}

// KeyForm renders expr with every field reference shown by raw key.
// Digit-led keys carry the underscore escape so the output re-parses
// and re-resolves to the same fields.
func KeyForm(expr ast.Expression) string {
	r := renderer{keys: true}
	r.walk(expr, lowest)
	return r.buf.String()
}

type renderer struct {
	keys bool
	buf  strings.Builder
}

func (r *renderer) walk(node ast.Expression, ctx int) {
	switch n := node.(type) {
	case *ast.FieldRef:
		if r.keys {
			r.buf.WriteString(escapeKey(n.Key))
		} else {
			r.buf.WriteString(quoteName(n.Name))
		}

	case *ast.Identifier:
		// Unresolved trees are not rendered in normal operation, but
		// showing the raw text beats panicking in a diagnostic path.
		r.buf.WriteString(n.Value)

	case *ast.IntegerLiteral, *ast.FloatLiteral:
		r.buf.WriteString(n.TokenLiteral())

	case *ast.StringLiteral:
		r.buf.WriteString(quoteString(n.Value))

	case *ast.Boolean:
		if n.Value {
			r.buf.WriteString("true")
		} else {
			r.buf.WriteString("false")
		}

	case *ast.NullLiteral:
		r.buf.WriteString("null")

	case *ast.PrefixExpression:
		prec := negatePrec
		if n.Operator == "not" {
			prec = notPrec
		}
		if prec < ctx {
			r.buf.WriteByte('(')
			r.renderPrefix(n, prec)
			r.buf.WriteByte(')')
			return
		}
		r.renderPrefix(n, prec)

	case *ast.InfixExpression:
		prec := infixPrecedence[n.Operator]
		if prec < ctx {
			r.buf.WriteByte('(')
			r.renderInfix(n, prec)
			r.buf.WriteByte(')')
			return
		}
		r.renderInfix(n, prec)

	case *ast.CallExpression:
		r.buf.WriteString(n.Function)
		r.buf.WriteByte('(')
		for i, arg := range n.Arguments {
			if i > 0 {
				r.buf.WriteString(", ")
			}
			r.walk(arg, lowest)
		}
		r.buf.WriteByte(')')

	case *ast.Assignment:
		r.walk(n.Target, lowest)
		r.buf.WriteString(" = ")
		r.walk(n.Value, lowest)
	}
}

func (r *renderer) renderPrefix(n *ast.PrefixExpression, prec int) {
	r.buf.WriteString(n.Operator)
	if n.Operator == "not" {
		r.buf.WriteByte(' ')
	}
	r.walk(n.Right, prec)
}

func (r *renderer) renderInfix(n *ast.InfixExpression, prec int) {
	r.walk(n.Left, prec)
	r.buf.WriteByte(' ')
	r.buf.WriteString(n.Operator)
	r.buf.WriteByte(' ')
	// Left associative: an equal-precedence right child keeps its parens.
	r.walk(n.Right, prec+1)
}

// quoteName leaves names that read as identifiers bare and wraps
// everything else in double quotes. The name form is for people, not
// for re-parsing, so no escaping is attempted.
func quoteName(name string) string {
	if bareName(name) {
		return name
	}
	return `"` + name + `"`
}

func bareName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// escapeKey prefixes digit-led keys with an underscore so the key form
// lexes as an identifier instead of a number.
func escapeKey(key string) string {
	if key != "" && key[0] >= '0' && key[0] <= '9' {
		return "_" + key
	}
	return key
}

// quoteString picks the quote character the value does not contain.
// The language has no escape sequences, so a parseable literal can
// never hold both quote kinds at once.
func quoteString(s string) string {
	if strings.ContainsRune(s, '\'') {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}
