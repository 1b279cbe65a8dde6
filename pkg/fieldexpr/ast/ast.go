package ast

import (
	"bytes"
	"strings"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/lexer"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
	Offset() int
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Identifier represents a raw, unresolved identifier such as won_time,
// tel_s, _25, or 25da23. Resolution replaces these with FieldRef nodes.
type Identifier struct {
	Token lexer.Token // the lexer.IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }
func (i *Identifier) Offset() int          { return i.Token.Offset }

// FieldRef represents a resolved field reference. Key is the schema key;
// Name is the display name at resolution time.
type FieldRef struct {
	Token lexer.Token // the identifier or field() token it was resolved from
	Key   string
	Name  string
}

func (fr *FieldRef) expressionNode()      {}
func (fr *FieldRef) TokenLiteral() string { return fr.Token.Literal }
func (fr *FieldRef) String() string       { return fr.Key }
func (fr *FieldRef) Offset() int          { return fr.Token.Offset }

// IntegerLiteral represents integer literals
type IntegerLiteral struct {
	Token lexer.Token // the lexer.INT token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }
func (il *IntegerLiteral) Offset() int          { return il.Token.Offset }

// FloatLiteral represents floating-point literals
type FloatLiteral struct {
	Token lexer.Token // the lexer.FLOAT token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }
func (fl *FloatLiteral) Offset() int          { return fl.Token.Offset }

// StringLiteral represents string literals
type StringLiteral struct {
	Token lexer.Token // the lexer.STRING token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return "'" + sl.Value + "'" }
func (sl *StringLiteral) Offset() int          { return sl.Token.Offset }

// Boolean represents true and false literals
type Boolean struct {
	Token lexer.Token // the lexer.TRUE or lexer.FALSE token
	Value bool
}

func (b *Boolean) expressionNode()      {}
func (b *Boolean) TokenLiteral() string { return b.Token.Literal }
func (b *Boolean) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}
func (b *Boolean) Offset() int { return b.Token.Offset }

// NullLiteral represents the null constant
type NullLiteral struct {
	Token lexer.Token // the lexer.NULL token
}

func (nl *NullLiteral) expressionNode()      {}
func (nl *NullLiteral) TokenLiteral() string { return nl.Token.Literal }
func (nl *NullLiteral) String() string       { return "null" }
func (nl *NullLiteral) Offset() int          { return nl.Token.Offset }

// PrefixExpression represents prefix expressions like 'not x' or '-x'
type PrefixExpression struct {
	Token    lexer.Token // the prefix token, e.g. not
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(pe.Operator)
	if pe.Operator == "not" {
		out.WriteString(" ")
	}
	out.WriteString(pe.Right.String())
	out.WriteString(")")

	return out.String()
}
func (pe *PrefixExpression) Offset() int { return pe.Token.Offset }

// InfixExpression represents infix expressions like 'x == y'
type InfixExpression struct {
	Token    lexer.Token // the operator token, e.g. ==
	Left     Expression
	Operator string
	Right    Expression
}

func (oe *InfixExpression) expressionNode()      {}
func (oe *InfixExpression) TokenLiteral() string { return oe.Token.Literal }
func (oe *InfixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(oe.Left.String())
	out.WriteString(" " + oe.Operator + " ")
	out.WriteString(oe.Right.String())
	out.WriteString(")")

	return out.String()
}
func (oe *InfixExpression) Offset() int { return oe.Token.Offset }

// CallExpression represents function calls. The callee is always a bare
// name from the fixed catalog, never an expression.
type CallExpression struct {
	Token     lexer.Token // the function name token
	Function  string
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	var out bytes.Buffer

	args := []string{}
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}

	out.WriteString(ce.Function)
	out.WriteString("(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(")")

	return out.String()
}
func (ce *CallExpression) Offset() int { return ce.Token.Offset }

// Assignment represents the single top-level 'field = expression' form
// of a transform. Target is an Identifier or field() call before
// resolution and a FieldRef after.
type Assignment struct {
	Token  lexer.Token // the '=' token
	Target Expression
	Value  Expression
}

func (a *Assignment) expressionNode()      {}
func (a *Assignment) TokenLiteral() string { return a.Token.Literal }
func (a *Assignment) String() string {
	var out bytes.Buffer

	out.WriteString(a.Target.String())
	out.WriteString(" = ")
	out.WriteString(a.Value.String())

	return out.String()
}
func (a *Assignment) Offset() int { return a.Token.Offset }
