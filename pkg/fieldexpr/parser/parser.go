package parser

import (
	"fmt"
	"strconv"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/ast"
	perrors "github.com/lmzr/pipedrive-cli/pkg/fieldexpr/errors"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/lexer"
)

// Mode selects the grammar. Filter expressions cover comparisons,
// boolean connectives, calls, and literals; transform expressions add
// arithmetic and exactly one top-level assignment.
type Mode int

const (
	ModeFilter Mode = iota
	ModeTransform
)

// String returns the mode name used in error messages
func (m Mode) String() string {
	if m == ModeTransform {
		return "transform"
	}
	return "filter"
}

// DefaultMaxDepth bounds expression nesting. Real filters stay in
// single digits; the limit only exists to reject pathological input.
const DefaultMaxDepth = 40

// Precedence levels for operators. 'not' sits between 'and' and the
// comparisons, so 'not name == 1' negates the comparison while
// 'not a and b' negates only a.
const (
	_ int = iota
	LOWEST
	LOGIC_OR    // or
	LOGIC_AND   // and
	LOGIC_NOT   // not X
	EQUALS      // == !=
	LESSGREATER // > or <
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -X
	CALL        // myFunction(X)
)

// precedences maps tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.OR:       LOGIC_OR,
	lexer.AND:      LOGIC_AND,
	lexer.EQ:       EQUALS,
	lexer.NOT_EQ:   EQUALS,
	lexer.LT:       LESSGREATER,
	lexer.GT:       LESSGREATER,
	lexer.LTE:      LESSGREATER,
	lexer.GTE:      LESSGREATER,
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.SLASH:    PRODUCT,
	lexer.ASTERISK: PRODUCT,
	lexer.PERCENT:  PRODUCT,
	lexer.LPAREN:   CALL,
}

// Parser represents the parser
type Parser struct {
	l    *lexer.Lexer
	mode Mode

	structuredErrors []*perrors.ExprError

	prevToken lexer.Token
	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn

	depth    int
	maxDepth int
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// New creates a new parser instance for the given grammar mode
func New(l *lexer.Lexer, mode Mode) *Parser {
	return NewWithDepthLimit(l, mode, DefaultMaxDepth)
}

// NewWithDepthLimit creates a parser with an explicit nesting limit
func NewWithDepthLimit(l *lexer.Lexer, mode Mode, maxDepth int) *Parser {
	p := &Parser{
		l:        l,
		mode:     mode,
		maxDepth: maxDepth,
	}

	// Initialize prefix parse functions
	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.INT, p.parseIntegerLiteral)
	p.registerPrefix(lexer.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBoolean)
	p.registerPrefix(lexer.FALSE, p.parseBoolean)
	p.registerPrefix(lexer.NULL, p.parseNullLiteral)
	p.registerPrefix(lexer.NOT, p.parseNotExpression)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)

	// Initialize infix parse functions
	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	p.registerInfix(lexer.EQ, p.parseInfixExpression)
	p.registerInfix(lexer.NOT_EQ, p.parseInfixExpression)
	p.registerInfix(lexer.LT, p.parseInfixExpression)
	p.registerInfix(lexer.GT, p.parseInfixExpression)
	p.registerInfix(lexer.LTE, p.parseInfixExpression)
	p.registerInfix(lexer.GTE, p.parseInfixExpression)
	p.registerInfix(lexer.AND, p.parseInfixExpression)
	p.registerInfix(lexer.OR, p.parseInfixExpression)
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)

	// Arithmetic is part of the transform grammar only. In filter mode
	// the operators still register so the error names the construct
	// instead of reporting a generic unexpected token.
	if mode == ModeTransform {
		p.registerInfix(lexer.PLUS, p.parseInfixExpression)
		p.registerInfix(lexer.MINUS, p.parseInfixExpression)
		p.registerInfix(lexer.SLASH, p.parseInfixExpression)
		p.registerInfix(lexer.ASTERISK, p.parseInfixExpression)
		p.registerInfix(lexer.PERCENT, p.parseInfixExpression)
	} else {
		p.registerInfix(lexer.PLUS, p.parseUnsupportedInfix)
		p.registerInfix(lexer.MINUS, p.parseUnsupportedInfix)
		p.registerInfix(lexer.SLASH, p.parseUnsupportedInfix)
		p.registerInfix(lexer.ASTERISK, p.parseUnsupportedInfix)
		p.registerInfix(lexer.PERCENT, p.parseUnsupportedInfix)
	}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// Errors returns parser errors as strings (convenience method for tests).
// Prefer StructuredErrors() for production code.
func (p *Parser) Errors() []string {
	result := make([]string, len(p.structuredErrors))
	for i, err := range p.structuredErrors {
		result[i] = err.String()
	}
	return result
}

// StructuredErrors returns parser errors as structured ExprError objects.
func (p *Parser) StructuredErrors() []*perrors.ExprError {
	return p.structuredErrors
}

// FirstError returns the first recorded error, or nil.
func (p *Parser) FirstError() *perrors.ExprError {
	if len(p.structuredErrors) == 0 {
		return nil
	}
	return p.structuredErrors[0]
}

// addError adds a structured error.
// Only the first error is recorded - subsequent errors are usually cascading noise.
func (p *Parser) addError(msg string, offset int) {
	if len(p.structuredErrors) > 0 {
		return
	}

	p.structuredErrors = append(p.structuredErrors, &perrors.ExprError{
		Class:   perrors.ClassParse,
		Message: msg,
		Offset:  offset,
	})
}

// addStructuredError adds a structured error from the catalog.
// Only the first error is recorded - subsequent errors are usually cascading noise.
func (p *Parser) addStructuredError(code string, offset int, data map[string]any) {
	if len(p.structuredErrors) > 0 {
		return
	}

	p.structuredErrors = append(p.structuredErrors, perrors.NewWithOffset(code, offset, data))
}

// registerPrefix registers a prefix parse function
func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

// registerInfix registers an infix parse function
func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken advances prevToken, curToken, and peekToken
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Parse parses one complete expression (filter mode) or one assignment
// (transform mode) and verifies nothing trails it. Returns nil when any
// error was recorded.
func (p *Parser) Parse() ast.Expression {
	var expr ast.Expression
	if p.mode == ModeTransform {
		expr = p.parseAssignment()
	} else {
		expr = p.parseExpression(LOWEST)
	}

	if len(p.structuredErrors) > 0 {
		return nil
	}

	if p.peekTokenIs(lexer.ASSIGN) {
		p.addStructuredError("PARSE-0003", p.peekToken.Offset, nil)
		return nil
	}
	if p.peekTokenIs(lexer.ILLEGAL) {
		p.illegalTokenError(p.peekToken)
		return nil
	}
	if !p.peekTokenIs(lexer.EOF) {
		p.addStructuredError("PARSE-0006", p.peekToken.Offset, map[string]any{"Token": p.peekToken.Literal})
		return nil
	}

	return expr
}

// parseAssignment parses the single top-level 'target = expression' form.
func (p *Parser) parseAssignment() ast.Expression {
	target := p.parseExpression(LOWEST)
	if target == nil {
		return nil
	}

	if !p.peekTokenIs(lexer.ASSIGN) {
		offset := p.curToken.Offset + len(p.curToken.Literal)
		p.addStructuredError("PARSE-0007", offset, nil)
		return nil
	}

	switch t := target.(type) {
	case *ast.Identifier:
		// resolvable target
	case *ast.CallExpression:
		if t.Function != "field" {
			p.addStructuredError("PARSE-0008", target.Offset(), map[string]any{"Got": target.String()})
			return nil
		}
	default:
		p.addStructuredError("PARSE-0008", target.Offset(), map[string]any{"Got": target.String()})
		return nil
	}

	p.nextToken() // move onto '='
	assign := &ast.Assignment{Token: p.curToken, Target: target}

	p.nextToken()
	assign.Value = p.parseExpression(LOWEST)
	if assign.Value == nil {
		return nil
	}

	return assign
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	p.depth++
	defer func() { p.depth-- }()
	if p.maxDepth > 0 && p.depth > p.maxDepth {
		p.addStructuredError("LIMIT-0002", p.curToken.Offset, map[string]any{"Limit": p.maxDepth})
		return nil
	}

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError()
		return nil
	}

	leftExp := prefix()

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
	}

	return leftExp
}

// Parse functions for different expression types

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.addError(fmt.Sprintf("could not parse %q as integer", p.curToken.Literal), p.curToken.Offset)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Token: p.curToken}

	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError(fmt.Sprintf("could not parse %q as float", p.curToken.Literal), p.curToken.Offset)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.Boolean{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
}

func (p *Parser) parseNullLiteral() ast.Expression {
	return &ast.NullLiteral{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}

	p.nextToken()

	expression.Right = p.parseExpression(PREFIX)

	return expression
}

// parseNotExpression parses 'not' at its own level so a following
// comparison binds tighter than the negation.
func (p *Parser) parseNotExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}

	p.nextToken()

	expression.Right = p.parseExpression(LOGIC_NOT)

	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Literal,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)

	return expression
}

// parseUnsupportedInfix reports transform-only operators used in filter mode.
func (p *Parser) parseUnsupportedInfix(left ast.Expression) ast.Expression {
	p.addStructuredError("MODE-0001", p.curToken.Offset, map[string]any{"Operator": p.curToken.Literal})
	return nil
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()

	exp := p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}

	return exp
}

func (p *Parser) parseCallExpression(fn ast.Expression) ast.Expression {
	// The callee must be a bare identifier; there are no function values.
	ident, ok := fn.(*ast.Identifier)
	if !ok {
		p.addStructuredError("PARSE-0009", p.curToken.Offset, map[string]any{"Got": fn.String()})
		return nil
	}

	exp := &ast.CallExpression{Token: ident.Token, Function: ident.Value}
	exp.Arguments = p.parseExpressionList(lexer.RPAREN)
	return exp
}

func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expression {
	args := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return args
	}

	p.nextToken()
	args = append(args, p.parseExpression(LOWEST))

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken() // consume comma
		// Tolerate a trailing comma before the closing paren
		if p.peekTokenIs(end) {
			break
		}
		p.nextToken()
		args = append(args, p.parseExpression(LOWEST))
	}

	if !p.expectPeek(end) {
		return nil
	}

	return args
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t lexer.TokenType) {
	// A stray '=' gets its own message; it is almost always a typo for '=='.
	if p.peekTokenIs(lexer.ASSIGN) {
		p.addStructuredError("PARSE-0003", p.peekToken.Offset, nil)
		return
	}
	if p.peekTokenIs(lexer.ILLEGAL) {
		p.illegalTokenError(p.peekToken)
		return
	}

	gotLiteral := p.peekToken.Literal
	if gotLiteral == "" {
		gotLiteral = tokenTypeToReadableName(p.peekToken.Type)
	}

	p.addStructuredError("PARSE-0001", p.peekToken.Offset, map[string]any{
		"Expected": tokenTypeToReadableName(t),
		"Got":      gotLiteral,
	})
}

// illegalTokenError reports a lexer ILLEGAL token. The lexer spells out
// unterminated strings in the literal; single stray characters get the
// shorter message.
func (p *Parser) illegalTokenError(tok lexer.Token) {
	if len(tok.Literal) > 1 {
		p.addStructuredError("PARSE-0004", tok.Offset, map[string]any{"Literal": tok.Literal})
	} else {
		p.addStructuredError("PARSE-0005", tok.Offset, map[string]any{"Char": tok.Literal})
	}
}

func (p *Parser) noPrefixParseFnError() {
	tok := p.curToken

	switch tok.Type {
	case lexer.ILLEGAL:
		p.illegalTokenError(tok)
	case lexer.ASSIGN:
		p.addStructuredError("PARSE-0003", tok.Offset, nil)
	default:
		literal := tok.Literal
		if literal == "" {
			literal = tokenTypeToReadableName(tok.Type)
		}
		p.addStructuredError("PARSE-0002", tok.Offset, map[string]any{"Token": literal})
	}
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// tokenTypeToReadableName maps token types to names used in error messages
func tokenTypeToReadableName(t lexer.TokenType) string {
	switch t {
	case lexer.IDENT:
		return "identifier"
	case lexer.INT, lexer.FLOAT:
		return "number"
	case lexer.STRING:
		return "string"
	case lexer.EOF:
		return "end of expression"
	case lexer.LPAREN:
		return "'('"
	case lexer.RPAREN:
		return "')'"
	case lexer.COMMA:
		return "','"
	case lexer.ASSIGN:
		return "'='"
	default:
		return "'" + t.String() + "'"
	}
}
