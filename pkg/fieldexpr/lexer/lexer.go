package lexer

import "fmt"

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Identifiers and literals
	IDENT  // name, won_time, _25da, 9a2b4c
	INT    // 42
	FLOAT  // 3.14
	STRING // 'text' or "text", no escapes

	// Operators
	ASSIGN   // =
	PLUS     // +
	MINUS    // -
	ASTERISK // *
	SLASH    // /
	PERCENT  // %
	LT       // <
	GT       // >
	LTE      // <=
	GTE      // >=
	EQ       // ==
	NOT_EQ   // !=
	AND      // and
	OR       // or
	NOT      // not

	// Delimiters
	COMMA  // ,
	LPAREN // (
	RPAREN // )

	// Keywords
	TRUE  // true
	FALSE // false
	NULL  // null
)

// Token represents a single token. Offset is the byte position of the
// token's first character in the input.
type Token struct {
	Type    TokenType
	Literal string
	Offset  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Offset: %d}", t.Type.String(), t.Literal, t.Offset)
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	switch tt {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case IDENT:
		return "IDENT"
	case INT:
		return "INT"
	case FLOAT:
		return "FLOAT"
	case STRING:
		return "STRING"
	case ASSIGN:
		return "ASSIGN"
	case PLUS:
		return "PLUS"
	case MINUS:
		return "MINUS"
	case ASTERISK:
		return "ASTERISK"
	case SLASH:
		return "SLASH"
	case PERCENT:
		return "PERCENT"
	case LT:
		return "LT"
	case GT:
		return "GT"
	case LTE:
		return "LTE"
	case GTE:
		return "GTE"
	case EQ:
		return "EQ"
	case NOT_EQ:
		return "NOT_EQ"
	case AND:
		return "AND"
	case OR:
		return "OR"
	case NOT:
		return "NOT"
	case COMMA:
		return "COMMA"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case TRUE:
		return "TRUE"
	case FALSE:
		return "FALSE"
	case NULL:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// Keywords map for identifying language keywords. True/False/None are
// accepted as aliases so expressions written against the Python-flavored
// dialect keep working.
var keywords = map[string]TokenType{
	"and":   AND,
	"or":    OR,
	"not":   NOT,
	"true":  TRUE,
	"false": FALSE,
	"null":  NULL,
	"True":  TRUE,
	"False": FALSE,
	"None":  NULL,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Lexer represents the lexical analyzer. Expressions are single-line;
// positions are byte offsets rather than line/column pairs. String
// literal content passes through byte-for-byte, so UTF-8 inside quotes
// needs no special handling.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
}

// New creates a new lexer instance
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar advances to the next character in the input
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

// peekChar returns the next character without consuming it
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans and returns the next token
func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipWhitespace()

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			offset := l.position
			l.readChar()
			tok = Token{Type: EQ, Literal: "==", Offset: offset}
		} else {
			tok = newToken(ASSIGN, l.ch, l.position)
		}
	case '!':
		if l.peekChar() == '=' {
			offset := l.position
			l.readChar()
			tok = Token{Type: NOT_EQ, Literal: "!=", Offset: offset}
		} else {
			tok = newToken(ILLEGAL, l.ch, l.position)
		}
	case '<':
		if l.peekChar() == '=' {
			offset := l.position
			l.readChar()
			tok = Token{Type: LTE, Literal: "<=", Offset: offset}
		} else {
			tok = newToken(LT, l.ch, l.position)
		}
	case '>':
		if l.peekChar() == '=' {
			offset := l.position
			l.readChar()
			tok = Token{Type: GTE, Literal: ">=", Offset: offset}
		} else {
			tok = newToken(GT, l.ch, l.position)
		}
	case '+':
		tok = newToken(PLUS, l.ch, l.position)
	case '-':
		tok = newToken(MINUS, l.ch, l.position)
	case '*':
		tok = newToken(ASTERISK, l.ch, l.position)
	case '/':
		tok = newToken(SLASH, l.ch, l.position)
	case '%':
		tok = newToken(PERCENT, l.ch, l.position)
	case ',':
		tok = newToken(COMMA, l.ch, l.position)
	case '(':
		tok = newToken(LPAREN, l.ch, l.position)
	case ')':
		tok = newToken(RPAREN, l.ch, l.position)
	case '\'', '"':
		offset := l.position
		str, terminated := l.readString(l.ch)
		if !terminated {
			tok.Type = ILLEGAL
			tok.Literal = fmt.Sprintf("unterminated string starting with %s", truncate(str, 20))
			tok.Offset = offset
			return tok
		}
		tok.Type = STRING
		tok.Literal = str
		tok.Offset = offset
	case 0:
		tok.Literal = ""
		tok.Type = EOF
		tok.Offset = l.position
	default:
		if isDigit(l.ch) {
			// A digit may start a numeric literal or a hash-style
			// field key such as 25da23b938af. Read the whole
			// alphanumeric run before deciding.
			offset := l.position
			literal, tokType := l.readNumberOrKey()
			return Token{Type: tokType, Literal: literal, Offset: offset}
		}
		if isLetter(l.ch) {
			offset := l.position
			literal := l.readIdentifier()
			return Token{Type: LookupIdent(literal), Literal: literal, Offset: offset}
		}
		tok = newToken(ILLEGAL, l.ch, l.position)
	}

	l.readChar()
	return tok
}

// newToken creates a new token with the given parameters
func newToken(tokenType TokenType, ch byte, offset int) Token {
	return Token{Type: tokenType, Literal: string(ch), Offset: offset}
}

// readIdentifier reads an identifier or keyword
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumberOrKey reads a digit-led run and classifies it. Pure digits
// (with an optional fraction) are numeric literals; a run containing
// letters or underscores is an identifier, left for field resolution.
// There is no scientific notation, so 25e1 is an identifier.
func (l *Lexer) readNumberOrKey() (string, TokenType) {
	position := l.position
	allDigits := true
	for isLetter(l.ch) || isDigit(l.ch) {
		if !isDigit(l.ch) {
			allDigits = false
		}
		l.readChar()
	}
	if !allDigits {
		return l.input[position:l.position], IDENT
	}

	// Check for decimal point
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume the '.'
		for isDigit(l.ch) {
			l.readChar()
		}
		return l.input[position:l.position], FLOAT
	}

	return l.input[position:l.position], INT
}

// readString reads a quoted string literal. There are no escape
// sequences; the literal runs to the next occurrence of the opening
// quote character. Returns the content and whether it was terminated.
func (l *Lexer) readString(quote byte) (string, bool) {
	position := l.position + 1
	l.readChar() // skip opening quote

	for l.ch != quote && l.ch != 0 {
		l.readChar()
	}

	terminated := l.ch == quote
	return l.input[position:l.position], terminated
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// truncate returns the first n characters of a string, adding "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
