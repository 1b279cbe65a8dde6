package lexer

import (
	"strings"
	"testing"
)

func TestNextToken(t *testing.T) {
	input := `name == 'Acme' and value >= 100.5 or not(won_time != "")
status = concat(first, ' ', last)
a + b - c * d / e % f, (x <= y)`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{IDENT, "name"},
		{EQ, "=="},
		{STRING, "Acme"},
		{AND, "and"},
		{IDENT, "value"},
		{GTE, ">="},
		{FLOAT, "100.5"},
		{OR, "or"},
		{NOT, "not"},
		{LPAREN, "("},
		{IDENT, "won_time"},
		{NOT_EQ, "!="},
		{STRING, ""},
		{RPAREN, ")"},
		{IDENT, "status"},
		{ASSIGN, "="},
		{IDENT, "concat"},
		{LPAREN, "("},
		{IDENT, "first"},
		{COMMA, ","},
		{STRING, " "},
		{COMMA, ","},
		{IDENT, "last"},
		{RPAREN, ")"},
		{IDENT, "a"},
		{PLUS, "+"},
		{IDENT, "b"},
		{MINUS, "-"},
		{IDENT, "c"},
		{ASTERISK, "*"},
		{IDENT, "d"},
		{SLASH, "/"},
		{IDENT, "e"},
		{PERCENT, "%"},
		{IDENT, "f"},
		{COMMA, ","},
		{LPAREN, "("},
		{IDENT, "x"},
		{LTE, "<="},
		{IDENT, "y"},
		{RPAREN, ")"},
		{EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (literal %q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestDigitLedRuns(t *testing.T) {
	tests := []struct {
		input           string
		expectedType    TokenType
		expectedLiteral string
	}{
		{"42", INT, "42"},
		{"3.14", FLOAT, "3.14"},
		{"0", INT, "0"},
		{"25da23b938af", IDENT, "25da23b938af"},
		{"9f1e", IDENT, "9f1e"},
		{"25e", IDENT, "25e"},
		{"25xy", IDENT, "25xy"},
		{"_25", IDENT, "_25"},
		{"_25da23", IDENT, "_25da23"},
		{"b85f", IDENT, "b85f"},
	}

	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Errorf("input %q - tokentype wrong. expected=%q, got=%q", tt.input, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Errorf("input %q - literal wrong. expected=%q, got=%q", tt.input, tt.expectedLiteral, tok.Literal)
		}
		if end := l.NextToken(); end.Type != EOF {
			t.Errorf("input %q - expected single token, got trailing %s", tt.input, end)
		}
	}
}

func TestNumberThenIdent(t *testing.T) {
	// A fraction can only follow a pure-digit run; 25da stays one identifier.
	l := New("1.5 25da 7")
	want := []Token{
		{Type: FLOAT, Literal: "1.5", Offset: 0},
		{Type: IDENT, Literal: "25da", Offset: 4},
		{Type: INT, Literal: "7", Offset: 9},
		{Type: EOF, Literal: "", Offset: 10},
	}
	for i, w := range want {
		tok := l.NextToken()
		if tok != w {
			t.Fatalf("token[%d] wrong. expected=%v, got=%v", i, w, tok)
		}
	}
}

func TestTokenOffsets(t *testing.T) {
	l := New("name == 'x'")
	offsets := []int{0, 5, 8}
	for i, want := range offsets {
		tok := l.NextToken()
		if tok.Offset != want {
			t.Errorf("token[%d] offset wrong. expected=%d, got=%d", i, want, tok.Offset)
		}
	}
}

func TestQuotedStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`'single'`, "single"},
		{`"double"`, "double"},
		{`'has "double" inside'`, `has "double" inside`},
		{`"has 'single' inside"`, "has 'single' inside"},
		{`'Tél saisi'`, "Tél saisi"},
		{`''`, ""},
	}

	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		if tok.Type != STRING {
			t.Errorf("input %s - expected STRING, got %q (literal %q)", tt.input, tok.Type, tok.Literal)
			continue
		}
		if tok.Literal != tt.expected {
			t.Errorf("input %s - literal wrong. expected=%q, got=%q", tt.input, tt.expected, tok.Literal)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New("'never closed")
	tok := l.NextToken()
	if tok.Type != ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %q", tok.Type)
	}
	if !strings.Contains(tok.Literal, "unterminated string") {
		t.Errorf("expected unterminated string message, got %q", tok.Literal)
	}
}

func TestIllegalCharacters(t *testing.T) {
	for _, input := range []string{"!", "@", "#", "&", "|", ";"} {
		l := New(input)
		tok := l.NextToken()
		if tok.Type != ILLEGAL {
			t.Errorf("input %q - expected ILLEGAL, got %q", input, tok.Type)
		}
	}
}

func TestKeywordAliases(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"true", TRUE},
		{"True", TRUE},
		{"false", FALSE},
		{"False", FALSE},
		{"null", NULL},
		{"None", NULL},
		{"and", AND},
		{"or", OR},
		{"not", NOT},
		{"android", IDENT},
		{"nullable", IDENT},
	}

	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		if tok.Type != tt.expected {
			t.Errorf("input %q - expected %q, got %q", tt.input, tt.expected, tok.Type)
		}
	}
}
