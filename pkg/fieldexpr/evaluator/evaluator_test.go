package evaluator

import (
	"strings"
	"testing"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/ast"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/lexer"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/parser"
)

// bindKeys substitutes every identifier with a field reference using
// the identifier text as the key, standing in for schema resolution.
func bindKeys(node ast.Expression) ast.Expression {
	switch n := node.(type) {
	case *ast.Identifier:
		return &ast.FieldRef{Token: n.Token, Key: n.Value, Name: n.Value}
	case *ast.PrefixExpression:
		n.Right = bindKeys(n.Right)
		return n
	case *ast.InfixExpression:
		n.Left = bindKeys(n.Left)
		n.Right = bindKeys(n.Right)
		return n
	case *ast.CallExpression:
		for i := range n.Arguments {
			n.Arguments[i] = bindKeys(n.Arguments[i])
		}
		return n
	case *ast.Assignment:
		n.Target = bindKeys(n.Target)
		n.Value = bindKeys(n.Value)
		return n
	default:
		return node
	}
}

func testEvalFilter(t *testing.T, input string, rec Record) Object {
	t.Helper()
	p := parser.New(lexer.New(input), parser.ModeFilter)
	expr := p.Parse()
	if expr == nil {
		t.Fatalf("input %q: parse failed: %v", input, p.Errors())
	}
	return Eval(bindKeys(expr), rec)
}

func testEvalTransform(t *testing.T, input string, rec Record) Object {
	t.Helper()
	p := parser.New(lexer.New(input), parser.ModeTransform)
	expr := p.Parse()
	if expr == nil {
		t.Fatalf("input %q: parse failed: %v", input, p.Errors())
	}
	assign, ok := bindKeys(expr).(*ast.Assignment)
	if !ok {
		t.Fatalf("input %q: expected assignment, got %T", input, expr)
	}
	_, val := EvalAssignment(assign, rec)
	return val
}

func expectBool(t *testing.T, obj Object, want bool) {
	t.Helper()
	b, ok := obj.(*Boolean)
	if !ok {
		t.Fatalf("expected boolean %v, got %s (%s)", want, obj.Inspect(), obj.Type())
	}
	if b.Value != want {
		t.Errorf("expected %v, got %v", want, b.Value)
	}
}

func expectInt(t *testing.T, obj Object, want int64) {
	t.Helper()
	n, ok := obj.(*Integer)
	if !ok {
		t.Fatalf("expected integer %d, got %s (%s)", want, obj.Inspect(), obj.Type())
	}
	if n.Value != want {
		t.Errorf("expected %d, got %d", want, n.Value)
	}
}

func expectFloat(t *testing.T, obj Object, want float64) {
	t.Helper()
	f, ok := obj.(*Float)
	if !ok {
		t.Fatalf("expected float %g, got %s (%s)", want, obj.Inspect(), obj.Type())
	}
	if f.Value != want {
		t.Errorf("expected %g, got %g", want, f.Value)
	}
}

func expectString(t *testing.T, obj Object, want string) {
	t.Helper()
	s, ok := obj.(*String)
	if !ok {
		t.Fatalf("expected string %q, got %s (%s)", want, obj.Inspect(), obj.Type())
	}
	if s.Value != want {
		t.Errorf("expected %q, got %q", want, s.Value)
	}
}

func expectNull(t *testing.T, obj Object) {
	t.Helper()
	if obj.Type() != NULL_OBJ {
		t.Fatalf("expected null, got %s (%s)", obj.Inspect(), obj.Type())
	}
}

func expectError(t *testing.T, obj Object, substr string) {
	t.Helper()
	errObj, ok := obj.(*Error)
	if !ok {
		t.Fatalf("expected error containing %q, got %s (%s)", substr, obj.Inspect(), obj.Type())
	}
	if !strings.Contains(strings.ToLower(errObj.Err.Message), strings.ToLower(substr)) {
		t.Errorf("expected error containing %q, got %q", substr, errObj.Err.Message)
	}
}

func demoRecord() Record {
	return Record{
		"name":   &String{Value: "Acme GmbH"},
		"tel":    &String{Value: ""},
		"status": &String{Value: "open"},
		"city":   &String{Value: "Berlin"},
		"value":  &Integer{Value: 150},
		"rate":   &Float{Value: 2.5},
		"won":    &Boolean{Value: true},
		"notes":  &String{Value: "# Title"},
	}
}

func TestLiteralComparisons(t *testing.T) {
	rec := Record{}
	expectBool(t, testEvalFilter(t, "5 == 5", rec), true)
	expectBool(t, testEvalFilter(t, "5 != 5", rec), false)
	expectBool(t, testEvalFilter(t, "5 < 5.5", rec), true)
	expectBool(t, testEvalFilter(t, "'a' < 'b'", rec), true)
	expectBool(t, testEvalFilter(t, "true == true", rec), true)
	expectBool(t, testEvalFilter(t, "null == null", rec), true)
	expectBool(t, testEvalFilter(t, "5 == 5.0", rec), true)
}

func TestFieldNullSemantics(t *testing.T) {
	rec := demoRecord()

	expectBool(t, testEvalFilter(t, "isnull(tel)", rec), true)
	expectBool(t, testEvalFilter(t, "isnull(missing)", rec), true)
	expectBool(t, testEvalFilter(t, "notnull(name)", rec), true)
	expectBool(t, testEvalFilter(t, "tel == null", rec), true)
	expectBool(t, testEvalFilter(t, "missing == null", rec), true)
	expectBool(t, testEvalFilter(t, "name != null", rec), true)
	expectBool(t, testEvalFilter(t, "isnull('')", rec), true)
	expectBool(t, testEvalFilter(t, "isnull('x')", rec), false)

	// '' and null are the same absence, consistent with isnull.
	expectBool(t, testEvalFilter(t, "tel == ''", rec), true)
	expectBool(t, testEvalFilter(t, "'' == tel", rec), true)
	expectBool(t, testEvalFilter(t, "tel != ''", rec), false)
	expectBool(t, testEvalFilter(t, "'' == null", rec), true)
	expectBool(t, testEvalFilter(t, "name == ''", rec), false)
	expectBool(t, testEvalFilter(t, "name != ''", rec), true)
}

func TestStrictTyping(t *testing.T) {
	rec := demoRecord()

	expectError(t, testEvalFilter(t, "value == '150'", rec), "cannot compare integer to string")
	expectError(t, testEvalFilter(t, "name > 5", rec), "cannot compare string to integer")
	expectError(t, testEvalFilter(t, "tel > 'a'", rec), "cannot compare null to string")
	expectError(t, testEvalFilter(t, "won < true", rec), "'<' requires number or string operands")
	expectBool(t, testEvalFilter(t, "value == 150", rec), true)
	expectBool(t, testEvalFilter(t, "value > 100.5", rec), true)
	expectBool(t, testEvalFilter(t, "rate <= 2.5", rec), true)
}

func TestLogicalOperators(t *testing.T) {
	rec := demoRecord()

	expectBool(t, testEvalFilter(t, "value > 100 and rate < 3", rec), true)
	expectBool(t, testEvalFilter(t, "value > 200 or rate < 3", rec), true)
	expectBool(t, testEvalFilter(t, "not (value > 200)", rec), true)
	expectBool(t, testEvalFilter(t, "not value > 200", rec), true)
	expectBool(t, testEvalFilter(t, "not name == 'nope'", rec), true)
	expectBool(t, testEvalFilter(t, "not value == 150", rec), false)

	// Short-circuiting skips the side that would fail.
	expectBool(t, testEvalFilter(t, "value > 100 or 1 == 'x'", rec), true)
	expectBool(t, testEvalFilter(t, "value > 200 and 1 == 'x'", rec), false)
	expectError(t, testEvalFilter(t, "value > 200 or 1 == 'x'", rec), "cannot compare")

	expectError(t, testEvalFilter(t, "name and won", rec), "'and' requires boolean operands")
	expectError(t, testEvalFilter(t, "not name", rec), "'not' requires boolean operands")
}

func TestSubstringPredicates(t *testing.T) {
	rec := demoRecord()

	expectBool(t, testEvalFilter(t, "contains(name, 'gmbh')", rec), true)
	expectBool(t, testEvalFilter(t, "contains(name, 'xyz')", rec), false)
	expectBool(t, testEvalFilter(t, "contains(missing, 'x')", rec), false)
	expectBool(t, testEvalFilter(t, "contains(tel, 'x')", rec), false)
	expectBool(t, testEvalFilter(t, "startswith(name, 'ACME')", rec), true)
	expectBool(t, testEvalFilter(t, "endswith(name, 'GMBH')", rec), true)
	expectError(t, testEvalFilter(t, "contains(name, 5)", rec), "expects a string for argument 2")
}

func TestStringFunctionResults(t *testing.T) {
	rec := demoRecord()

	tests := []struct {
		input string
		want  string
	}{
		{"s = upper(status)", "OPEN"},
		{"s = lower('AcMe')", "acme"},
		{"s = strip('  x  ')", "x"},
		{"s = lstrip('  x  ')", "x  "},
		{"s = rstrip('  x  ')", "  x"},
		{"s = replace(city, 'lin', 'n')", "Bern"},
		{"s = substr(city, 0, 3)", "Ber"},
		{"s = substr(city, 2)", "rlin"},
		{"s = substr(city, -3)", "lin"},
		{"s = substr(city, 3, 99)", "lin"},
		{"s = substr(city, 4, 2)", ""},
		{"s = lpad('7', 5, '0')", "00007"},
		{"s = rpad('7', 5, '0')", "70000"},
		{"s = lpad('hello', 3, '0')", "hello"},
		{"s = lpad('7', 3)", "  7"},
		{"s = concat(status, '-', city)", "open-Berlin"},
	}

	for _, tt := range tests {
		expectString(t, testEvalTransform(t, tt.input, rec), tt.want)
	}
}

func TestStringFunctionsPropagateNull(t *testing.T) {
	rec := demoRecord()

	expectNull(t, testEvalTransform(t, "s = upper(tel)", rec))
	expectNull(t, testEvalTransform(t, "s = strip(missing)", rec))
	expectNull(t, testEvalTransform(t, "s = replace(tel, 'a', 'b')", rec))
	expectNull(t, testEvalTransform(t, "s = substr(missing, 0, 2)", rec))
	expectNull(t, testEvalTransform(t, "s = lpad(tel, 5, '0')", rec))
	expectNull(t, testEvalTransform(t, "s = concat('+33', tel)", rec))
	expectNull(t, testEvalTransform(t, "s = md2html(missing)", rec))
}

func TestLenAndPadEdges(t *testing.T) {
	rec := Record{"s": &String{Value: "héllo"}}

	expectInt(t, testEvalFilter(t, "len(s)", rec), 5)
	expectInt(t, testEvalFilter(t, "len(missing)", rec), 0)
	expectError(t, testEvalTransform(t, "x = lpad(s, 9, 'ab')", rec), "pad must be a single character")
	expectString(t, testEvalTransform(t, "x = lpad(s, 7, 'é')", rec), "ééhéllo")
}

func TestTypeChecks(t *testing.T) {
	rec := Record{
		"n":  &Integer{Value: 42},
		"f":  &Float{Value: 4.5},
		"f0": &Float{Value: 4.0},
		"s":  &String{Value: " 17 "},
	}

	expectBool(t, testEvalFilter(t, "isint(n)", rec), true)
	expectBool(t, testEvalFilter(t, "isint(f)", rec), false)
	expectBool(t, testEvalFilter(t, "isint(f0)", rec), true)
	expectBool(t, testEvalFilter(t, "isint(s)", rec), true)
	expectBool(t, testEvalFilter(t, "isint('4.2')", rec), false)
	expectBool(t, testEvalFilter(t, "isint(missing)", rec), false)
	expectBool(t, testEvalFilter(t, "isint(true)", rec), false)
	expectBool(t, testEvalFilter(t, "isfloat('4.2')", rec), true)
	expectBool(t, testEvalFilter(t, "isfloat(n)", rec), true)
	expectBool(t, testEvalFilter(t, "isfloat('abc')", rec), false)
	expectBool(t, testEvalFilter(t, "isnumeric('1e3')", rec), true)
	expectBool(t, testEvalFilter(t, "isnumeric('')", rec), false)
}

func TestConversions(t *testing.T) {
	rec := demoRecord()

	expectInt(t, testEvalFilter(t, "int('42')", rec), 42)
	expectInt(t, testEvalFilter(t, "int('2.9')", rec), 2)
	expectInt(t, testEvalFilter(t, "int('-2.9')", rec), -2)
	expectInt(t, testEvalFilter(t, "int(2.9)", rec), 2)
	expectInt(t, testEvalFilter(t, "int(value)", rec), 150)
	expectError(t, testEvalFilter(t, "int('abc')", rec), "cannot convert 'abc' to int")
	expectError(t, testEvalFilter(t, "int(tel)", rec), "cannot convert null to int")
	expectError(t, testEvalFilter(t, "int(won)", rec), "cannot convert true to int")

	expectFloat(t, testEvalFilter(t, "float('2.5')", rec), 2.5)
	expectFloat(t, testEvalFilter(t, "float(value)", rec), 150)
	expectError(t, testEvalFilter(t, "float('x')", rec), "cannot convert 'x' to float")

	expectString(t, testEvalTransform(t, "s = str(value)", rec), "150")
	expectString(t, testEvalTransform(t, "s = str(rate)", rec), "2.5")
	expectString(t, testEvalTransform(t, "s = str(missing)", rec), "")
	expectString(t, testEvalTransform(t, "s = str(won)", rec), "true")
}

func TestArithmetic(t *testing.T) {
	rec := demoRecord()

	expectInt(t, testEvalTransform(t, "n = 2 + 3 * 4", rec), 14)
	expectInt(t, testEvalTransform(t, "n = value - 50", rec), 100)
	expectFloat(t, testEvalTransform(t, "n = value * rate", rec), 375)
	expectFloat(t, testEvalTransform(t, "n = 7 / 2", rec), 3.5)
	expectInt(t, testEvalTransform(t, "n = 7 % 2", rec), 1)
	expectFloat(t, testEvalTransform(t, "n = 7.5 % 2", rec), 1.5)
	expectInt(t, testEvalTransform(t, "n = -value", rec), -150)
	expectString(t, testEvalTransform(t, "n = 'a' + 'b'", rec), "ab")

	expectError(t, testEvalTransform(t, "n = 1 / 0", rec), "division by zero")
	expectError(t, testEvalTransform(t, "n = 1 / (value - 150)", rec), "division by zero")
	expectError(t, testEvalTransform(t, "n = 1 % 0", rec), "modulo by zero")
	expectError(t, testEvalTransform(t, "n = 'a' + 1", rec), "cannot apply '+' to string and integer")
	expectError(t, testEvalTransform(t, "n = tel + 'x'", rec), "cannot apply '+' to null and string")
	expectError(t, testEvalTransform(t, "n = name * 2", rec), "cannot apply '*' to string and integer")
}

func TestRoundAbs(t *testing.T) {
	rec := Record{}

	expectFloat(t, testEvalTransform(t, "n = round(2.5)", rec), 3)
	expectFloat(t, testEvalTransform(t, "n = round(-2.5)", rec), -3)
	expectFloat(t, testEvalTransform(t, "n = round(2.444, 2)", rec), 2.44)
	expectFloat(t, testEvalTransform(t, "n = round(value)", Record{"value": &Integer{Value: 7}}), 7)
	expectInt(t, testEvalTransform(t, "n = abs(-5)", rec), 5)
	expectFloat(t, testEvalTransform(t, "n = abs(-2.5)", rec), 2.5)
	expectError(t, testEvalTransform(t, "n = round('x')", rec), "expects a number")
}

func TestIifAndCoalesce(t *testing.T) {
	rec := demoRecord()

	expectString(t, testEvalTransform(t, "s = iif(value > 100, 'big', 'small')", rec), "big")
	expectString(t, testEvalTransform(t, "s = iif(isnull(tel), 'none', tel)", rec), "none")
	expectError(t, testEvalTransform(t, "s = iif(value, 'a', 'b')", rec), "expects a boolean")

	expectString(t, testEvalTransform(t, "s = coalesce(tel, missing, 'fallback')", rec), "fallback")
	expectString(t, testEvalTransform(t, "s = coalesce(tel, city)", rec), "Berlin")
	expectInt(t, testEvalTransform(t, "s = coalesce(missing, 5)", rec), 5)
	expectNull(t, testEvalTransform(t, "s = coalesce(tel, '')", rec))
}

func TestMd2html(t *testing.T) {
	rec := demoRecord()

	expectString(t, testEvalTransform(t, "s = md2html(notes)", rec), "<h1>Title</h1>")
	expectString(t, testEvalTransform(t, "s = md2html('**b**')", rec), "<p><strong>b</strong></p>")
}

func TestEvalAssignmentTarget(t *testing.T) {
	rec := demoRecord()

	p := parser.New(lexer.New("status = 'won'"), parser.ModeTransform)
	expr := p.Parse()
	if expr == nil {
		t.Fatalf("parse failed: %v", p.Errors())
	}
	assign := bindKeys(expr).(*ast.Assignment)

	key, val := EvalAssignment(assign, rec)
	if key != "status" {
		t.Errorf("target key = %q, want status", key)
	}
	expectString(t, val, "won")
}

func TestArityChecks(t *testing.T) {
	rec := demoRecord()

	expectError(t, testEvalFilter(t, "upper(name, name)", rec), "expects 1 arguments")
	expectError(t, testEvalFilter(t, "substr(name)", rec), "expects 2 to 3 arguments")
	expectError(t, testEvalFilter(t, "concat(name)", rec), "at least 2 arguments")
}

func TestErrorOffsetStamping(t *testing.T) {
	rec := demoRecord()

	obj := testEvalFilter(t, "name == 'x' or int('abc') == 1", rec)
	errObj, ok := obj.(*Error)
	if !ok {
		t.Fatalf("expected error, got %s", obj.Inspect())
	}
	if errObj.Err.Offset != 15 {
		t.Errorf("error offset = %d, want 15 (position of int call)", errObj.Err.Offset)
	}
}
