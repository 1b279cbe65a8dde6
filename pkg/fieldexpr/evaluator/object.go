package evaluator

import (
	"fmt"
	"strconv"

	perrors "github.com/lmzr/pipedrive-cli/pkg/fieldexpr/errors"
)

// ObjectType represents the type of values in expressions
type ObjectType string

const (
	INTEGER_OBJ = "INTEGER"
	FLOAT_OBJ   = "FLOAT"
	BOOLEAN_OBJ = "BOOLEAN"
	STRING_OBJ  = "STRING"
	NULL_OBJ    = "NULL"
	ERROR_OBJ   = "ERROR"
)

// Object represents all values expressions evaluate to
type Object interface {
	Type() ObjectType
	Inspect() string
}

// Integer represents integer values
type Integer struct {
	Value int64
}

func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }
func (i *Integer) Type() ObjectType { return INTEGER_OBJ }

// Float represents floating-point values
type Float struct {
	Value float64
}

func (f *Float) Inspect() string  { return strconv.FormatFloat(f.Value, 'g', -1, 64) }
func (f *Float) Type() ObjectType { return FLOAT_OBJ }

// Boolean represents boolean values
type Boolean struct {
	Value bool
}

func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }
func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }

// String represents string values
type String struct {
	Value string
}

func (s *String) Inspect() string  { return s.Value }
func (s *String) Type() ObjectType { return STRING_OBJ }

// Null represents the null value: an absent field, or a field holding
// the empty string.
type Null struct{}

func (n *Null) Inspect() string  { return "null" }
func (n *Null) Type() ObjectType { return NULL_OBJ }

// Error wraps a structured engine error as an evaluation result so it
// can flow out of nested expressions like any other value.
type Error struct {
	Err *perrors.ExprError
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string  { return "ERROR: " + e.Err.Message }

var (
	NULL  = &Null{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

func nativeBoolToBooleanObject(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

func newError(code string, data map[string]any) *Error {
	return &Error{Err: perrors.New(code, data)}
}

func newErrorWithOffset(code string, offset int, data map[string]any) *Error {
	return &Error{Err: perrors.NewWithOffset(code, offset, data)}
}

func isError(obj Object) bool {
	if obj != nil {
		return obj.Type() == ERROR_OBJ
	}
	return false
}

// KindName returns the lower-case kind name of a value, as used in
// type errors.
func KindName(obj Object) string {
	return kindName(obj)
}

// kindName returns the lower-case kind used in error messages.
func kindName(obj Object) string {
	switch obj.Type() {
	case INTEGER_OBJ:
		return "integer"
	case FLOAT_OBJ:
		return "float"
	case BOOLEAN_OBJ:
		return "boolean"
	case STRING_OBJ:
		return "string"
	case NULL_OBJ:
		return "null"
	default:
		return fmt.Sprintf("%v", obj.Type())
	}
}

func isNumber(obj Object) bool {
	return obj.Type() == INTEGER_OBJ || obj.Type() == FLOAT_OBJ
}

func numberValue(obj Object) float64 {
	switch n := obj.(type) {
	case *Integer:
		return float64(n.Value)
	case *Float:
		return n.Value
	}
	return 0
}
