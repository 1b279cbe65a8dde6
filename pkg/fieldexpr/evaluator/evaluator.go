package evaluator

import (
	"math"
	"strconv"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/ast"
)

// Record holds one entity record keyed by exact field key. Values are
// engine objects: schema-typed stores pre-coerce cells to their
// declared kind, untyped sources wrap everything as strings.
type Record map[string]Object

// StringRecord wraps raw string cells as engine values. Empty cells
// stay in the map; field fetch turns them into null.
func StringRecord(cells map[string]string) Record {
	rec := make(Record, len(cells))
	for k, v := range cells {
		rec[k] = &String{Value: v}
	}
	return rec
}

// Eval walks a resolved expression tree against one record. Failures
// come back as *Error values so they can flow out of nested
// expressions; callers check with IsError or the facade helpers.
func Eval(node ast.Expression, rec Record) Object {
	switch node := node.(type) {

	case *ast.IntegerLiteral:
		return &Integer{Value: node.Value}

	case *ast.FloatLiteral:
		return &Float{Value: node.Value}

	case *ast.StringLiteral:
		return &String{Value: node.Value}

	case *ast.Boolean:
		return nativeBoolToBooleanObject(node.Value)

	case *ast.NullLiteral:
		return NULL

	case *ast.FieldRef:
		return fieldValue(rec, node.Key)

	case *ast.PrefixExpression:
		right := Eval(node.Right, rec)
		if isError(right) {
			return right
		}
		return evalPrefixExpression(node, right)

	case *ast.InfixExpression:
		if node.Operator == "and" || node.Operator == "or" {
			return evalLogicalExpression(node, rec)
		}
		left := Eval(node.Left, rec)
		if isError(left) {
			return left
		}
		right := Eval(node.Right, rec)
		if isError(right) {
			return right
		}
		return evalInfixExpression(node, left, right)

	case *ast.CallExpression:
		return applyCall(node, rec)

	case *ast.Assignment:
		return Eval(node.Value, rec)

	default:
		// Raw identifiers and unrewritten field() calls never reach a
		// correctly resolved tree.
		return newErrorWithOffset("EVAL-0005", node.Offset(), nil)
	}
}

// IsError reports whether an evaluation result is an error value.
func IsError(obj Object) bool {
	return isError(obj)
}

// EvalAssignment evaluates the right side of a transform assignment and
// returns the target field key with the computed value.
func EvalAssignment(assign *ast.Assignment, rec Record) (string, Object) {
	target, ok := assign.Target.(*ast.FieldRef)
	if !ok {
		return "", newErrorWithOffset("EVAL-0005", assign.Target.Offset(), nil)
	}
	return target.Key, Eval(assign.Value, rec)
}

// fieldValue fetches a field from the record. Absent fields and empty
// strings both read as null.
func fieldValue(rec Record, key string) Object {
	v, ok := rec[key]
	if !ok || v == nil {
		return NULL
	}
	if s, ok := v.(*String); ok && s.Value == "" {
		return NULL
	}
	return v
}

func evalPrefixExpression(node *ast.PrefixExpression, right Object) Object {
	switch node.Operator {
	case "not":
		b, ok := right.(*Boolean)
		if !ok {
			return newErrorWithOffset("TYPE-0001", node.Offset(), map[string]any{
				"Operator": "not", "Expected": "boolean", "Got": kindName(right),
			})
		}
		return nativeBoolToBooleanObject(!b.Value)

	case "-":
		switch r := right.(type) {
		case *Integer:
			return &Integer{Value: -r.Value}
		case *Float:
			return &Float{Value: -r.Value}
		}
		return newErrorWithOffset("TYPE-0001", node.Offset(), map[string]any{
			"Operator": "-", "Expected": "number", "Got": kindName(right),
		})

	default:
		return newErrorWithOffset("TYPE-0005", node.Offset(), map[string]any{
			"Operator": node.Operator, "Left": "nothing", "Right": kindName(right),
		})
	}
}

// evalLogicalExpression handles and/or with short-circuiting. Both
// operands must be booleans; there is no truthiness.
func evalLogicalExpression(node *ast.InfixExpression, rec Record) Object {
	left := Eval(node.Left, rec)
	if isError(left) {
		return left
	}
	lb, ok := left.(*Boolean)
	if !ok {
		return newErrorWithOffset("TYPE-0001", node.Offset(), map[string]any{
			"Operator": node.Operator, "Expected": "boolean", "Got": kindName(left),
		})
	}

	if node.Operator == "and" && !lb.Value {
		return FALSE
	}
	if node.Operator == "or" && lb.Value {
		return TRUE
	}

	right := Eval(node.Right, rec)
	if isError(right) {
		return right
	}
	rb, ok := right.(*Boolean)
	if !ok {
		return newErrorWithOffset("TYPE-0001", node.Offset(), map[string]any{
			"Operator": node.Operator, "Expected": "boolean", "Got": kindName(right),
		})
	}
	return nativeBoolToBooleanObject(rb.Value)
}

func evalInfixExpression(node *ast.InfixExpression, left, right Object) Object {
	switch node.Operator {
	case "==", "!=":
		return evalEquality(node.Operator, left, right, node.Offset())
	case "<", "<=", ">", ">=":
		return evalOrdering(node.Operator, left, right, node.Offset())
	case "+":
		return evalPlus(left, right, node.Offset())
	case "-", "*", "/", "%":
		return evalArithmetic(node.Operator, left, right, node.Offset())
	default:
		return newErrorWithOffset("TYPE-0005", node.Offset(), map[string]any{
			"Operator": node.Operator, "Left": kindName(left), "Right": kindName(right),
		})
	}
}

// evalEquality compares within a kind. Absent-or-empty is one notion:
// null equals null and the empty string, so comparing a field against
// an empty string literal matches empty cells the same way isnull
// does. Integers and floats compare as numbers; everything else
// cross-kind is an error, not false.
func evalEquality(operator string, left, right Object, offset int) Object {
	var equal bool

	switch {
	case left.Type() == NULL_OBJ || right.Type() == NULL_OBJ:
		equal = nullEquivalent(left) && nullEquivalent(right)

	case left.Type() == INTEGER_OBJ && right.Type() == INTEGER_OBJ:
		equal = left.(*Integer).Value == right.(*Integer).Value

	case isNumber(left) && isNumber(right):
		equal = numberValue(left) == numberValue(right)

	case left.Type() == STRING_OBJ && right.Type() == STRING_OBJ:
		equal = left.(*String).Value == right.(*String).Value

	case left.Type() == BOOLEAN_OBJ && right.Type() == BOOLEAN_OBJ:
		equal = left.(*Boolean).Value == right.(*Boolean).Value

	default:
		return newErrorWithOffset("TYPE-0002", offset, map[string]any{
			"Left": kindName(left), "Right": kindName(right),
		})
	}

	if operator == "!=" {
		equal = !equal
	}
	return nativeBoolToBooleanObject(equal)
}

// nullEquivalent reports values the absent-or-empty null notion
// covers: null itself and the empty string.
func nullEquivalent(obj Object) bool {
	if obj.Type() == NULL_OBJ {
		return true
	}
	s, ok := obj.(*String)
	return ok && s.Value == ""
}

func evalOrdering(operator string, left, right Object, offset int) Object {
	switch {
	case left.Type() == INTEGER_OBJ && right.Type() == INTEGER_OBJ:
		return orderResult(operator, compareInt(left.(*Integer).Value, right.(*Integer).Value))

	case isNumber(left) && isNumber(right):
		return orderResult(operator, compareFloat(numberValue(left), numberValue(right)))

	case left.Type() == STRING_OBJ && right.Type() == STRING_OBJ:
		return orderResult(operator, compareString(left.(*String).Value, right.(*String).Value))

	case left.Type() == BOOLEAN_OBJ && right.Type() == BOOLEAN_OBJ:
		return newErrorWithOffset("TYPE-0001", offset, map[string]any{
			"Operator": operator, "Expected": "number or string", "Got": "boolean",
		})

	default:
		return newErrorWithOffset("TYPE-0002", offset, map[string]any{
			"Left": kindName(left), "Right": kindName(right),
		})
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func orderResult(operator string, cmp int) Object {
	switch operator {
	case "<":
		return nativeBoolToBooleanObject(cmp < 0)
	case "<=":
		return nativeBoolToBooleanObject(cmp <= 0)
	case ">":
		return nativeBoolToBooleanObject(cmp > 0)
	default:
		return nativeBoolToBooleanObject(cmp >= 0)
	}
}

// evalPlus adds numbers or concatenates strings. Mixing kinds, or
// either side null, is an error: concat() and str() exist for that.
func evalPlus(left, right Object, offset int) Object {
	switch {
	case left.Type() == STRING_OBJ && right.Type() == STRING_OBJ:
		return &String{Value: left.(*String).Value + right.(*String).Value}

	case left.Type() == INTEGER_OBJ && right.Type() == INTEGER_OBJ:
		return &Integer{Value: left.(*Integer).Value + right.(*Integer).Value}

	case isNumber(left) && isNumber(right):
		return &Float{Value: numberValue(left) + numberValue(right)}

	default:
		return newErrorWithOffset("TYPE-0005", offset, map[string]any{
			"Operator": "+", "Left": kindName(left), "Right": kindName(right),
		})
	}
}

func evalArithmetic(operator string, left, right Object, offset int) Object {
	if !isNumber(left) || !isNumber(right) {
		return newErrorWithOffset("TYPE-0005", offset, map[string]any{
			"Operator": operator, "Left": kindName(left), "Right": kindName(right),
		})
	}

	bothInt := left.Type() == INTEGER_OBJ && right.Type() == INTEGER_OBJ

	switch operator {
	case "-":
		if bothInt {
			return &Integer{Value: left.(*Integer).Value - right.(*Integer).Value}
		}
		return &Float{Value: numberValue(left) - numberValue(right)}

	case "*":
		if bothInt {
			return &Integer{Value: left.(*Integer).Value * right.(*Integer).Value}
		}
		return &Float{Value: numberValue(left) * numberValue(right)}

	case "/":
		// Division always yields a float, even for integer operands.
		if numberValue(right) == 0 {
			return newErrorWithOffset("EVAL-0001", offset, nil)
		}
		return &Float{Value: numberValue(left) / numberValue(right)}

	case "%":
		if numberValue(right) == 0 {
			return newErrorWithOffset("EVAL-0002", offset, nil)
		}
		if bothInt {
			return &Integer{Value: left.(*Integer).Value % right.(*Integer).Value}
		}
		return &Float{Value: math.Mod(numberValue(left), numberValue(right))}
	}

	return newErrorWithOffset("TYPE-0005", offset, map[string]any{
		"Operator": operator, "Left": kindName(left), "Right": kindName(right),
	})
}

func applyCall(call *ast.CallExpression, rec Record) Object {
	if call.Function == "field" {
		return newErrorWithOffset("EVAL-0005", call.Offset(), nil)
	}

	builtin, ok := Builtins[call.Function]
	if !ok {
		return newErrorWithOffset("FUNC-0001", call.Offset(), map[string]any{"Function": call.Function})
	}

	args := make([]Object, len(call.Arguments))
	for i, arg := range call.Arguments {
		val := Eval(arg, rec)
		if isError(val) {
			return val
		}
		args[i] = val
	}

	if errObj := checkArity(builtin, len(args), call.Offset()); errObj != nil {
		return errObj
	}

	result := builtin.Fn(args...)
	if e, ok := result.(*Error); ok && e.Err.Offset < 0 {
		e.Err.Offset = call.Offset()
	}
	return result
}

func checkArity(b *Builtin, got, offset int) Object {
	if b.MaxArgs < 0 {
		if got < b.MinArgs {
			return newErrorWithOffset("ARITY-0002", offset, map[string]any{
				"Function": b.Name, "Expected": b.MinArgs, "Got": got,
			})
		}
		return nil
	}

	if got < b.MinArgs || got > b.MaxArgs {
		expected := formatArity(b.MinArgs, b.MaxArgs)
		return newErrorWithOffset("ARITY-0001", offset, map[string]any{
			"Function": b.Name, "Expected": expected, "Got": got,
		})
	}
	return nil
}

func formatArity(lo, hi int) string {
	if lo == hi {
		return strconv.Itoa(lo)
	}
	return strconv.Itoa(lo) + " to " + strconv.Itoa(hi)
}
