package evaluator

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
)

// Builtin describes one function callable from expressions. MinArgs and
// MaxArgs bound the argument count (MaxArgs -1 means variadic); Filter
// and Transform gate which grammar modes may call it. Call sites are
// validated against this metadata before any record is read.
type Builtin struct {
	Name      string
	MinArgs   int
	MaxArgs   int
	Filter    bool
	Transform bool
	Fn        func(args ...Object) Object
}

// AllowedIn reports whether the builtin may be called in filter mode
// (true) or transform mode (false).
func (b *Builtin) AllowedIn(filter bool) bool {
	if filter {
		return b.Filter
	}
	return b.Transform
}

// BuiltinNames returns every builtin name, sorted, for suggestions.
func BuiltinNames() []string {
	names := make([]string, 0, len(Builtins))
	for name := range Builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins is the function catalog shared by both grammar modes.
var Builtins = map[string]*Builtin{
	// Case-insensitive substring predicates. A null subject evaluates
	// to false instead of failing, so filters over sparse fields stay
	// writable without isnull guards.
	"contains": {
		Name: "contains", MinArgs: 2, MaxArgs: 2, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return FALSE
			}
			s, errObj := stringArg("contains", args, 0)
			if errObj != nil {
				return errObj
			}
			sub, errObj := stringArg("contains", args, 1)
			if errObj != nil {
				return errObj
			}
			return nativeBoolToBooleanObject(strings.Contains(strings.ToLower(s), strings.ToLower(sub)))
		},
	},
	"startswith": {
		Name: "startswith", MinArgs: 2, MaxArgs: 2, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return FALSE
			}
			s, errObj := stringArg("startswith", args, 0)
			if errObj != nil {
				return errObj
			}
			prefix, errObj := stringArg("startswith", args, 1)
			if errObj != nil {
				return errObj
			}
			return nativeBoolToBooleanObject(strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)))
		},
	},
	"endswith": {
		Name: "endswith", MinArgs: 2, MaxArgs: 2, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return FALSE
			}
			s, errObj := stringArg("endswith", args, 0)
			if errObj != nil {
				return errObj
			}
			suffix, errObj := stringArg("endswith", args, 1)
			if errObj != nil {
				return errObj
			}
			return nativeBoolToBooleanObject(strings.HasSuffix(strings.ToLower(s), strings.ToLower(suffix)))
		},
	},

	// Null checks treat the empty string as null, matching how field
	// fetch reads empty cells.
	"isnull": {
		Name: "isnull", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			return nativeBoolToBooleanObject(isNullish(args[0]))
		},
	},
	"notnull": {
		Name: "notnull", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			return nativeBoolToBooleanObject(!isNullish(args[0]))
		},
	},

	// Text validity checks, not conversions.
	"isint": {
		Name: "isint", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			switch v := args[0].(type) {
			case *Integer:
				return TRUE
			case *Float:
				return nativeBoolToBooleanObject(!math.IsNaN(v.Value) && !math.IsInf(v.Value, 0) && v.Value == math.Trunc(v.Value))
			case *String:
				t := strings.TrimSpace(v.Value)
				if t == "" {
					return FALSE
				}
				_, err := strconv.ParseInt(t, 10, 64)
				return nativeBoolToBooleanObject(err == nil)
			default:
				return FALSE
			}
		},
	},
	"isfloat": {
		Name: "isfloat", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			return isFloatCheck(args[0])
		},
	},
	"isnumeric": {
		Name: "isnumeric", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			return isFloatCheck(args[0])
		},
	},

	// String transformations propagate null to null rather than
	// manufacturing empty strings.
	"upper":  stringBuiltin("upper", strings.ToUpper),
	"lower":  stringBuiltin("lower", strings.ToLower),
	"strip":  stringBuiltin("strip", strings.TrimSpace),
	"lstrip": stringBuiltin("lstrip", func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
	"rstrip": stringBuiltin("rstrip", func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),

	"replace": {
		Name: "replace", MinArgs: 3, MaxArgs: 3, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return NULL
			}
			s, errObj := stringArg("replace", args, 0)
			if errObj != nil {
				return errObj
			}
			from, errObj := stringArg("replace", args, 1)
			if errObj != nil {
				return errObj
			}
			to, errObj := stringArg("replace", args, 2)
			if errObj != nil {
				return errObj
			}
			return &String{Value: strings.ReplaceAll(s, from, to)}
		},
	},

	// substr is zero-indexed and end-exclusive; indices clamp to the
	// string and negative indices count from the end.
	"substr": {
		Name: "substr", MinArgs: 2, MaxArgs: 3, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return NULL
			}
			s, errObj := stringArg("substr", args, 0)
			if errObj != nil {
				return errObj
			}
			start, errObj := intArg("substr", args, 1)
			if errObj != nil {
				return errObj
			}

			runes := []rune(s)
			end := int64(len(runes))
			if len(args) == 3 {
				end, errObj = intArg("substr", args, 2)
				if errObj != nil {
					return errObj
				}
			}

			from := clampIndex(start, len(runes))
			to := clampIndex(end, len(runes))
			if from >= to {
				return &String{Value: ""}
			}
			return &String{Value: string(runes[from:to])}
		},
	},

	"len": {
		Name: "len", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return &Integer{Value: 0}
			}
			s, errObj := stringArg("len", args, 0)
			if errObj != nil {
				return errObj
			}
			return &Integer{Value: int64(len([]rune(s)))}
		},
	},

	"concat": {
		Name: "concat", MinArgs: 2, MaxArgs: -1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			var sb strings.Builder
			for i, arg := range args {
				if arg.Type() == NULL_OBJ {
					return NULL
				}
				s, errObj := stringArg("concat", args, i)
				if errObj != nil {
					return errObj
				}
				sb.WriteString(s)
			}
			return &String{Value: sb.String()}
		},
	},

	"lpad": padBuiltin("lpad", true),
	"rpad": padBuiltin("rpad", false),

	// Explicit conversions; the operators never coerce.
	"int": {
		Name: "int", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			switch v := args[0].(type) {
			case *Integer:
				return v
			case *Float:
				if math.IsNaN(v.Value) || v.Value >= math.MaxInt64 || v.Value <= math.MinInt64 {
					return convertError(args[0], "int")
				}
				return &Integer{Value: int64(v.Value)}
			case *String:
				t := strings.TrimSpace(v.Value)
				if i, err := strconv.ParseInt(t, 10, 64); err == nil {
					return &Integer{Value: i}
				}
				// Accept float spellings, truncating toward zero.
				f, err := strconv.ParseFloat(t, 64)
				if err != nil || math.IsNaN(f) || f >= math.MaxInt64 || f <= math.MinInt64 {
					return convertError(args[0], "int")
				}
				return &Integer{Value: int64(f)}
			default:
				return convertError(args[0], "int")
			}
		},
	},
	"float": {
		Name: "float", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			switch v := args[0].(type) {
			case *Integer:
				return &Float{Value: float64(v.Value)}
			case *Float:
				return v
			case *String:
				f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
				if err != nil {
					return convertError(args[0], "float")
				}
				return &Float{Value: f}
			default:
				return convertError(args[0], "float")
			}
		},
	},
	"str": {
		Name: "str", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			switch v := args[0].(type) {
			case *Null:
				return &String{Value: ""}
			case *String:
				return v
			default:
				return &String{Value: v.Inspect()}
			}
		},
	},

	// field() is rewritten during resolution and never executes.
	"field": {
		Name: "field", MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			return newError("EVAL-0005", nil)
		},
	},

	// Transform-only: arithmetic helpers and conditionals.
	"round": {
		Name: "round", MinArgs: 1, MaxArgs: 2, Transform: true,
		Fn: func(args ...Object) Object {
			n, errObj := numberArg("round", args, 0)
			if errObj != nil {
				return errObj
			}
			var digits int64
			if len(args) == 2 {
				digits, errObj = intArg("round", args, 1)
				if errObj != nil {
					return errObj
				}
			}
			pow := math.Pow(10, float64(digits))
			return &Float{Value: math.Round(n*pow) / pow}
		},
	},
	"abs": {
		Name: "abs", MinArgs: 1, MaxArgs: 1, Transform: true,
		Fn: func(args ...Object) Object {
			switch v := args[0].(type) {
			case *Integer:
				if v.Value < 0 {
					return &Integer{Value: -v.Value}
				}
				return v
			case *Float:
				return &Float{Value: math.Abs(v.Value)}
			default:
				return newError("TYPE-0003", map[string]any{
					"Function": "abs", "Expected": "a number", "Index": 1, "Got": kindName(args[0]),
				})
			}
		},
	},
	"iif": {
		Name: "iif", MinArgs: 3, MaxArgs: 3, Transform: true,
		Fn: func(args ...Object) Object {
			cond, ok := args[0].(*Boolean)
			if !ok {
				return newError("TYPE-0003", map[string]any{
					"Function": "iif", "Expected": "a boolean", "Index": 1, "Got": kindName(args[0]),
				})
			}
			if cond.Value {
				return args[1]
			}
			return args[2]
		},
	},
	"coalesce": {
		Name: "coalesce", MinArgs: 2, MaxArgs: -1, Transform: true,
		Fn: func(args ...Object) Object {
			for _, arg := range args {
				if !isNullish(arg) {
					return arg
				}
			}
			return NULL
		},
	},

	// Markdown-to-HTML for notes content.
	"md2html": {
		Name: "md2html", MinArgs: 1, MaxArgs: 1, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return NULL
			}
			s, errObj := stringArg("md2html", args, 0)
			if errObj != nil {
				return errObj
			}
			var buf bytes.Buffer
			if err := goldmark.New().Convert([]byte(s), &buf); err != nil {
				return newError("EVAL-0006", map[string]any{"Reason": err.Error()})
			}
			return &String{Value: strings.TrimRight(buf.String(), "\n")}
		},
	},
}

// stringBuiltin wraps a plain string function as a one-argument
// builtin with null propagation.
func stringBuiltin(name string, fn func(string) string) *Builtin {
	return &Builtin{
		Name: name, MinArgs: 1, MaxArgs: 1, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return NULL
			}
			s, errObj := stringArg(name, args, 0)
			if errObj != nil {
				return errObj
			}
			return &String{Value: fn(s)}
		},
	}
}

func padBuiltin(name string, left bool) *Builtin {
	return &Builtin{
		Name: name, MinArgs: 2, MaxArgs: 3, Filter: true, Transform: true,
		Fn: func(args ...Object) Object {
			if args[0].Type() == NULL_OBJ {
				return NULL
			}
			s, errObj := stringArg(name, args, 0)
			if errObj != nil {
				return errObj
			}
			width, errObj := intArg(name, args, 1)
			if errObj != nil {
				return errObj
			}

			pad := " "
			if len(args) == 3 {
				pad, errObj = stringArg(name, args, 2)
				if errObj != nil {
					return errObj
				}
			}
			padRunes := []rune(pad)
			if len(padRunes) != 1 {
				return newError("EVAL-0003", map[string]any{"Function": name, "Pad": pad})
			}

			runes := []rune(s)
			if int64(len(runes)) >= width {
				return &String{Value: s}
			}
			fill := strings.Repeat(string(padRunes[0]), int(width)-len(runes))
			if left {
				return &String{Value: fill + s}
			}
			return &String{Value: s + fill}
		},
	}
}

func isNullish(obj Object) bool {
	if obj.Type() == NULL_OBJ {
		return true
	}
	s, ok := obj.(*String)
	return ok && s.Value == ""
}

func isFloatCheck(obj Object) Object {
	switch v := obj.(type) {
	case *Integer, *Float:
		return TRUE
	case *String:
		t := strings.TrimSpace(v.Value)
		if t == "" {
			return FALSE
		}
		_, err := strconv.ParseFloat(t, 64)
		return nativeBoolToBooleanObject(err == nil)
	default:
		return FALSE
	}
}

func stringArg(fn string, args []Object, i int) (string, *Error) {
	s, ok := args[i].(*String)
	if !ok {
		return "", newError("TYPE-0003", map[string]any{
			"Function": fn, "Expected": "a string", "Index": i + 1, "Got": kindName(args[i]),
		})
	}
	return s.Value, nil
}

func intArg(fn string, args []Object, i int) (int64, *Error) {
	n, ok := args[i].(*Integer)
	if !ok {
		return 0, newError("TYPE-0003", map[string]any{
			"Function": fn, "Expected": "an integer", "Index": i + 1, "Got": kindName(args[i]),
		})
	}
	return n.Value, nil
}

func numberArg(fn string, args []Object, i int) (float64, *Error) {
	if !isNumber(args[i]) {
		return 0, newError("TYPE-0003", map[string]any{
			"Function": fn, "Expected": "a number", "Index": i + 1, "Got": kindName(args[i]),
		})
	}
	return numberValue(args[i]), nil
}

func convertError(value Object, target string) *Error {
	display := value.Inspect()
	if value.Type() == STRING_OBJ {
		display = "'" + display + "'"
	}
	return newError("TYPE-0004", map[string]any{"Value": display, "Target": target})
}

func clampIndex(i int64, n int) int {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 {
		i = 0
	}
	if i > int64(n) {
		i = int64(n)
	}
	return int(i)
}
