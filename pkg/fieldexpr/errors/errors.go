// Package errors provides structured error types for field expressions.
//
// This package defines ExprError, a unified error type covering parse,
// resolution, and evaluation failures with enough metadata for display
// and programmatic handling. Parse and resolution errors surface before
// any record is read; evaluation errors abort the scan.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse      ErrorClass = "parse"      // Syntax errors
	ClassUnresolved ErrorClass = "unresolved" // Identifier matched no field
	ClassAmbiguous  ErrorClass = "ambiguous"  // Identifier matched several fields
	ClassType       ErrorClass = "type"       // Kind mismatches
	ClassArity      ErrorClass = "arity"      // Wrong argument count
	ClassMode       ErrorClass = "mode"       // Construct not allowed in this mode
	ClassUndefined  ErrorClass = "undefined"  // Unknown function
	ClassEval       ErrorClass = "eval"       // Runtime failures (division by zero, ...)
	ClassLimit      ErrorClass = "limit"      // Safety limits exceeded
)

// ExprError represents any error from parsing, resolving, or evaluating
// a field expression.
type ExprError struct {
	Class      ErrorClass     `json:"class"`                // Error category
	Code       string         `json:"code"`                 // Error code (e.g., "TYPE-0001")
	Message    string         `json:"message"`              // Human-readable message
	Hints      []string       `json:"hints,omitempty"`      // Suggestions for fixing
	Offset     int            `json:"offset"`               // Byte offset into the expression (-1 if unknown)
	Candidates []string       `json:"candidates,omitempty"` // Matching field keys, schema order
	Data       map[string]any `json:"data,omitempty"`       // Template variables
}

// Error implements the error interface.
func (e *ExprError) Error() string {
	return e.String()
}

// String returns a formatted string representation of the error.
func (e *ExprError) String() string {
	var sb strings.Builder

	if e.Offset >= 0 {
		sb.WriteString(fmt.Sprintf("offset %d: ", e.Offset))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// Annotate returns the message followed by the source expression with a
// caret marking the offending position.
func (e *ExprError) Annotate(source string) string {
	var sb strings.Builder

	sb.WriteString(e.Message)
	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	if e.Offset >= 0 && e.Offset <= len(source) {
		sb.WriteString("\n  ")
		sb.WriteString(source)
		sb.WriteString("\n  ")
		sb.WriteString(strings.Repeat(" ", e.Offset))
		sb.WriteString("^")
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *ExprError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithOffset returns a copy of the error with the offset set.
func (e *ExprError) WithOffset(offset int) *ExprError {
	copy := *e
	copy.Offset = offset
	return &copy
}

// IsParseError returns true if this is a syntax error.
func (e *ExprError) IsParseError() bool {
	return e.Class == ClassParse
}

// IsResolutionError returns true for errors raised while binding
// identifiers and validating calls, before any record is read.
func (e *ExprError) IsResolutionError() bool {
	switch e.Class {
	case ClassUnresolved, ClassAmbiguous, ClassArity, ClassMode, ClassUndefined:
		return true
	}
	return false
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Parse errors (PARSE-0xxx)
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected token '{{.Token}}'",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unexpected '='",
		Hints:    []string{"use '==' for comparison"},
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "{{.Literal}}",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "illegal character '{{.Char}}'",
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "unexpected trailing input after expression, starting with '{{.Token}}'",
	},
	"PARSE-0007": {
		Class:    ClassParse,
		Template: "transform expression must have the form field = expression",
	},
	"PARSE-0008": {
		Class:    ClassParse,
		Template: "assignment target must be a field, got '{{.Got}}'",
	},
	"PARSE-0009": {
		Class:    ClassParse,
		Template: "function name must be a bare identifier, got '{{.Got}}'",
	},

	// Mode errors (MODE-0xxx)
	"MODE-0001": {
		Class:    ClassMode,
		Template: "operator '{{.Operator}}' is only available in transform expressions",
	},
	"MODE-0002": {
		Class:    ClassMode,
		Template: "{{.Function}}() is only available in {{.Mode}} expressions",
	},

	// Limit errors (LIMIT-0xxx)
	"LIMIT-0001": {
		Class:    ClassLimit,
		Template: "expression is too long ({{.Length}} bytes, limit {{.Limit}})",
	},
	"LIMIT-0002": {
		Class:    ClassLimit,
		Template: "expression is nested too deeply (limit {{.Limit}})",
	},

	// Field resolution errors (FIELD-0xxx)
	"FIELD-0001": {
		Class:    ClassUnresolved,
		Template: "unknown field or prefix '{{.Name}}'",
	},
	"FIELD-0002": {
		Class:    ClassAmbiguous,
		Template: "ambiguous field '{{.Name}}' matches {{.Count}} fields: {{.Keys}}",
	},
	"FIELD-0003": {
		Class:    ClassParse,
		Template: "field() expects a single quoted field name",
	},
	"FIELD-0004": {
		Class:    ClassUnresolved,
		Template: "no field named '{{.Name}}'",
	},

	// Unknown function (FUNC-0xxx)
	"FUNC-0001": {
		Class:    ClassUndefined,
		Template: "unknown function '{{.Function}}'",
	},

	// Arity errors (ARITY-0xxx)
	"ARITY-0001": {
		Class:    ClassArity,
		Template: "{{.Function}}() expects {{.Expected}} arguments, got {{.Got}}",
	},
	"ARITY-0002": {
		Class:    ClassArity,
		Template: "{{.Function}}() expects at least {{.Expected}} arguments, got {{.Got}}",
	},

	// Type errors (TYPE-0xxx)
	"TYPE-0001": {
		Class:    ClassType,
		Template: "'{{.Operator}}' requires {{.Expected}} operands, got {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "cannot compare {{.Left}} to {{.Right}}",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "{{.Function}}() expects {{.Expected}} for argument {{.Index}}, got {{.Got}}",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "cannot convert {{.Value}} to {{.Target}}",
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "cannot apply '{{.Operator}}' to {{.Left}} and {{.Right}}",
	},

	// Evaluation errors (EVAL-0xxx)
	"EVAL-0001": {
		Class:    ClassEval,
		Template: "division by zero",
	},
	"EVAL-0002": {
		Class:    ClassEval,
		Template: "modulo by zero",
	},
	"EVAL-0003": {
		Class:    ClassEval,
		Template: "{{.Function}}() pad must be a single character, got '{{.Pad}}'",
	},
	"EVAL-0004": {
		Class:    ClassEval,
		Template: "filter expression must produce a boolean, got {{.Got}}",
	},
	"EVAL-0005": {
		Class:    ClassEval,
		Template: "expression is not resolved against a schema",
	},
	"EVAL-0006": {
		Class:    ClassEval,
		Template: "md2html() failed: {{.Reason}}",
	},
}

// New creates an ExprError from a catalog code and template data.
func New(code string, data map[string]any) *ExprError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := fmt.Sprintf("unknown error code: %s", code)
		return &ExprError{
			Class:   ClassEval,
			Code:    code,
			Message: msg,
			Offset:  -1,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &ExprError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Offset:  -1,
		Data:    data,
	}
}

// NewWithOffset creates an ExprError with position information.
func NewWithOffset(code string, offset int, data map[string]any) *ExprError {
	err := New(code, data)
	err.Offset = offset
	return err
}

// NewUnresolvedField creates an unresolved-field error with an optional
// "did you mean" hint drawn from the schema's names and keys.
func NewUnresolvedField(name string, offset int, available []string) *ExprError {
	err := NewWithOffset("FIELD-0001", offset, map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, available); suggestion != "" {
		err.Hints = append(err.Hints, "did you mean '"+suggestion+"'?")
	}
	return err
}

// NewAmbiguousField creates an ambiguous-field error. Keys must be in
// schema declaration order.
func NewAmbiguousField(name string, offset int, keys []string) *ExprError {
	err := NewWithOffset("FIELD-0002", offset, map[string]any{
		"Name":  name,
		"Count": len(keys),
		"Keys":  strings.Join(keys, ", "),
	})
	err.Candidates = keys
	return err
}

// NewUnknownFunction creates an unknown-function error with an optional
// "did you mean" hint drawn from the function catalog.
func NewUnknownFunction(name string, offset int, available []string) *ExprError {
	err := NewWithOffset("FUNC-0001", offset, map[string]any{"Function": name})
	if suggestion := FindClosestMatch(name, available); suggestion != "" {
		err.Hints = append(err.Hints, "did you mean '"+suggestion+"'?")
	}
	return err
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// FindClosestMatch finds the closest match to the given string from
// candidates, within an edit-distance threshold scaled to input length.
// Returns "" when nothing is close enough.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)

	var bestMatch string
	bestDistance := -1

	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	// Short words (1-3): max 1 edit; medium (4-6): 2; longer: 3.
	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}

	return bestMatch
}

// FindTopMatches returns the top N closest matches to the input, used by
// the REPL to suggest completions for unknown names.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	inputLower := strings.ToLower(input)

	type fuzzyMatch struct {
		value    string
		distance int
	}
	var matches []fuzzyMatch
	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if dist > 0 {
			matches = append(matches, fuzzyMatch{value: candidate, distance: dist})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	var result []string
	for i := 0; i < len(matches) && i < n; i++ {
		if matches[i].distance <= threshold {
			result = append(result, matches[i].value)
		}
	}

	return result
}
