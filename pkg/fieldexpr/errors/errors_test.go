package errors

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExprError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *ExprError
		expected string
	}{
		{
			name: "message only",
			err: &ExprError{
				Message: "something went wrong",
				Offset:  -1,
			},
			expected: "something went wrong",
		},
		{
			name: "with offset",
			err: &ExprError{
				Message: "unexpected token",
				Offset:  12,
			},
			expected: "offset 12: unexpected token",
		},
		{
			name: "offset zero is a position",
			err: &ExprError{
				Message: "unexpected '='",
				Offset:  0,
			},
			expected: "offset 0: unexpected '='",
		},
		{
			name: "with hints",
			err: &ExprError{
				Message: "unexpected '='",
				Offset:  -1,
				Hints:   []string{"use '==' for comparison"},
			},
			expected: "unexpected '='\n  use '==' for comparison",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCatalogNew(t *testing.T) {
	err := New("TYPE-0002", map[string]any{"Left": "string", "Right": "number"})
	if err.Class != ClassType {
		t.Errorf("expected class %q, got %q", ClassType, err.Class)
	}
	if err.Message != "cannot compare string to number" {
		t.Errorf("unexpected message: %q", err.Message)
	}
	if err.Offset != -1 {
		t.Errorf("expected unknown offset, got %d", err.Offset)
	}
}

func TestBareAssignHint(t *testing.T) {
	err := NewWithOffset("PARSE-0003", 5, nil)
	s := err.String()
	if !strings.Contains(s, "use '==' for comparison") {
		t.Errorf("expected comparison hint in %q", s)
	}
	if err.Offset != 5 {
		t.Errorf("expected offset 5, got %d", err.Offset)
	}
}

func TestAmbiguousFieldCandidates(t *testing.T) {
	err := NewAmbiguousField("tel", 0, []string{"tel_fixe", "tel_mobile"})
	if err.Class != ClassAmbiguous {
		t.Errorf("expected class %q, got %q", ClassAmbiguous, err.Class)
	}
	if len(err.Candidates) != 2 || err.Candidates[0] != "tel_fixe" || err.Candidates[1] != "tel_mobile" {
		t.Errorf("candidates wrong: %v", err.Candidates)
	}
	if !strings.Contains(err.Message, "tel_fixe, tel_mobile") {
		t.Errorf("expected candidate list in message, got %q", err.Message)
	}
	if !strings.Contains(err.Message, "2 fields") {
		t.Errorf("expected count in message, got %q", err.Message)
	}
}

func TestUnresolvedFieldSuggestion(t *testing.T) {
	err := NewUnresolvedField("nmae", 3, []string{"name", "value", "status"})
	if err.Class != ClassUnresolved {
		t.Errorf("expected class %q, got %q", ClassUnresolved, err.Class)
	}
	if len(err.Hints) != 1 || !strings.Contains(err.Hints[0], "name") {
		t.Errorf("expected suggestion for 'name', got %v", err.Hints)
	}
}

func TestAnnotate(t *testing.T) {
	source := "tel == foo"
	err := NewUnresolvedField("foo", 7, nil)
	got := err.Annotate(source)
	want := "unknown field or prefix 'foo'\n  tel == foo\n         ^"
	if got != want {
		t.Errorf("Annotate() = %q, want %q", got, want)
	}
}

func TestToJSON(t *testing.T) {
	err := NewAmbiguousField("t", 2, []string{"a", "b"})
	data, jsonErr := err.ToJSON()
	if jsonErr != nil {
		t.Fatalf("ToJSON failed: %v", jsonErr)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["class"] != "ambiguous" {
		t.Errorf("expected class ambiguous, got %v", decoded["class"])
	}
}

func TestIsResolutionError(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected bool
	}{
		{ClassUnresolved, true},
		{ClassAmbiguous, true},
		{ClassArity, true},
		{ClassMode, true},
		{ClassUndefined, true},
		{ClassParse, false},
		{ClassType, false},
		{ClassEval, false},
	}
	for _, tt := range tests {
		err := &ExprError{Class: tt.class, Offset: -1}
		if got := err.IsResolutionError(); got != tt.expected {
			t.Errorf("class %q: IsResolutionError() = %v, want %v", tt.class, got, tt.expected)
		}
	}
}

func TestFindClosestMatch(t *testing.T) {
	candidates := []string{"contains", "concat", "coalesce", "upper"}

	if got := FindClosestMatch("contians", candidates); got != "contains" {
		t.Errorf("expected contains, got %q", got)
	}
	// Exact matches are not suggestions.
	if got := FindClosestMatch("upper", candidates); got != "" {
		t.Errorf("expected no suggestion for exact match, got %q", got)
	}
	if got := FindClosestMatch("zzzzzzzz", candidates); got != "" {
		t.Errorf("expected no suggestion, got %q", got)
	}
}
