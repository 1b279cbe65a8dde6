package schema

import (
	"fmt"
	"strings"
)

// MatchFields finds fields matching a CLI field argument. Matching runs
// in stages and the first stage with any hits wins:
//
//  1. exact key
//  2. case-insensitive key prefix
//  3. underscore escape for digit-led keys: _25 matches keys starting
//     with 25
//  4. exact display name, case-insensitive, with underscores in the
//     argument read as spaces
//  5. case-insensitive name prefix, same normalization
//
// The caller decides what more than one hit means; MatchField turns it
// into an error.
func (s *Schema) MatchFields(identifier string) []Field {
	if identifier == "" {
		return nil
	}

	lower := strings.ToLower(identifier)
	normalized := strings.ReplaceAll(lower, "_", " ")

	for _, f := range s.fields {
		if f.Key == identifier {
			return []Field{f}
		}
	}

	var keyMatches []Field
	for _, f := range s.fields {
		if strings.HasPrefix(strings.ToLower(f.Key), lower) {
			keyMatches = append(keyMatches, f)
		}
	}
	if len(keyMatches) > 0 {
		return keyMatches
	}

	if len(identifier) > 1 && identifier[0] == '_' && isASCIIDigit(identifier[1]) {
		unescaped := strings.ToLower(identifier[1:])
		var escMatches []Field
		for _, f := range s.fields {
			if strings.HasPrefix(strings.ToLower(f.Key), unescaped) {
				escMatches = append(escMatches, f)
			}
		}
		if len(escMatches) > 0 {
			return escMatches
		}
	}

	for _, f := range s.fields {
		name := strings.ToLower(f.Name)
		if name == lower || name == normalized {
			return []Field{f}
		}
	}

	var nameMatches []Field
	for _, f := range s.fields {
		name := strings.ToLower(f.Name)
		if strings.HasPrefix(name, lower) || strings.HasPrefix(name, normalized) {
			nameMatches = append(nameMatches, f)
		}
	}
	return nameMatches
}

// MatchField resolves a CLI field argument to exactly one field.
func (s *Schema) MatchField(identifier string) (Field, error) {
	matches := s.MatchFields(identifier)

	switch len(matches) {
	case 0:
		return Field{}, fmt.Errorf("no field matches %q (available: %s)",
			identifier, strings.Join(s.Keys(), ", "))
	case 1:
		return matches[0], nil
	default:
		keys := make([]string, len(matches))
		for i, f := range matches {
			keys[i] = f.Key
		}
		return Field{}, fmt.Errorf("ambiguous field %q matches: %s",
			identifier, strings.Join(keys, ", "))
	}
}

func isASCIIDigit(b byte) bool {
	return '0' <= b && b <= '9'
}
