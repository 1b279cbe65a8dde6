package schema

import (
	"fmt"
	"strings"
)

// Entity describes one Pipedrive record collection: its list endpoint,
// the endpoint serving its field schema (empty when the API defines
// none), and whether the API accepts writes for it.
type Entity struct {
	Name           string
	Endpoint       string
	FieldsEndpoint string
	ReadOnly       bool
}

// HasFields reports whether the entity has a field schema endpoint.
// Entities without one (notes, files, users) still carry a synthetic
// schema derived from record columns.
func (e Entity) HasFields() bool {
	return e.FieldsEndpoint != ""
}

// Entities lists every supported entity in declaration order.
var Entities = []Entity{
	{Name: "persons", Endpoint: "/v1/persons", FieldsEndpoint: "/v1/personFields"},
	{Name: "organizations", Endpoint: "/v1/organizations", FieldsEndpoint: "/v1/organizationFields"},
	{Name: "deals", Endpoint: "/v1/deals", FieldsEndpoint: "/v1/dealFields"},
	{Name: "activities", Endpoint: "/v1/activities", FieldsEndpoint: "/v1/activityFields"},
	{Name: "notes", Endpoint: "/v1/notes"},
	{Name: "products", Endpoint: "/v1/products", FieldsEndpoint: "/v1/productFields"},
	{Name: "files", Endpoint: "/v1/files", ReadOnly: true},
	{Name: "users", Endpoint: "/v1/users", ReadOnly: true},
}

// RestoreOrder sequences restores so references resolve: organizations
// before the persons that point at them, persons before deals, and so
// on. Read-only entities never restore.
var RestoreOrder = []string{"organizations", "persons", "deals", "activities", "notes", "products"}

// EntityNames returns every entity name in declaration order.
func EntityNames() []string {
	names := make([]string, len(Entities))
	for i, e := range Entities {
		names[i] = e.Name
	}
	return names
}

// EntityByName returns the entity with the exact name.
func EntityByName(name string) (Entity, bool) {
	for _, e := range Entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// MatchEntity resolves an entity argument, accepting any unique
// case-insensitive prefix ("per" for persons, "o" for organizations).
func MatchEntity(prefix string) (Entity, error) {
	lower := strings.ToLower(prefix)

	if e, ok := EntityByName(lower); ok {
		return e, nil
	}

	var matches []Entity
	for _, e := range Entities {
		if strings.HasPrefix(e.Name, lower) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return Entity{}, fmt.Errorf("no entity matches prefix %q (available: %s)",
			prefix, strings.Join(EntityNames(), ", "))
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, e := range matches {
			names[i] = e.Name
		}
		return Entity{}, fmt.Errorf("ambiguous entity prefix %q matches: %s",
			prefix, strings.Join(names, ", "))
	}
}

// MatchEntities resolves several prefixes, dropping duplicates while
// preserving order.
func MatchEntities(prefixes []string) ([]Entity, error) {
	seen := make(map[string]bool)
	var out []Entity
	for _, p := range prefixes {
		e, err := MatchEntity(p)
		if err != nil {
			return nil, err
		}
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return out, nil
}
