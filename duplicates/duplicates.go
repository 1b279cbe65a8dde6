// Package duplicates groups records by a dedup-key expression so the
// user can find candidate duplicates without the tool deciding which
// record wins.
package duplicates

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr"
	"github.com/lmzr/pipedrive-cli/pkg/fieldexpr/evaluator"
)

// Group is a set of records sharing one dedup-key value.
type Group struct {
	Key     string // Inspect() of the evaluated key
	Records []map[string]string
}

// Options tunes a dedup run.
type Options struct {
	IncludeNull bool // keep the group of records with a null key
	MinSize     int  // smallest group to report; < 2 means 2
}

// Find evaluates the key expression per record and groups equal
// results. Singleton groups drop; records whose key evaluates to null
// drop unless IncludeNull. Groups order by size descending, ties by
// key; records inside a group order by id numerically when possible.
func Find(key *fieldexpr.Resolved, records []map[string]string, typed func(map[string]string) fieldexpr.Record, opts Options) ([]Group, error) {
	minSize := opts.MinSize
	if minSize < 2 {
		minSize = 2
	}

	byKey := make(map[string][]map[string]string)
	var order []string
	for _, raw := range records {
		val, err := key.Evaluate(typed(raw))
		if err != nil {
			return nil, fmt.Errorf("evaluating dedup key on record %s: %w", raw["id"], err)
		}

		isNull := val.Type() == evaluator.NULL_OBJ
		if isNull && !opts.IncludeNull {
			continue
		}
		k := val.Inspect()
		if isNull {
			k = "(null)"
		}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], raw)
	}

	var groups []Group
	for _, k := range order {
		recs := byKey[k]
		if len(recs) < minSize {
			continue
		}
		sort.SliceStable(recs, func(i, j int) bool {
			return idLess(recs[i]["id"], recs[j]["id"])
		})
		groups = append(groups, Group{Key: k, Records: recs})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Records) != len(groups[j].Records) {
			return len(groups[i].Records) > len(groups[j].Records)
		}
		return groups[i].Key < groups[j].Key
	})
	return groups, nil
}

// idLess compares record ids numerically when both parse, falling
// back to string order.
func idLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
