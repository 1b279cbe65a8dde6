package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/lmzr/pipedrive-cli/api"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/store"
)

// RestoreStats is one entity's restore outcome.
type RestoreStats struct {
	Entity  string
	Created int
	Failed  int
	Errors  []string
}

const maxRestoreErrors = 10

// foreignKeys maps record fields onto the entity whose ids they hold,
// for old→new remapping during restore.
var foreignKeys = map[string]string{
	"person_id": "persons",
	"org_id":    "organizations",
	"deal_id":   "deals",
	"owner_id":  "users",
	"user_id":   "users",
	"stage_id":  "", // stages are account config, not restored: pass through
}

// Restore pushes a datapackage back through the API, creating records
// entity by entity in dependency order. New ids replace old ones in
// foreign keys of later entities; users never restore, they remap by
// email onto the target account's existing users.
func Restore(ctx context.Context, client *api.Client, st *store.Store) ([]RestoreStats, error) {
	idMap := map[string]map[string]string{}
	for _, name := range schema.EntityNames() {
		idMap[name] = map[string]string{}
	}

	if err := remapUsersByEmail(ctx, client, st, idMap["users"]); err != nil {
		return nil, err
	}

	var all []RestoreStats
	for _, name := range schema.RestoreOrder {
		res, ok := st.Resource(name)
		if !ok {
			continue
		}
		e, ok := schema.EntityByName(name)
		if !ok || e.ReadOnly {
			continue
		}

		records, err := st.Records(name)
		if err != nil {
			return all, err
		}

		stats := RestoreStats{Entity: name}
		for _, rec := range records {
			payload := restorePayload(res.Schema, rec, idMap)
			if len(payload) == 0 {
				continue
			}
			created, err := client.CreateRecord(ctx, e, payload)
			if err != nil {
				stats.Failed++
				if len(stats.Errors) < maxRestoreErrors {
					stats.Errors = append(stats.Errors, fmt.Sprintf("record %s: %v", rec["id"], err))
				}
				continue
			}
			stats.Created++
			if oldID := rec["id"]; oldID != "" {
				idMap[name][oldID] = api.RecordID(created)
			}
		}
		all = append(all, stats)
	}
	return all, nil
}

// restorePayload builds the create body for one record: read-only and
// locally created fields drop, empty cells drop, foreign keys remap.
func restorePayload(sch *schema.Schema, rec map[string]string, idMap map[string]map[string]string) map[string]any {
	payload := make(map[string]any)
	for key, val := range rec {
		if key == "id" || val == "" || schema.IsLocalField(key) {
			continue
		}
		if f, ok := sch.ByKey(key); ok && f.ReadOnly() {
			continue
		}

		if fkEntity, isFK := foreignKeys[key]; isFK && fkEntity != "" {
			if newID, ok := idMap[fkEntity][val]; ok {
				payload[key] = newID
				continue
			}
			// Unmappable reference: drop rather than point at a
			// wrong record in the target account
			continue
		}
		payload[key] = val
	}
	return payload
}

// remapUsersByEmail matches backed-up users onto the target account's
// users by email address.
func remapUsersByEmail(ctx context.Context, client *api.Client, st *store.Store, out map[string]string) error {
	if _, ok := st.Resource("users"); !ok {
		return nil
	}
	oldUsers, err := st.Records("users")
	if err != nil {
		return err
	}
	if len(oldUsers) == 0 {
		return nil
	}

	users, ok := schema.EntityByName("users")
	if !ok {
		return nil
	}
	liveByEmail := map[string]string{}
	err = client.ListRecords(ctx, users, func(rec map[string]any) error {
		email := strings.ToLower(api.FlattenValue(rec["email"]))
		if email != "" {
			liveByEmail[email] = api.RecordID(rec)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing target users: %w", err)
	}

	for _, u := range oldUsers {
		email := strings.ToLower(u["email"])
		if newID, ok := liveByEmail[email]; ok && u["id"] != "" {
			out[u["id"]] = newID
		}
	}
	return nil
}
