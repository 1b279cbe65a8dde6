package repl

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
	"github.com/lmzr/pipedrive-cli/store"
)

// WatchStore watches a datapackage directory and returns a Reload
// function for the session: when datapackage.json or the entity's CSV
// changes on disk, the next prompt picks up the new schema and sample
// record. Returns a closer for the watcher; on watch setup failure the
// session simply runs without reload.
func WatchStore(dir, entity string) (func() (*schema.Schema, map[string]string, bool), func(), bool) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, false
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, false
	}

	var mu sync.Mutex
	dirty := false

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if name == "datapackage.json" || name == entity+".csv" {
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
						mu.Lock()
						dirty = true
						mu.Unlock()
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	reload := func() (*schema.Schema, map[string]string, bool) {
		mu.Lock()
		wasDirty := dirty
		dirty = false
		mu.Unlock()
		if !wasDirty {
			return nil, nil, false
		}

		st, err := store.Load(dir)
		if err != nil {
			return nil, nil, false
		}
		res, ok := st.Resource(entity)
		if !ok {
			return nil, nil, false
		}
		sample := map[string]string{}
		if records, err := st.Records(entity); err == nil && len(records) > 0 {
			sample = records[0]
		}
		return res.Schema, sample, true
	}

	return reload, func() { watcher.Close() }, true
}
