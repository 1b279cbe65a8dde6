// Package store is the local datapackage layer: datapackage.json plus
// one CSV per entity, with a schema-typed record view for the
// expression engine and local-only schema edits.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// descriptorFile is the datapackage descriptor name, fixed by the
// Frictionless spec.
const descriptorFile = "datapackage.json"

// Resource is one entity inside the datapackage: its CSV path and its
// field schema.
type Resource struct {
	Name   string
	Path   string
	Schema *schema.Schema
}

// Store is one loaded datapackage.
type Store struct {
	Dir       string
	Name      string
	Created   string
	resources []*Resource
	byName    map[string]*Resource
}

// Wire shapes for datapackage.json. Field descriptors keep the
// Pipedrive attributes under Frictionless-compatible names: key as
// "name", display name as "title", the Pipedrive field type as
// "fieldType" next to the coarse Frictionless "type".
type descriptor struct {
	Name      string               `json:"name"`
	Created   string               `json:"created,omitempty"`
	Resources []resourceDescriptor `json:"resources"`
}

type resourceDescriptor struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Schema struct {
		Fields []fieldDescriptor `json:"fields"`
	} `json:"schema"`
}

type fieldDescriptor struct {
	Name      string          `json:"name"`
	Title     string          `json:"title,omitempty"`
	Type      string          `json:"type"`
	FieldType string          `json:"fieldType,omitempty"`
	Custom    bool            `json:"custom,omitempty"`
	Options   []schema.Option `json:"options,omitempty"`
}

// frictionlessType maps a Pipedrive field type onto the coarse
// Frictionless type vocabulary.
func frictionlessType(fieldType string) string {
	switch fieldType {
	case "int", "user", "org", "stage", "visible_to":
		return "integer"
	case "double", "monetary":
		return "number"
	case "date":
		return "date"
	default:
		return "string"
	}
}

// Load reads the datapackage in dir.
func Load(dir string) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(dir, descriptorFile))
	if err != nil {
		return nil, fmt.Errorf("reading datapackage: %w", err)
	}

	var desc descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing datapackage: %w", err)
	}

	s := &Store{
		Dir:     dir,
		Name:    desc.Name,
		Created: desc.Created,
		byName:  make(map[string]*Resource),
	}
	for _, rd := range desc.Resources {
		fields := make([]schema.Field, 0, len(rd.Schema.Fields))
		for _, fd := range rd.Schema.Fields {
			fieldType := fd.FieldType
			if fieldType == "" {
				fieldType = fd.Type
			}
			fields = append(fields, schema.Field{
				Key:     fd.Name,
				Name:    fd.Title,
				Type:    fieldType,
				Custom:  fd.Custom,
				Options: fd.Options,
			})
		}
		res := &Resource{
			Name:   rd.Name,
			Path:   rd.Path,
			Schema: schema.New(fields),
		}
		s.resources = append(s.resources, res)
		s.byName[rd.Name] = res
	}
	return s, nil
}

// Create starts an empty datapackage in dir, creating the directory if
// needed.
func Create(dir, name string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	s := &Store{
		Dir:     dir,
		Name:    name,
		Created: time.Now().UTC().Format(time.RFC3339),
		byName:  make(map[string]*Resource),
	}
	return s, s.Save()
}

// Resources returns the resources in declaration order.
func (s *Store) Resources() []*Resource {
	return s.resources
}

// Resource returns the resource for an entity.
func (s *Store) Resource(entity string) (*Resource, bool) {
	res, ok := s.byName[entity]
	return res, ok
}

// SetResource adds or replaces an entity's resource.
func (s *Store) SetResource(entity string, sch *schema.Schema) *Resource {
	if res, ok := s.byName[entity]; ok {
		res.Schema = sch
		return res
	}
	res := &Resource{
		Name:   entity,
		Path:   entity + ".csv",
		Schema: sch,
	}
	s.resources = append(s.resources, res)
	s.byName[entity] = res
	return res
}

// Save writes datapackage.json atomically (temp file + rename).
func (s *Store) Save() error {
	desc := descriptor{Name: s.Name, Created: s.Created}
	for _, res := range s.resources {
		rd := resourceDescriptor{Name: res.Name, Path: res.Path}
		for _, f := range res.Schema.Fields() {
			rd.Schema.Fields = append(rd.Schema.Fields, fieldDescriptor{
				Name:      f.Key,
				Title:     f.Name,
				Type:      frictionlessType(f.Type),
				FieldType: f.Type,
				Custom:    f.Custom,
				Options:   f.Options,
			})
		}
		desc.Resources = append(desc.Resources, rd)
	}

	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding datapackage: %w", err)
	}
	return atomicWrite(filepath.Join(s.Dir, descriptorFile), append(data, '\n'))
}

// atomicWrite writes data to path via a temp file in the same
// directory so a crash never leaves a half-written file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return werr
		}
		return cerr
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
